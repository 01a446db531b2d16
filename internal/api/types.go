package api

// DecodeRequest is the body of POST /v1/decode. Exactly one of Prompts
// (token ids) or Inputs (whitespace separated tokens) must be given. Unset
// search parameters fall back to the server defaults.
type DecodeRequest struct {
	Model   string   `json:"model,omitempty"`
	Prompts [][]int  `json:"prompts,omitempty"`
	Inputs  []string `json:"inputs,omitempty"`

	BeamSize   *int `json:"beam_size,omitempty"`
	MinLength  *int `json:"min_length,omitempty"`
	MinNBest   *int `json:"min_n_best,omitempty"`
	BlockNgram *int `json:"block_ngram,omitempty"`
	MaxSteps   *int `json:"max_steps,omitempty"`
	NBest      *int `json:"n_best,omitempty"`

	// Store set to false skips saving the record.
	Store *bool `json:"store,omitempty"`
}

// DecodeRecord is returned by POST /v1/decode and GET /v1/decode/:id.
type DecodeRecord struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	CreatedAt int64          `json:"created_at"`
	Model     string         `json:"model"`
	Params    DecodeParams   `json:"params"`
	Results   []DecodeResult `json:"results"`
	Stats     DecodeStats    `json:"stats"`
}

// DecodeParams echoes the search parameters that were applied.
type DecodeParams struct {
	BeamSize   int `json:"beam_size"`
	MinLength  int `json:"min_length"`
	MinNBest   int `json:"min_n_best"`
	BlockNgram int `json:"block_ngram"`
	MaxSteps   int `json:"max_steps"`
	NBest      int `json:"n_best"`
}

// DecodeResult is the outcome for one prompt. Tokens, Text and Score repeat
// the best entry of NBest.
type DecodeResult struct {
	Index  int          `json:"index"`
	Tokens []int        `json:"tokens,omitempty"`
	Text   string       `json:"text,omitempty"`
	Score  float64      `json:"score"`
	Steps  int          `json:"steps"`
	Done   bool         `json:"done"`
	NBest  []Hypothesis `json:"n_best,omitempty"`
	Error  string       `json:"error,omitempty"`
}

type Hypothesis struct {
	Tokens []int   `json:"tokens"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

type DecodeStats struct {
	Steps          int     `json:"steps"`
	Examples       int     `json:"examples"`
	Failed         int     `json:"failed"`
	DurationMS     float64 `json:"duration_ms"`
	StepsPerSecond float64 `json:"steps_per_second"`
}

type DeleteDecodeResp struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Deleted bool   `json:"deleted"`
}

type DecodeList struct {
	Object string         `json:"object"`
	Data   []DecodeRecord `json:"data"`
}

type ModelObject struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	OwnedBy string `json:"owned_by"`
}

type ModelList struct {
	Object string        `json:"object"`
	Data   []ModelObject `json:"data"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
	Code    string `json:"code,omitempty"`
}
