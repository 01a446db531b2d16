package model

import (
	"context"
	"fmt"
	"strconv"

	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/logits"
	"github.com/samcharles93/beamsearch/internal/tensor"
	"github.com/samcharles93/beamsearch/internal/vocab"
)

// ToyConfig sizes the toy language model.
type ToyConfig struct {
	Vocab  int
	Hidden int
	Seed   int64
}

// DefaultToyConfig is used by the CLI when no sizes are given.
var DefaultToyConfig = ToyConfig{Vocab: 32, Hidden: 16, Seed: 1}

// Toy is a tiny seeded language model: an embedding lookup of the previous
// token followed by a projection back onto the vocabulary. It exists to
// exercise the decoder without model files; the same seed always yields the
// same weights.
type Toy struct {
	cfg   ToyConfig
	vocab *vocab.Vocab

	emb  tensor.Mat // [Vocab x Hidden]
	proj tensor.Mat // [Vocab x Hidden]
	bias []float32
}

// NewToy builds a toy model. Ids 0, 1 and 2 are the pad, start and end
// tokens; the rest are named by their id.
func NewToy(cfg ToyConfig) (*Toy, error) {
	if cfg.Vocab < 4 {
		return nil, fmt.Errorf("toy: vocabulary must hold at least 4 tokens, got %d", cfg.Vocab)
	}
	if cfg.Hidden < 1 {
		return nil, fmt.Errorf("toy: hidden size must be positive, got %d", cfg.Hidden)
	}
	tokens := make([]string, cfg.Vocab)
	tokens[0], tokens[1], tokens[2] = "<pad>", "<s>", "</s>"
	for i := 3; i < cfg.Vocab; i++ {
		tokens[i] = "t" + strconv.Itoa(i)
	}
	voc, err := vocab.New(tokens)
	if err != nil {
		return nil, err
	}

	m := &Toy{
		cfg:   cfg,
		vocab: voc,
		emb:   tensor.NewMat(cfg.Vocab, cfg.Hidden),
		proj:  tensor.NewMat(cfg.Vocab, cfg.Hidden),
		bias:  make([]float32, cfg.Vocab),
	}
	tensor.FillRand(&m.emb, cfg.Seed+11, 2)
	tensor.FillRand(&m.proj, cfg.Seed+23, 2)
	// Nothing should follow the end token or produce pad and start.
	m.bias[0] = -8
	m.bias[1] = -8
	return m, nil
}

func (m *Toy) Name() string             { return "toy-" + strconv.FormatInt(m.cfg.Seed, 10) }
func (m *Toy) Vocabulary() *vocab.Vocab { return m.vocab }
func (m *Toy) Special() Special         { return DefaultSpecial }
func (m *Toy) Config() ToyConfig        { return m.cfg }

// Forward writes the logits for the token following tok into dst. Ids
// outside the vocabulary wrap around.
func (m *Toy) Forward(dst []float32, tok int) []float32 {
	tok %= m.cfg.Vocab
	if tok < 0 {
		tok += m.cfg.Vocab
	}
	if cap(dst) < m.cfg.Vocab {
		dst = make([]float32, m.cfg.Vocab)
	}
	dst = dst[:m.cfg.Vocab]
	tensor.MatVec(dst, &m.proj, m.emb.Row(tok))
	for i, b := range m.bias {
		dst[i] += b
	}
	return dst
}

// Score implements decode.Scorer with log-softmaxed Forward outputs.
func (m *Toy) Score(ctx context.Context, steps []decode.Step) ([][][]float64, error) {
	var scratch []float32
	out := make([][][]float64, len(steps))
	for i, st := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dist := make([][]float64, len(st.Prefixes))
		for slot, prefix := range st.Prefixes {
			scratch = m.Forward(scratch, lastToken(st.Prompt, prefix))
			dist[slot] = logits.LogSoftmax32(nil, scratch)
		}
		out[i] = dist
	}
	return out, nil
}
