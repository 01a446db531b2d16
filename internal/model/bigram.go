package model

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/logits"
	"github.com/samcharles93/beamsearch/internal/vocab"
)

// DefaultFloor is the score of a transition missing from a sparse table.
const DefaultFloor = -20.0

// BigramSpec is the file form of a bigram model. Exactly one of Logits (a
// dense V x V table, row = previous token) or Transitions (previous token ->
// next token -> score) must be set.
type BigramSpec struct {
	Name   string   `json:"name,omitempty" yaml:"name,omitempty"`
	Tokens []string `json:"tokens" yaml:"tokens"`

	// Special token ids; nil selects DefaultSpecial.
	Pad   *int `json:"pad,omitempty" yaml:"pad,omitempty"`
	Start *int `json:"start,omitempty" yaml:"start,omitempty"`
	End   *int `json:"end,omitempty" yaml:"end,omitempty"`

	// Normalize turns every row into log-probabilities at load time.
	Normalize bool     `json:"normalize,omitempty" yaml:"normalize,omitempty"`
	Floor     *float64 `json:"floor,omitempty" yaml:"floor,omitempty"`

	Logits      [][]float64                   `json:"logits,omitempty" yaml:"logits,omitempty"`
	Transitions map[string]map[string]float64 `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// Bigram scores the next token from the previous one. It is immutable after
// construction and safe for concurrent use.
type Bigram struct {
	name    string
	vocab   *vocab.Vocab
	special Special
	rows    [][]float64
}

// NewBigram validates spec and builds the transition table.
func NewBigram(spec BigramSpec) (*Bigram, error) {
	voc, err := vocab.New(spec.Tokens)
	if err != nil {
		return nil, err
	}
	n := voc.Len()
	if n == 0 {
		return nil, errors.New("bigram: empty vocabulary")
	}

	special := DefaultSpecial
	for _, f := range []struct {
		name string
		src  *int
		dst  *int
	}{
		{"pad", spec.Pad, &special.Pad},
		{"start", spec.Start, &special.Start},
		{"end", spec.End, &special.End},
	} {
		if f.src != nil {
			*f.dst = *f.src
		}
		if *f.dst < 0 || *f.dst >= n {
			return nil, fmt.Errorf("bigram: %s token %d outside vocabulary of %d", f.name, *f.dst, n)
		}
	}

	var rows [][]float64
	switch {
	case spec.Logits != nil && spec.Transitions != nil:
		return nil, errors.New("bigram: logits and transitions are mutually exclusive")
	case spec.Logits != nil:
		rows, err = denseRows(spec.Logits, n)
	case spec.Transitions != nil:
		floor := DefaultFloor
		if spec.Floor != nil {
			floor = *spec.Floor
		}
		rows, err = sparseRows(spec.Transitions, voc, floor)
	default:
		return nil, errors.New("bigram: one of logits or transitions is required")
	}
	if err != nil {
		return nil, err
	}

	if spec.Normalize {
		for i, row := range rows {
			rows[i] = logits.LogSoftmax(row, row)
		}
	}
	return &Bigram{name: spec.Name, vocab: voc, special: special, rows: rows}, nil
}

func denseRows(src [][]float64, n int) ([][]float64, error) {
	if len(src) != n {
		return nil, fmt.Errorf("bigram: %d logit rows for %d tokens", len(src), n)
	}
	rows := make([][]float64, n)
	for i, row := range src {
		if len(row) != n {
			return nil, fmt.Errorf("bigram: logit row %d has %d entries, want %d", i, len(row), n)
		}
		for j, v := range row {
			if math.IsNaN(v) {
				return nil, fmt.Errorf("bigram: logit (%d, %d) is NaN", i, j)
			}
		}
		rows[i] = append([]float64(nil), row...)
	}
	return rows, nil
}

func sparseRows(src map[string]map[string]float64, voc *vocab.Vocab, floor float64) ([][]float64, error) {
	n := voc.Len()
	rows := make([][]float64, n)
	for i := range rows {
		rows[i] = make([]float64, n)
		for j := range rows[i] {
			rows[i][j] = floor
		}
	}
	for from, next := range src {
		i, ok := voc.ID(from)
		if !ok {
			return nil, fmt.Errorf("bigram: transition from unknown token %q", from)
		}
		for to, score := range next {
			j, ok := voc.ID(to)
			if !ok {
				return nil, fmt.Errorf("bigram: transition %q -> unknown token %q", from, to)
			}
			rows[i][j] = score
		}
	}
	return rows, nil
}

func (m *Bigram) Name() string             { return m.name }
func (m *Bigram) Vocabulary() *vocab.Vocab { return m.vocab }
func (m *Bigram) Special() Special         { return m.special }

// transition returns the score of next following prev.
func (m *Bigram) transition(prev, next int) float64 { return m.rows[prev][next] }

// Score returns, for every slot, the table row of the slot's last token.
// Rows are shared with the model and must not be modified.
func (m *Bigram) Score(ctx context.Context, steps []decode.Step) ([][][]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([][][]float64, len(steps))
	for i, st := range steps {
		dist := make([][]float64, len(st.Prefixes))
		for slot, prefix := range st.Prefixes {
			tok := lastToken(st.Prompt, prefix)
			if tok < 0 || tok >= len(m.rows) {
				return nil, fmt.Errorf("example %d: token %d outside vocabulary of %d", st.Example, tok, len(m.rows))
			}
			dist[slot] = m.rows[tok]
		}
		out[i] = dist
	}
	return out, nil
}
