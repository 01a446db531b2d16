// Package beam implements beam search over a per-example backpointer
// trellis. A Beam is advanced one step at a time with a beam_size x vocab
// score matrix and keeps every step's cumulative scores, chosen tokens and
// backpointers in flat row-major buffers, so hypotheses are reconstructed by
// replaying backpointers rather than by holding linked hypothesis objects.
//
// A Beam is not safe for concurrent use. Independent beams share no state and
// may be advanced from different goroutines.
package beam

import (
	"fmt"
)

// NegInf is the score used to veto a candidate. It is finite so that adding
// cumulative scores to it never produces NaN.
const NegInf = -1e20

// Config holds the construction parameters of a Beam.
type Config struct {
	// BeamSize is the number of parallel hypotheses.
	BeamSize int
	// MinLength is the number of steps before the end token may be chosen.
	MinLength int
	// MinNBest is the number of finished hypotheses required before Done
	// reports true.
	MinNBest int
	// BlockNgram blocks hypotheses that repeat an n-gram of size up to
	// BlockNgram. Zero disables blocking.
	BlockNgram int

	Pad   int
	Start int
	End   int
}

// DefaultConfig returns the conventional settings: a single hypothesis,
// minimum length 3, pad/start/end ids 0/1/2 and three finished hypotheses
// before the search is considered done.
func DefaultConfig() Config {
	return Config{
		BeamSize:  1,
		MinLength: 3,
		MinNBest:  3,
		Pad:       0,
		Start:     1,
		End:       2,
	}
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	switch {
	case c.BeamSize <= 0:
		return fmt.Errorf("%w: beam size must be positive, got %d", ErrInvalidConfig, c.BeamSize)
	case c.MinLength < 0:
		return fmt.Errorf("%w: min length must not be negative, got %d", ErrInvalidConfig, c.MinLength)
	case c.MinNBest < 0:
		return fmt.Errorf("%w: min n-best must not be negative, got %d", ErrInvalidConfig, c.MinNBest)
	case c.BlockNgram < 0:
		return fmt.Errorf("%w: block n-gram must not be negative, got %d", ErrInvalidConfig, c.BlockNgram)
	case c.Pad < 0 || c.Start < 0 || c.End < 0:
		return fmt.Errorf("%w: special token ids must not be negative (pad=%d start=%d end=%d)",
			ErrInvalidConfig, c.Pad, c.Start, c.End)
	}
	return nil
}

// Beam is the search state for a single example.
type Beam struct {
	cfg   Config
	width int
	vocab int // 0 until the first Advance

	// Trellis rows are stored back to back. scores and tokens hold Steps()+1
	// rows, backptrs holds Steps() rows (there is none for the start row).
	scores   []float64
	tokens   []int
	backptrs []int

	finished        []HypothesisTail
	nBest           int
	topFinished     bool
	topFinishedStep int

	// scratch reused across Advance calls
	joint  []float64
	topIdx []int
	topVal []float64
	hyp    []int
	ngram  ngramCounter
}

// New returns a Beam positioned at step 0: every slot holds the start token
// with a zero score.
func New(cfg Config) (*Beam, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := cfg.BeamSize
	b := &Beam{
		cfg:             cfg,
		width:           w,
		scores:          make([]float64, w),
		tokens:          make([]int, w),
		topFinishedStep: -1,
	}
	for i := range b.tokens {
		b.tokens[i] = cfg.Start
	}
	return b, nil
}

// Reserve grows the trellis buffers so that the next steps calls to Advance
// do not reallocate.
func (b *Beam) Reserve(steps int) {
	if steps <= 0 {
		return
	}
	need := (b.Steps() + 1 + steps) * b.width
	if cap(b.scores) < need {
		s := make([]float64, len(b.scores), need)
		copy(s, b.scores)
		b.scores = s
	}
	if cap(b.tokens) < need {
		t := make([]int, len(b.tokens), need)
		copy(t, b.tokens)
		b.tokens = t
	}
	if cap(b.backptrs) < need-b.width {
		bp := make([]int, len(b.backptrs), need-b.width)
		copy(bp, b.backptrs)
		b.backptrs = bp
	}
}

// Config returns the configuration the beam was built with.
func (b *Beam) Config() Config { return b.cfg }

// Width returns the beam size.
func (b *Beam) Width() int { return b.width }

// VocabSize returns the vocabulary size fixed by the first Advance, or 0.
func (b *Beam) VocabSize() int { return b.vocab }

// Steps returns the number of completed Advance calls.
func (b *Beam) Steps() int { return len(b.backptrs) / b.width }

// Done reports whether the top slot has emitted the end token and at least
// MinNBest hypotheses have finished.
func (b *Beam) Done() bool {
	return b.topFinished && b.nBest >= b.cfg.MinNBest
}

// FinishedCount returns the number of recorded finished hypotheses.
func (b *Beam) FinishedCount() int { return len(b.finished) }

// Finished returns a copy of the finished hypothesis tails in the order they
// were recorded.
func (b *Beam) Finished() []HypothesisTail {
	return append([]HypothesisTail(nil), b.finished...)
}

// TopFinishedStep returns the first step at which slot 0 emitted the end
// token.
func (b *Beam) TopFinishedStep() (int, bool) {
	return b.topFinishedStep, b.topFinishedStep >= 0
}

// CurrentTokens returns a copy of the tokens chosen at the latest step.
func (b *Beam) CurrentTokens() []int {
	return append([]int(nil), b.tokenRow(b.Steps())...)
}

// CurrentScores returns a copy of the cumulative scores at the latest step.
func (b *Beam) CurrentScores() []float64 {
	return append([]float64(nil), b.scoreRow(b.Steps())...)
}

// CurrentBackpointers returns a copy of the latest backpointer row, or nil
// before the first Advance.
func (b *Beam) CurrentBackpointers() []int {
	t := b.Steps()
	if t == 0 {
		return nil
	}
	return append([]int(nil), b.backptrRow(t)...)
}

func (b *Beam) scoreRow(t int) []float64 {
	return b.scores[t*b.width : (t+1)*b.width]
}

func (b *Beam) tokenRow(t int) []int {
	return b.tokens[t*b.width : (t+1)*b.width]
}

// backptrRow returns the row linking step t to step t-1. t must be >= 1.
func (b *Beam) backptrRow(t int) []int {
	return b.backptrs[(t-1)*b.width : t*b.width]
}
