package beam

import (
	"fmt"

	"github.com/samcharles93/beamsearch/internal/logits"
)

// Advance moves the beam forward by one step. dist holds one row per beam
// slot, each a vector of additive (log-space) scores over the vocabulary for
// the token that extends the hypothesis ending at that slot. dist is not
// modified.
//
// The step proceeds as follows:
//
//  1. Below MinLength completed steps the end token is vetoed in every row.
//  2. On the first step only row 0 competes, since every slot holds the same
//     start-token stub; later steps add each slot's cumulative score to its
//     row.
//  3. Slots that already emitted the end token are vetoed entirely.
//  4. With BlockNgram > 0, a slot whose hypothesis already repeats any n-gram
//     of size 1..BlockNgram is vetoed entirely.
//  5. The BeamSize best candidates of the flattened matrix are kept, ties
//     going to the lower slot and then the lower token id.
//  6. The new scores, tokens and backpointers are appended to the trellis and
//     every slot that chose the end token is recorded as finished.
//
// Shape errors are reported before any state changes.
func (b *Beam) Advance(dist [][]float64) error {
	v, err := b.checkShape(dist)
	if err != nil {
		return err
	}
	b.vocab = v

	w := b.width
	step := b.Steps()
	end := b.cfg.End

	rows := w
	if step == 0 {
		rows = 1
	}
	n := rows * v
	if cap(b.joint) < w*v {
		b.joint = make([]float64, w*v)
	}
	joint := b.joint[:n]

	if step == 0 {
		copy(joint, dist[0])
	} else {
		prev := b.scoreRow(step)
		for s := range rows {
			row := joint[s*v : (s+1)*v]
			base := prev[s]
			for tok, p := range dist[s] {
				row[tok] = base + p
			}
		}
	}

	if step < b.cfg.MinLength {
		for s := range rows {
			joint[s*v+end] = NegInf
		}
	}

	if step > 0 {
		lastTokens := b.tokenRow(step)
		for s := range rows {
			if lastTokens[s] == end || b.blocked(step, s) {
				veto(joint[s*v : (s+1)*v])
			}
		}
	}

	b.topIdx, b.topVal = logits.TopK(joint, w, b.topIdx, b.topVal)

	t := step + 1
	for i := range w {
		flat := b.topIdx[i]
		tok := flat % v
		b.scores = append(b.scores, b.topVal[i])
		b.tokens = append(b.tokens, tok)
		b.backptrs = append(b.backptrs, flat/v)

		if tok == end {
			b.finished = append(b.finished, HypothesisTail{
				Timestep: t,
				Slot:     i,
				Score:    b.topVal[i],
				Token:    end,
			})
			b.nBest++
		}
	}

	if b.tokenRow(t)[0] == end {
		b.topFinished = true
		if b.topFinishedStep < 0 {
			b.topFinishedStep = t
		}
	}
	return nil
}

// checkShape validates dist and returns its vocabulary size.
func (b *Beam) checkShape(dist [][]float64) (int, error) {
	if len(dist) != b.width {
		return 0, fmt.Errorf("%w: got %d rows, beam size is %d", ErrShapeMismatch, len(dist), b.width)
	}
	v := len(dist[0])
	if v == 0 {
		return 0, fmt.Errorf("%w: empty vocabulary", ErrShapeMismatch)
	}
	if b.vocab != 0 && v != b.vocab {
		return 0, fmt.Errorf("%w: vocabulary size changed from %d to %d", ErrShapeMismatch, b.vocab, v)
	}
	for i, row := range dist {
		if len(row) != v {
			return 0, fmt.Errorf("%w: row %d has %d entries, want %d", ErrShapeMismatch, i, len(row), v)
		}
	}
	if b.vocab == 0 {
		if v < b.width {
			return 0, fmt.Errorf("%w: vocabulary size %d is smaller than beam size %d", ErrShapeMismatch, v, b.width)
		}
		if maxID := max(b.cfg.Pad, b.cfg.Start, b.cfg.End); maxID >= v {
			return 0, fmt.Errorf("%w: special token id %d outside vocabulary of %d", ErrShapeMismatch, maxID, v)
		}
	}
	return v, nil
}

// blocked reports whether the hypothesis ending at (step, slot), without its
// start token, repeats an n-gram of any size up to BlockNgram. The whole slot
// is vetoed rather than the single repeating continuation.
func (b *Beam) blocked(step, slot int) bool {
	if b.cfg.BlockNgram <= 0 {
		return false
	}
	b.hyp = b.replayTokens(step, slot, b.hyp)
	return b.ngram.repeats(b.hyp[1:], b.cfg.BlockNgram)
}

func veto(row []float64) {
	for i := range row {
		row[i] = NegInf
	}
}
