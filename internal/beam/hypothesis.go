package beam

import (
	"cmp"
	"math"
	"slices"
)

// HypothesisTail identifies one cell of the trellis: the token chosen by a
// slot at a timestep together with its cumulative score. It is comparable;
// two tails are equal when all four fields match.
type HypothesisTail struct {
	Timestep int
	Slot     int
	Score    float64
	Token    int
}

// Hypothesis is a reconstructed sequence, start token first.
type Hypothesis struct {
	Tokens []int
	// Score is the length-penalised score used for ranking.
	Score float64
	Tail  HypothesisTail
}

// lengthPenalty uses the GNMT weights; length counts the start token.
func lengthPenalty(timestep int) float64 {
	length := timestep + 1
	return math.Pow(float64(1+length)/6, 0.65)
}

// RescoredFinished returns the finished hypotheses with their scores divided
// by the length penalty, best first. A positive nBest truncates the result;
// nBest <= 0 means no limit and returns every finished hypothesis.
func (b *Beam) RescoredFinished(nBest int) []HypothesisTail {
	out := make([]HypothesisTail, len(b.finished))
	for i, f := range b.finished {
		f.Score /= lengthPenalty(f.Timestep)
		out[i] = f
	}
	slices.SortStableFunc(out, func(x, y HypothesisTail) int {
		return cmp.Compare(y.Score, x.Score)
	})
	if nBest > 0 && nBest < len(out) {
		out = out[:nBest]
	}
	return out
}

// HypFromFinished replays the hypothesis that ends at tail. The result runs
// from the end token back to the start token and has tail.Timestep+1
// entries. It panics with a *ContractError when tail does not point at an
// end token.
func (b *Beam) HypFromFinished(tail HypothesisTail) []HypothesisTail {
	b.checkCell("HypFromFinished", tail.Timestep, tail.Slot)
	if got := b.tokenRow(tail.Timestep)[tail.Slot]; got != b.cfg.End {
		violate("HypFromFinished", "cell (%d, %d) holds token %d, not end token %d",
			tail.Timestep, tail.Slot, got, b.cfg.End)
	}
	if tail.Token != b.cfg.End {
		violate("HypFromFinished", "tail token %d is not end token %d", tail.Token, b.cfg.End)
	}
	return b.PartialHypFromTail(tail.Timestep, tail.Slot)
}

// PartialHypFromTail replays the hypothesis ending at any cell, finished or
// not. Like HypFromFinished it returns the cells last to first.
func (b *Beam) PartialHypFromTail(timestep, slot int) []HypothesisTail {
	b.checkCell("PartialHypFromTail", timestep, slot)
	out := make([]HypothesisTail, 0, timestep+1)
	for t := timestep; t >= 0; t-- {
		out = append(out, HypothesisTail{
			Timestep: t,
			Slot:     slot,
			Score:    b.scoreRow(t)[slot],
			Token:    b.tokenRow(t)[slot],
		})
		if t > 0 {
			slot = b.follow(t, slot)
		}
	}
	return out
}

// Prefix returns the tokens of the hypothesis currently held by slot, start
// token first. dst is reused when large enough.
func (b *Beam) Prefix(slot int, dst []int) []int {
	b.checkCell("Prefix", b.Steps(), slot)
	return b.replayTokens(b.Steps(), slot, dst)
}

// replayTokens writes the tokens of the hypothesis ending at (timestep, slot)
// into dst in forward order.
func (b *Beam) replayTokens(timestep, slot int, dst []int) []int {
	if cap(dst) < timestep+1 {
		dst = make([]int, timestep+1)
	}
	dst = dst[:timestep+1]
	for t := timestep; t >= 0; t-- {
		dst[t] = b.tokenRow(t)[slot]
		if t > 0 {
			slot = b.follow(t, slot)
		}
	}
	return dst
}

// follow returns the slot at step t-1 that slot extends at step t.
func (b *Beam) follow(t, slot int) int {
	prev := b.backptrRow(t)[slot]
	if prev < 0 || prev >= b.width {
		violate("replay", "backpointer %d at (%d, %d) outside beam of %d", prev, t, slot, b.width)
	}
	return prev
}

func (b *Beam) checkCell(op string, timestep, slot int) {
	if timestep < 0 || timestep > b.Steps() {
		violate(op, "timestep %d outside [0, %d]", timestep, b.Steps())
	}
	if slot < 0 || slot >= b.width {
		violate(op, "slot %d outside beam of %d", slot, b.width)
	}
}

// CheckFinished guarantees at least one finished hypothesis. When the search
// never produced the end token, slot 0 of the latest step is overwritten with
// it and recorded as finished so callers always get a (poor) result.
func (b *Beam) CheckFinished() {
	if len(b.finished) > 0 {
		return
	}
	t := b.Steps()
	b.tokenRow(t)[0] = b.cfg.End
	b.finished = append(b.finished, HypothesisTail{
		Timestep: t,
		Slot:     0,
		Score:    b.scoreRow(t)[0],
		Token:    b.cfg.End,
	})
}

// TopHyp returns the best finished hypothesis after rescoring. It panics
// with a *ContractError when nothing has finished; call CheckFinished first
// if the search may have stopped early.
func (b *Beam) TopHyp() Hypothesis {
	best := b.RescoredFinished(1)
	if len(best) == 0 {
		violate("TopHyp", "no finished hypotheses")
	}
	return b.hypothesis(best[0])
}

// NBest returns up to n finished hypotheses in rescored order. n <= 0
// returns all of them.
func (b *Beam) NBest(n int) []Hypothesis {
	tails := b.RescoredFinished(n)
	out := make([]Hypothesis, len(tails))
	for i, tail := range tails {
		out[i] = b.hypothesis(tail)
	}
	return out
}

func (b *Beam) hypothesis(rescored HypothesisTail) Hypothesis {
	return Hypothesis{
		Tokens: ForwardTokens(b.HypFromFinished(rescored)),
		Score:  rescored.Score,
		Tail:   rescored,
	}
}

// Finite clamps a score into the finite range, mapping NaN and -Inf to
// NegInf and +Inf to -NegInf. Encoders that reject infinities use it.
func Finite(v float64) float64 {
	switch {
	case math.IsNaN(v), math.IsInf(v, -1):
		return NegInf
	case math.IsInf(v, 1):
		return -NegInf
	}
	return v
}

// ForwardTokens converts a last-to-first replay into token ids in forward
// order.
func ForwardTokens(tails []HypothesisTail) []int {
	out := make([]int, len(tails))
	for i, tail := range tails {
		out[len(tails)-1-i] = tail.Token
	}
	return out
}
