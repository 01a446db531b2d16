package beam

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// scenarioBeam runs three hand-picked steps with beam size 3 over a
// four-token vocabulary (pad, start, end, 3):
//
//	t=1: slot0=3 (-0.5)  slot1=end (-1.5)  slot2=pad (-2.0)
//	t=2: slot0=end (-0.75, from 0)  slot1=3 (-1.5, from 0)  slot2=3 (-2.5, from 2)
//	t=3: slot0=end (-1.6, from 1)   slot1=3 (-2.5, from 1)  slot2=end (-2.7, from 2)
func scenarioBeam(t *testing.T) *Beam {
	t.Helper()
	cfg := testConfig(3)
	cfg.MinNBest = 3
	b := mustNew(t, cfg)

	mustAdvance(t, b, repeatRows(3, []float64{-2.0, -3.0, -1.5, -0.5}))
	if b.Done() {
		t.Fatalf("done after step 1")
	}

	mustAdvance(t, b, [][]float64{
		{-3.0, -4.0, -0.25, -1.0},
		{0, 0, 0, 0}, // finished slot, vetoed
		{-1.0, -4.0, -2.0, -0.5},
	})
	if b.Done() {
		t.Fatalf("done after step 2 with only two finished hypotheses")
	}

	mustAdvance(t, b, [][]float64{
		{0, 0, 0, 0}, // finished slot, vetoed
		{-2.0, -2.0, -0.1, -1.0},
		{-2.0, -2.0, -0.2, -3.0},
	})
	return b
}

func TestScenarioTrellis(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	if diff := cmp.Diff([]int{tokEnd, 3, tokEnd}, b.CurrentTokens()); diff != "" {
		t.Fatalf("final tokens (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 1, 2}, b.CurrentBackpointers()); diff != "" {
		t.Fatalf("final backpointers (-want +got):\n%s", diff)
	}
	if !b.Done() {
		t.Fatalf("expected beam to be done")
	}
	if ts, ok := b.TopFinishedStep(); !ok || ts != 2 {
		t.Fatalf("TopFinishedStep: got %d,%v want 2", ts, ok)
	}

	want := []HypothesisTail{
		{Timestep: 1, Slot: 1, Score: -1.5, Token: tokEnd},
		{Timestep: 2, Slot: 0, Score: -0.75, Token: tokEnd},
		{Timestep: 3, Slot: 0, Score: -1.6, Token: tokEnd},
		{Timestep: 3, Slot: 2, Score: -2.7, Token: tokEnd},
	}
	approx := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < 1e-9 })
	if diff := cmp.Diff(want, b.Finished(), approx); diff != "" {
		t.Fatalf("finished (-want +got):\n%s", diff)
	}
}

func TestScenarioTopHyp(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	top := b.TopHyp()
	if diff := cmp.Diff([]int{tokStart, 3, tokEnd}, top.Tokens); diff != "" {
		t.Fatalf("top tokens (-want +got):\n%s", diff)
	}
	wantScore := -0.75 / math.Pow(4.0/6.0, 0.65)
	if math.Abs(top.Score-wantScore) > 1e-6 {
		t.Fatalf("top score: got %.9f want %.9f", top.Score, wantScore)
	}
}

func TestScenarioNBestOrder(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	got := b.NBest(0)
	wantTokens := [][]int{
		{tokStart, 3, tokEnd},
		{tokStart, 3, 3, tokEnd},
		{tokStart, tokEnd},
		{tokStart, tokPad, 3, tokEnd},
	}
	if len(got) != len(wantTokens) {
		t.Fatalf("expected %d hypotheses, got %d", len(wantTokens), len(got))
	}
	for i, h := range got {
		if diff := cmp.Diff(wantTokens[i], h.Tokens); diff != "" {
			t.Fatalf("hypothesis %d tokens (-want +got):\n%s", i, diff)
		}
		if i > 0 && h.Score > got[i-1].Score {
			t.Fatalf("hypotheses not sorted: %v > %v", h.Score, got[i-1].Score)
		}
	}

	if two := b.NBest(2); len(two) != 2 {
		t.Fatalf("NBest(2) returned %d hypotheses", len(two))
	}
}

func TestRescoringIdempotent(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	first := b.RescoredFinished(0)
	second := b.RescoredFinished(0)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("rescoring changed between calls (-first +second):\n%s", diff)
	}
	// Raw scores must be untouched by rescoring.
	if b.Finished()[1].Score != -0.75 {
		t.Fatalf("rescoring modified the finished record: %v", b.Finished()[1].Score)
	}
	for _, tail := range first {
		raw := b.PartialHypFromTail(tail.Timestep, tail.Slot)[0].Score
		want := raw / math.Pow(float64(tail.Timestep+2)/6, 0.65)
		if math.Abs(tail.Score-want) > 1e-9 {
			t.Fatalf("rescored %+v: want score %v", tail, want)
		}
	}
}

func TestReplayCorrectness(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	for _, tail := range b.Finished() {
		seq := b.HypFromFinished(tail)
		if len(seq) != tail.Timestep+1 {
			t.Fatalf("replay of %+v has %d cells", tail, len(seq))
		}
		if seq[0].Token != tokEnd {
			t.Fatalf("replay of %+v does not start at the end token", tail)
		}
		if last := seq[len(seq)-1]; last.Token != tokStart || last.Timestep != 0 {
			t.Fatalf("replay of %+v does not reach the start token: %+v", tail, last)
		}
		for _, cell := range seq {
			if cell.Score != b.scoreRow(cell.Timestep)[cell.Slot] {
				t.Fatalf("cell %+v score differs from trellis", cell)
			}
			if cell.Token != b.tokenRow(cell.Timestep)[cell.Slot] {
				t.Fatalf("cell %+v token differs from trellis", cell)
			}
		}
	}

	// The partial replay of the unfinished slot follows slot1 -> slot1 -> slot0.
	partial := b.PartialHypFromTail(3, 1)
	want := []HypothesisTail{
		{Timestep: 3, Slot: 1, Score: -2.5, Token: 3},
		{Timestep: 2, Slot: 1, Score: -1.5, Token: 3},
		{Timestep: 1, Slot: 0, Score: -0.5, Token: 3},
		{Timestep: 0, Slot: 0, Score: 0, Token: tokStart},
	}
	approx := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < 1e-9 })
	if diff := cmp.Diff(want, partial, approx); diff != "" {
		t.Fatalf("partial replay (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{tokStart, 3, 3, 3}, ForwardTokens(partial)); diff != "" {
		t.Fatalf("forward tokens (-want +got):\n%s", diff)
	}
}

func TestHypothesisTailEquality(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	top := b.RescoredFinished(1)[0]
	seq := b.HypFromFinished(top)
	cell := HypothesisTail{Timestep: 1, Slot: 0, Score: -0.5, Token: 3}
	found := false
	for _, c := range seq {
		if c == cell {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %+v in top hypothesis %+v", cell, seq)
	}
	if cell == (HypothesisTail{Timestep: 1, Slot: 0, Score: -0.5, Token: 0}) {
		t.Fatalf("tails with different tokens compared equal")
	}
}

func TestPrefix(t *testing.T) {
	t.Parallel()
	b := scenarioBeam(t)

	want := [][]int{
		{tokStart, 3, 3, tokEnd},
		{tokStart, 3, 3, 3},
		{tokStart, tokPad, 3, tokEnd},
	}
	var buf []int
	for slot, w := range want {
		buf = b.Prefix(slot, buf)
		if diff := cmp.Diff(w, buf); diff != "" {
			t.Fatalf("slot %d prefix (-want +got):\n%s", slot, diff)
		}
	}
	expectContractViolation(t, func() { b.Prefix(3, nil) })
}
