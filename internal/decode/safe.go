package decode

import (
	"context"
	"fmt"

	"github.com/samcharles93/beamsearch/internal/beam"
)

// recovered converts a recovered panic value into an error, keeping the
// chain of error values intact so callers can match *beam.ContractError.
func recovered(op string, r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic in %s: %w", op, err)
	}
	return fmt.Errorf("panic in %s: %v", op, r)
}

func safeScore(ctx context.Context, s Scorer, steps []Step) (dists [][][]float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			dists, err = nil, recovered("Score", r)
		}
	}()
	return s.Score(ctx, steps)
}

func safeAdvance(b *beam.Beam, dist [][]float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recovered("Advance", r)
		}
	}()
	return b.Advance(dist)
}

func safeNBest(b *beam.Beam, n int) (hyps []beam.Hypothesis, err error) {
	defer func() {
		if r := recover(); r != nil {
			hyps, err = nil, recovered("NBest", r)
		}
	}()
	b.CheckFinished()
	return b.NBest(n), nil
}
