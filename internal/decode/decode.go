// Package decode drives a batch of beams in lockstep against a Scorer.
package decode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samcharles93/beamsearch/internal/beam"
	"github.com/samcharles93/beamsearch/internal/logger"
)

// Step is the scoring request for one example.
type Step struct {
	// Example is the index of the prompt in the batch.
	Example int
	Prompt  []int
	// Prefixes holds one forward token sequence per beam slot, start token
	// first.
	Prefixes [][]int
}

// Scorer produces next-token log-probabilities. For every step it must
// return one BeamSize x vocabulary matrix, in the same order as steps.
type Scorer interface {
	Score(ctx context.Context, steps []Step) ([][][]float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, steps []Step) ([][][]float64, error)

func (f ScorerFunc) Score(ctx context.Context, steps []Step) ([][][]float64, error) {
	return f(ctx, steps)
}

const (
	DefaultMaxSteps = 64
	DefaultNBest    = 1
)

// reserveSteps bounds the trellis preallocated per beam; longer decodes grow
// it on demand.
const reserveSteps = 32

// Options configures a Decoder. Zero values of MaxSteps, NBest and
// Parallelism select the defaults.
type Options struct {
	Beam beam.Config
	// MaxSteps bounds the number of Advance calls per example.
	MaxSteps int
	// NBest is the number of hypotheses returned per example.
	NBest int
	// Parallelism bounds the number of beams advanced concurrently.
	Parallelism int
	// Progress, when set, is called after every step with the number of
	// examples that stopped decoding so far.
	Progress func(done, total int)
}

func (o Options) withDefaults() Options {
	if o.MaxSteps == 0 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.NBest == 0 {
		o.NBest = DefaultNBest
	}
	if o.Parallelism == 0 {
		o.Parallelism = runtime.GOMAXPROCS(0)
	}
	return o
}

// Validate checks the options after defaults are applied.
func (o Options) Validate() error {
	if err := o.Beam.Validate(); err != nil {
		return err
	}
	if o.MaxSteps < 0 {
		return fmt.Errorf("%w: max steps must be positive, got %d", beam.ErrInvalidConfig, o.MaxSteps)
	}
	if o.NBest < 0 {
		return fmt.Errorf("%w: n-best must be positive, got %d", beam.ErrInvalidConfig, o.NBest)
	}
	if o.Parallelism < 0 {
		return fmt.Errorf("%w: parallelism must be positive, got %d", beam.ErrInvalidConfig, o.Parallelism)
	}
	return nil
}

// Result is the outcome of decoding one prompt.
type Result struct {
	Index      int
	Hypotheses []beam.Hypothesis
	// Steps is the number of Advance calls the example received.
	Steps int
	// Done is false when the example hit MaxSteps before collecting
	// MinNBest finished hypotheses.
	Done bool
	// Err is set when the example failed; other examples are unaffected.
	Err error
}

// Stats summarises a Decode call.
type Stats struct {
	Steps          int
	Examples       int
	Failed         int
	Duration       time.Duration
	StepsPerSecond float64
}

// Decoder decodes batches of prompts. It is safe for concurrent use; each
// Decode call owns its beams.
type Decoder struct {
	scorer Scorer
	opts   Options
	log    logger.Logger
}

// NewDecoder validates opts and returns a Decoder. A nil log discards
// output.
func NewDecoder(scorer Scorer, opts Options, log logger.Logger) (*Decoder, error) {
	if scorer == nil {
		return nil, errors.New("decode: nil scorer")
	}
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Decoder{scorer: scorer, opts: opts, log: log}, nil
}

// Options returns the options in effect, defaults applied.
func (d *Decoder) Options() Options { return d.opts }

// Decode runs beam search for every prompt. The scorer is called once per
// step with all examples that are still decoding. Scorer failures and
// cancellation abort the batch; a failure inside one example's beam is
// reported in its Result and the rest of the batch continues.
func (d *Decoder) Decode(ctx context.Context, prompts [][]int) ([]Result, Stats, error) {
	start := time.Now()
	stats := Stats{Examples: len(prompts)}

	beams := make([]*beam.Beam, len(prompts))
	results := make([]Result, len(prompts))
	for i := range prompts {
		b, err := beam.New(d.opts.Beam)
		if err != nil {
			return nil, stats, err
		}
		b.Reserve(min(d.opts.MaxSteps, reserveSteps))
		beams[i] = b
		results[i].Index = i
	}

	active := make([]int, 0, len(prompts))
	for step := 0; step < d.opts.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		active = active[:0]
		for i, b := range beams {
			if results[i].Err == nil && !b.Done() {
				active = append(active, i)
			}
		}
		if len(active) == 0 {
			break
		}

		steps := make([]Step, len(active))
		for j, i := range active {
			steps[j] = Step{Example: i, Prompt: prompts[i], Prefixes: prefixes(beams[i])}
		}
		dists, err := safeScore(ctx, d.scorer, steps)
		if err != nil {
			return nil, stats, fmt.Errorf("score step %d: %w", step, err)
		}
		if len(dists) != len(active) {
			return nil, stats, fmt.Errorf("score step %d: scorer returned %d matrices for %d examples",
				step, len(dists), len(active))
		}

		var g errgroup.Group
		g.SetLimit(d.opts.Parallelism)
		for j, i := range active {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := safeAdvance(beams[i], dists[j]); err != nil {
					results[i].Err = fmt.Errorf("example %d step %d: %w", i, step, err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, stats, err
		}
		stats.Steps++

		done := 0
		for i, b := range beams {
			if results[i].Err != nil || b.Done() {
				done++
			}
		}
		for _, i := range active {
			if results[i].Err != nil {
				d.log.Warn("example failed", "example", i, "step", step, "error", results[i].Err)
			}
		}
		if d.log.Enabled(slog.LevelDebug) {
			d.log.Debug("decode step", "step", step, "active", len(active), "finished", done)
		}
		if d.opts.Progress != nil {
			d.opts.Progress(done, len(prompts))
		}
	}

	for i, b := range beams {
		res := &results[i]
		res.Steps = b.Steps()
		if res.Err != nil {
			stats.Failed++
			continue
		}
		res.Done = b.Done()
		hyps, err := safeNBest(b, d.opts.NBest)
		if err != nil {
			res.Err = fmt.Errorf("example %d: %w", i, err)
			stats.Failed++
			continue
		}
		res.Hypotheses = hyps
	}

	stats.Duration = time.Since(start)
	if stats.Duration.Seconds() > 0 {
		stats.StepsPerSecond = float64(stats.Steps) / stats.Duration.Seconds()
	}
	d.log.Debug("decode finished",
		"examples", stats.Examples,
		"failed", stats.Failed,
		"steps", stats.Steps,
		"elapsed", stats.Duration,
	)
	return results, stats, nil
}

func prefixes(b *beam.Beam) [][]int {
	out := make([][]int, b.Width())
	for slot := range out {
		out[slot] = b.Prefix(slot, nil)
	}
	return out
}
