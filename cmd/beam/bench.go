package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/logger"
	"github.com/samcharles93/beamsearch/internal/model"
)

func benchCmd() *cli.Command {
	var (
		search     searchSettings
		warmupRuns int64
		benchRuns  int64
		batch      int64
	)

	return &cli.Command{
		Name:    "bench",
		Aliases: []string{"benchmark"},
		Usage:   "Measure batch decode throughput",
		Flags: append(append(commonModelFlags(), searchFlags(&search)...),
			&cli.Int64Flag{
				Name:        "warmup",
				Usage:       "number of warmup runs",
				Value:       1,
				Destination: &warmupRuns,
			},
			&cli.Int64Flag{
				Name:        "runs",
				Usage:       "number of benchmark runs",
				Value:       3,
				Destination: &benchRuns,
			},
			&cli.Int64Flag{
				Name:        "batch",
				Aliases:     []string{"b"},
				Usage:       "prompts decoded per run",
				Value:       64,
				Destination: &batch,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)
			applyModelConfig(cmd, cfg)
			applySearchConfig(cmd, cfg, &search)
			if benchRuns < 1 || batch < 1 {
				return cli.Exit("error: --runs and --batch must be positive", 1)
			}
			if modelPath == "" && modelsPath == "" && os.Getenv(model.EnvModelsDir) == "" {
				useToy = true
			}

			m, err := loadModel(os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			dec, err := decode.NewDecoder(m, search.options(m.Special()), log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			prompts := benchPrompts(m, int(batch))
			out := cmd.Root().Writer

			opts := dec.Options()
			_, _ = fmt.Fprintf(out, "Model:       %s\n", m.Name())
			_, _ = fmt.Fprintf(out, "Vocab:       %d\n", m.Vocabulary().Len())
			_, _ = fmt.Fprintf(out, "Beam size:   %d\n", opts.Beam.BeamSize)
			_, _ = fmt.Fprintf(out, "Batch:       %d\n", batch)
			_, _ = fmt.Fprintf(out, "Max steps:   %d\n", opts.MaxSteps)
			_, _ = fmt.Fprintf(out, "Parallel:    %d\n", opts.Parallelism)
			_, _ = fmt.Fprintf(out, "GOMAXPROCS:  %d\n\n", runtime.GOMAXPROCS(0))

			for i := range int(warmupRuns) {
				log.Info("warmup run", "run", i+1)
				if _, _, err := dec.Decode(ctx, prompts); err != nil {
					return cli.Exit(fmt.Sprintf("error: warmup run %d: %v", i+1, err), 1)
				}
			}

			runs := make([]decode.Stats, 0, benchRuns)
			for i := range int(benchRuns) {
				log.Info("benchmark run", "run", i+1)
				_, stats, err := dec.Decode(ctx, prompts)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: benchmark run %d: %v", i+1, err), 1)
				}
				runs = append(runs, stats)
			}
			renderBench(out, runs)

			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			_, _ = fmt.Fprintf(out, "\nMemory: %.1f MB alloc, %.1f MB sys\n",
				float64(mem.Alloc)/(1024*1024),
				float64(mem.Sys)/(1024*1024))
			return nil
		},
	}
}

// benchPrompts builds n single-token prompts cycling through the ordinary
// tokens of the vocabulary.
func benchPrompts(m model.Model, n int) [][]int {
	sp := m.Special()
	var ordinary []int
	for id := range m.Vocabulary().Len() {
		if id != sp.Pad && id != sp.Start && id != sp.End {
			ordinary = append(ordinary, id)
		}
	}
	prompts := make([][]int, n)
	for i := range prompts {
		if len(ordinary) > 0 {
			prompts[i] = []int{ordinary[i%len(ordinary)]}
		}
	}
	return prompts
}

func renderBench(w io.Writer, runs []decode.Stats) {
	table := newTable(w, "RUN", "STEPS", "STEPS/S", "PROMPTS/S", "FAILED", "DURATION")

	var sumSteps, sumPrompts float64
	for i, s := range runs {
		pps := promptsPerSecond(s)
		sumSteps += s.StepsPerSecond
		sumPrompts += pps
		table.Append([]string{
			fmt.Sprint(i + 1),
			fmt.Sprint(s.Steps),
			fmt.Sprintf("%.2f", s.StepsPerSecond),
			fmt.Sprintf("%.2f", pps),
			fmt.Sprint(s.Failed),
			s.Duration.Round(time.Microsecond).String(),
		})
	}
	if n := float64(len(runs)); n > 0 {
		table.Append([]string{"avg", "", fmt.Sprintf("%.2f", sumSteps/n), fmt.Sprintf("%.2f", sumPrompts/n), "", ""})
	}
	table.Render()
}

func promptsPerSecond(s decode.Stats) float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Examples) / s.Duration.Seconds()
}
