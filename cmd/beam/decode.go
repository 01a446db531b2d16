package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/beam"
	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/logger"
	"github.com/samcharles93/beamsearch/internal/model"
)

func decodeCmd() *cli.Command {
	var (
		search    searchSettings
		prompts   []string
		inputPath string
		format    string
		progress  bool
	)

	return &cli.Command{
		Name:      "decode",
		Usage:     "Run beam search over one or more prompts",
		ArgsUsage: "[prompt...]",
		Flags: append(append(commonModelFlags(), searchFlags(&search)...),
			&cli.StringSliceFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "space separated prompt tokens (repeatable)",
				Destination: &prompts,
			},
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "file with one prompt per line (- for stdin)",
				Destination: &inputPath,
			},
			&cli.StringFlag{
				Name:        "format",
				Aliases:     []string{"f"},
				Usage:       "output format (table, json)",
				Value:       "table",
				Destination: &format,
			},
			&cli.BoolFlag{
				Name:        "progress",
				Usage:       "show a progress bar on stderr",
				Destination: &progress,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)
			applyModelConfig(cmd, cfg)
			applySearchConfig(cmd, cfg, &search)

			if format != "table" && format != "json" {
				return cli.Exit(fmt.Sprintf("error: unknown format %q", format), 1)
			}

			m, err := loadModel(os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			texts, err := readPrompts(append(prompts, cmd.Args().Slice()...), inputPath, os.Stdin)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(texts) == 0 {
				texts = []string{""}
			}
			ids := make([][]int, len(texts))
			for i, text := range texts {
				if ids[i], err = m.Vocabulary().Encode(text); err != nil {
					return cli.Exit(fmt.Sprintf("error: prompt %d: %v", i+1, err), 1)
				}
			}

			opts := search.options(m.Special())
			var bar *progressbar.ProgressBar
			if progress && len(ids) > 1 {
				bar = progressbar.NewOptions(len(ids),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionSetDescription("decoding"),
					progressbar.OptionShowCount(),
					progressbar.OptionSetItsString("prompts"),
					progressbar.OptionClearOnFinish(),
				)
				opts.Progress = func(done, _ int) { _ = bar.Set(done) }
			}

			dec, err := decode.NewDecoder(m, opts, log.With("model", m.Name()))
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Debug("decoding", "model", m.Name(), "prompts", len(ids), "beam_size", opts.Beam.BeamSize)
			results, stats, err := dec.Decode(ctx, ids)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			out := cmd.Root().Writer
			if format == "json" {
				err = renderJSON(out, m, texts, results, stats)
			} else {
				renderTable(out, m, texts, results)
			}
			if err != nil {
				return err
			}
			log.Info("decode finished",
				"prompts", stats.Examples,
				"failed", stats.Failed,
				"steps", stats.Steps,
				"elapsed", stats.Duration,
			)
			if stats.Failed > 0 {
				return cli.Exit(fmt.Sprintf("error: %d of %d prompts failed", stats.Failed, stats.Examples), 1)
			}
			return nil
		},
	}
}

// loadModel builds the model selected by the model flags.
func loadModel(stdin io.Reader, stderr io.Writer) (model.Model, error) {
	if useToy || modelPath == model.ToyName {
		toy, err := model.NewToy(toyConfig())
		if err != nil {
			return nil, err
		}
		return toy, nil
	}
	path, err := resolveModelPath(modelPath, modelsPath, stdin, stderr)
	if err != nil {
		return nil, err
	}
	m, err := model.Load(path)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func hypText(m model.Model, ids []int) string {
	sp := m.Special()
	return m.Vocabulary().Decode(ids, sp.Pad, sp.Start, sp.End)
}

func renderTable(w io.Writer, m model.Model, prompts []string, results []decode.Result) {
	table := newTable(w, "#", "PROMPT", "RANK", "OUTPUT", "SCORE", "STEPS")

	for i, res := range results {
		idx := strconv.Itoa(i + 1)
		if res.Err != nil {
			table.Append([]string{idx, prompts[i], "-", "error: " + res.Err.Error(), "-", strconv.Itoa(res.Steps)})
			continue
		}
		for rank, h := range res.Hypotheses {
			row := []string{"", "", strconv.Itoa(rank + 1), hypText(m, h.Tokens), formatScore(beam.Finite(h.Score)), ""}
			if rank == 0 {
				row[0], row[1], row[5] = idx, prompts[i], stepsLabel(res)
			}
			table.Append(row)
		}
	}
	table.Render()
}

func stepsLabel(res decode.Result) string {
	s := strconv.Itoa(res.Steps)
	if !res.Done {
		s += "*"
	}
	return s
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

type jsonHypothesis struct {
	Tokens []int   `json:"tokens"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

type jsonResult struct {
	Prompt     string           `json:"prompt"`
	Steps      int              `json:"steps"`
	Done       bool             `json:"done"`
	Hypotheses []jsonHypothesis `json:"hypotheses,omitempty"`
	Error      string           `json:"error,omitempty"`
}

type jsonOutput struct {
	Model   string       `json:"model"`
	Results []jsonResult `json:"results"`
	Steps   int          `json:"steps"`
	Elapsed string       `json:"elapsed"`
}

func renderJSON(w io.Writer, m model.Model, prompts []string, results []decode.Result, stats decode.Stats) error {
	out := jsonOutput{
		Model:   m.Name(),
		Results: make([]jsonResult, len(results)),
		Steps:   stats.Steps,
		Elapsed: stats.Duration.Round(time.Microsecond).String(),
	}
	for i, res := range results {
		jr := jsonResult{Prompt: strings.TrimSpace(prompts[i]), Steps: res.Steps, Done: res.Done}
		if res.Err != nil {
			jr.Error = res.Err.Error()
		}
		for _, h := range res.Hypotheses {
			jr.Hypotheses = append(jr.Hypotheses, jsonHypothesis{Tokens: h.Tokens, Text: hypText(m, h.Tokens), Score: beam.Finite(h.Score)})
		}
		out.Results[i] = jr
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
