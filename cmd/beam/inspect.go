package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/logits"
	"github.com/samcharles93/beamsearch/internal/model"
)

func inspectCmd() *cli.Command {
	var (
		tokens     []string
		top        int64
		showVocab  bool
		vocabLimit int64
	)

	return &cli.Command{
		Name:  "inspect",
		Usage: "Show a model's vocabulary and most likely next tokens",
		Flags: append(commonModelFlags(),
			&cli.StringSliceFlag{
				Name:        "token",
				Aliases:     []string{"t"},
				Usage:       "show next-token scores after this token (repeatable; default start token)",
				Destination: &tokens,
			},
			&cli.Int64Flag{
				Name:        "top",
				Usage:       "next tokens listed per token",
				Value:       5,
				Destination: &top,
			},
			&cli.BoolFlag{Name: "vocab", Usage: "list vocabulary entries", Destination: &showVocab},
			&cli.Int64Flag{Name: "vocab-limit", Usage: "limit vocab listing (0 = no limit)", Value: 50, Destination: &vocabLimit},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applyModelConfig(cmd, configFrom(ctx))
			m, err := loadModel(os.Stdin, os.Stderr)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			out := cmd.Root().Writer
			voc := m.Vocabulary()
			sp := m.Special()
			_, _ = fmt.Fprintf(out, "Model:  %s\n", m.Name())
			_, _ = fmt.Fprintf(out, "Vocab:  %d\n", voc.Len())
			_, _ = fmt.Fprintf(out, "Pad:    %d %s\n", sp.Pad, voc.Token(sp.Pad))
			_, _ = fmt.Fprintf(out, "Start:  %d %s\n", sp.Start, voc.Token(sp.Start))
			_, _ = fmt.Fprintf(out, "End:    %d %s\n", sp.End, voc.Token(sp.End))

			if showVocab {
				_, _ = fmt.Fprintln(out)
				renderVocab(out, m, int(vocabLimit))
			}

			if len(tokens) == 0 {
				tokens = []string{voc.Token(sp.Start)}
			}
			for _, tok := range tokens {
				id, ok := voc.ID(tok)
				if !ok {
					return cli.Exit(fmt.Sprintf("error: unknown token %q", tok), 1)
				}
				rows, err := nextScores(ctx, m, id)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: %v", err), 1)
				}
				_, _ = fmt.Fprintf(out, "\nNext after %q:\n", tok)
				renderNext(out, m, rows, int(top))
			}
			return nil
		},
	}
}

// nextScores asks the model for the distribution following tok.
func nextScores(ctx context.Context, m model.Model, tok int) ([]float64, error) {
	dists, err := m.Score(ctx, []decode.Step{{
		Prefixes: [][]int{{m.Special().Start, tok}},
	}})
	if err != nil {
		return nil, err
	}
	if len(dists) != 1 || len(dists[0]) != 1 {
		return nil, fmt.Errorf("model %s returned %d matrices for one step", m.Name(), len(dists))
	}
	return dists[0][0], nil
}

func renderNext(w io.Writer, m model.Model, scores []float64, k int) {
	idx, val := logits.TopK(scores, k, nil, nil)
	table := newTable(w, "RANK", "ID", "TOKEN", "SCORE")
	for i := range idx {
		table.Append([]string{fmt.Sprint(i + 1), fmt.Sprint(idx[i]), m.Vocabulary().Token(idx[i]), formatScore(val[i])})
	}
	table.Render()
}

func renderVocab(w io.Writer, m model.Model, limit int) {
	toks := m.Vocabulary().Tokens()
	if limit > 0 && limit < len(toks) {
		toks = toks[:limit]
	}
	table := newTable(w, "ID", "TOKEN")
	for id, tok := range toks {
		table.Append([]string{fmt.Sprint(id), tok})
	}
	table.Render()
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}
