package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/logger"
	"github.com/samcharles93/beamsearch/internal/model"
)

func modelsCmd() *cli.Command {
	return &cli.Command{
		Name:    "models",
		Aliases: []string{"ls", "list-models"},
		Usage:   "List bigram models in the models directory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "models-path",
				Aliases:     []string{"path"},
				Usage:       "directory containing model files",
				Destination: &modelsPath,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyModelConfig(cmd, configFrom(ctx))

			dir := strings.TrimSpace(modelsPath)
			if dir == "" {
				dir = strings.TrimSpace(os.Getenv(model.EnvModelsDir))
			}
			if dir == "" {
				return cli.Exit("error: --models-path is required unless "+model.EnvModelsDir+" is set", 1)
			}

			models, err := model.Discover(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(models) == 0 {
				log.Info("no models found", "path", dir)
				return nil
			}
			renderModels(cmd.Root().Writer, models)
			return nil
		},
	}
}

func renderModels(w io.Writer, models []model.Info) {
	table := newTable(w, "NAME", "SIZE", "PATH")
	for _, m := range models {
		table.Append([]string{m.Name, formatModelSize(m.Size), m.Path})
	}
	table.Render()
}

func formatModelSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
