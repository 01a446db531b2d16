package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/logger"
)

type configKey struct{}

func main() {
	app := &cli.Command{
		Name:   "beam",
		Usage:  "Beam search decoding for sequence models",
		Flags:  loggingFlags(),
		Before: setup,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cli.ShowAppHelp(cmd)
		},
		Commands: []*cli.Command{
			decodeCmd(),
			serveCmd(),
			modelsCmd(),
			inspectCmd(),
			benchCmd(),
			versionCmd(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config file and installs the logger in the context.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := LoadConfig(configPath())
	if err != nil {
		return ctx, err
	}
	applyLogConfig(cmd, cfg)

	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return ctx, err
	}
	if debug {
		level = slog.LevelDebug
	}
	log, err := logger.New(logFormat, level, os.Stderr)
	if err != nil {
		return ctx, err
	}
	ctx = logger.WithContext(ctx, log)
	return context.WithValue(ctx, configKey{}, cfg), nil
}

func configFrom(ctx context.Context) Config {
	cfg, _ := ctx.Value(configKey{}).(Config)
	return cfg
}
