package main

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/api"
	"github.com/samcharles93/beamsearch/internal/logger"
	"github.com/samcharles93/beamsearch/internal/model"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		search      searchSettings
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the decode REST API",
		Flags: append(append(commonModelFlags(), searchFlags(&search)...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			cfg := configFrom(ctx)
			applyModelConfig(cmd, cfg)
			applySearchConfig(cmd, cfg, &search)
			applyServeConfig(cmd, cfg, &addr)

			pc := api.ProviderConfig{
				DefaultModelPath: modelPath,
				ModelsPath:       modelsPath,
			}
			if useToy || modelPath == model.ToyName {
				toy := toyConfig()
				pc.Toy = &toy
				pc.DefaultModelPath = ""
			}
			provider := api.NewCachedModelProvider(pc)

			defaults := search.options(model.DefaultSpecial)
			if err := defaults.Validate(); err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			service := api.NewDecodeService(provider, defaults, log)
			server := api.NewServer(api.NewDecodeStore(), service)

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr, "beam_size", defaults.Beam.BeamSize)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
