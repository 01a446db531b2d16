package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v3"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	if err != nil {
		t.Fatalf("missing file should not be an error: %v", err)
	}
	if cfg.BeamSize != nil || cfg.ModelsDir != "" {
		t.Fatalf("expected zero config, got %+v", cfg)
	}

	path := filepath.Join(dir, "config.yaml")
	body := "models_dir: /srv/models\nbeam_size: 8\nmin_length: 0\nlog_format: json\nserver_address: 0.0.0.0:9000\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ModelsDir != "/srv/models" || cfg.LogFormat != "json" || cfg.ServerAddress != "0.0.0.0:9000" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.BeamSize == nil || *cfg.BeamSize != 8 {
		t.Fatalf("beam_size not read: %+v", cfg.BeamSize)
	}
	if cfg.MinLength == nil || *cfg.MinLength != 0 {
		t.Fatal("explicit zero min_length must be kept")
	}
	if cfg.MaxSteps != nil {
		t.Fatal("unset max_steps must stay nil")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("beam_size: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestApplySearchConfigFlagWins(t *testing.T) {
	eight, zero, three := int64(8), int64(0), int64(3)
	cfg := Config{BeamSize: &eight, MinLength: &zero, NBest: &three}

	var s searchSettings
	cmd := &cli.Command{
		Name:  "decode",
		Flags: searchFlags(&s),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			applySearchConfig(cmd, cfg, &s)
			return nil
		},
	}
	if err := cmd.Run(context.Background(), []string{"decode", "--beam-size", "2"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if s.beamSize != 2 {
		t.Fatalf("explicit flag lost: beam size %d", s.beamSize)
	}
	if s.minLength != 0 || s.nBest != 3 {
		t.Fatalf("config defaults not applied: %+v", s)
	}
	if s.maxSteps != 64 {
		t.Fatalf("flag default changed: max steps %d", s.maxSteps)
	}
}
