package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

const envConfigPath = "BEAM_CONFIG"

// Config represents the beam configuration file
// (~/.config/beam/config.yaml). Numeric fields are pointers so we can
// distinguish "not set" from zero values.
type Config struct {
	ModelsDir string `yaml:"models_dir"`
	Model     string `yaml:"model"`

	// Search defaults
	BeamSize    *int64 `yaml:"beam_size"`
	MinLength   *int64 `yaml:"min_length"`
	MinNBest    *int64 `yaml:"min_n_best"`
	BlockNgram  *int64 `yaml:"block_ngram"`
	MaxSteps    *int64 `yaml:"max_steps"`
	NBest       *int64 `yaml:"n_best"`
	Parallelism *int64 `yaml:"parallel"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	if p := os.Getenv(envConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "beam", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyModelConfig applies config file defaults to the model flags when the
// corresponding CLI flag was not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.ModelsDir != "" && !c.IsSet("models-path") {
		modelsPath = cfg.ModelsDir
	}
	if cfg.Model != "" && !c.IsSet("model") && !c.IsSet("toy") {
		modelPath = cfg.Model
	}
}

func applySearchConfig(c *cli.Command, cfg Config, s *searchSettings) {
	for _, f := range []struct {
		flag string
		src  *int64
		dst  *int64
	}{
		{"beam-size", cfg.BeamSize, &s.beamSize},
		{"min-length", cfg.MinLength, &s.minLength},
		{"min-n-best", cfg.MinNBest, &s.minNBest},
		{"block-ngram", cfg.BlockNgram, &s.blockNgram},
		{"max-steps", cfg.MaxSteps, &s.maxSteps},
		{"n-best", cfg.NBest, &s.nBest},
		{"parallel", cfg.Parallelism, &s.parallelism},
	} {
		if f.src != nil && !c.IsSet(f.flag) {
			*f.dst = *f.src
		}
	}
}

func applyServeConfig(c *cli.Command, cfg Config, addr *string) {
	if cfg.ServerAddress != "" && !c.IsSet("addr") {
		*addr = cfg.ServerAddress
	}
}

func applyLogConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
