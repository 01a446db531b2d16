package main

import (
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/beamsearch/internal/beam"
	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/model"
)

var (
	modelPath  string
	modelsPath string
	useToy     bool
	toyVocab   int64
	toyHidden  int64
	toySeed    int64

	logLevel  string
	logFormat string
	debug     bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to a bigram model (.json, .yaml) or a model name in --models-path",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "models-path",
			Aliases:     []string{"path"},
			Usage:       "directory containing model files",
			Destination: &modelsPath,
		},
		&cli.BoolFlag{
			Name:        "toy",
			Usage:       "use the seeded toy language model",
			Destination: &useToy,
		},
		&cli.Int64Flag{
			Name:        "toy-vocab",
			Usage:       "toy model vocabulary size",
			Value:       int64(model.DefaultToyConfig.Vocab),
			Destination: &toyVocab,
		},
		&cli.Int64Flag{
			Name:        "toy-hidden",
			Usage:       "toy model hidden size",
			Value:       int64(model.DefaultToyConfig.Hidden),
			Destination: &toyHidden,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "toy model seed",
			Value:       model.DefaultToyConfig.Seed,
			Destination: &toySeed,
		},
	}
}

func toyConfig() model.ToyConfig {
	return model.ToyConfig{Vocab: int(toyVocab), Hidden: int(toyHidden), Seed: toySeed}
}

// searchSettings holds the beam search flags shared by decode and serve.
type searchSettings struct {
	beamSize    int64
	minLength   int64
	minNBest    int64
	blockNgram  int64
	maxSteps    int64
	nBest       int64
	parallelism int64
}

func searchFlags(s *searchSettings) []cli.Flag {
	def := beam.DefaultConfig()
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "beam-size",
			Aliases:     []string{"k"},
			Usage:       "number of hypotheses kept per step",
			Value:       int64(def.BeamSize),
			Destination: &s.beamSize,
		},
		&cli.Int64Flag{
			Name:        "min-length",
			Usage:       "steps before the end token is allowed",
			Value:       int64(def.MinLength),
			Destination: &s.minLength,
		},
		&cli.Int64Flag{
			Name:        "min-n-best",
			Usage:       "finished hypotheses required before stopping",
			Value:       int64(def.MinNBest),
			Destination: &s.minNBest,
		},
		&cli.Int64Flag{
			Name:        "block-ngram",
			Usage:       "veto hypotheses repeating an n-gram up to this size (0 disables)",
			Value:       int64(def.BlockNgram),
			Destination: &s.blockNgram,
		},
		&cli.Int64Flag{
			Name:        "max-steps",
			Usage:       "upper bound on decode steps",
			Value:       decode.DefaultMaxSteps,
			Destination: &s.maxSteps,
		},
		&cli.Int64Flag{
			Name:        "n-best",
			Usage:       "hypotheses reported per prompt",
			Value:       decode.DefaultNBest,
			Destination: &s.nBest,
		},
		&cli.Int64Flag{
			Name:        "parallel",
			Usage:       "beams advanced concurrently (0 = GOMAXPROCS)",
			Destination: &s.parallelism,
		},
	}
}

// options builds decoder options, taking the special token ids from sp.
func (s *searchSettings) options(sp model.Special) decode.Options {
	return decode.Options{
		Beam: beam.Config{
			BeamSize:   int(s.beamSize),
			MinLength:  int(s.minLength),
			MinNBest:   int(s.minNBest),
			BlockNgram: int(s.blockNgram),
			Pad:        sp.Pad,
			Start:      sp.Start,
			End:        sp.End,
		},
		MaxSteps:    int(s.maxSteps),
		NBest:       int(s.nBest),
		Parallelism: int(s.parallelism),
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (auto, pretty, json, text)",
			Value:       "auto",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
