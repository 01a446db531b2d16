package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samcharles93/beamsearch/internal/beam"
	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/logger"
	"github.com/samcharles93/beamsearch/internal/model"
)

// Request limits keep a single request from monopolising the server.
const (
	MaxPrompts  = 256
	MaxBeamSize = 64
	MaxSteps    = 1024
)

// DecodeService turns decode requests into decode records.
type DecodeService struct {
	provider ModelProvider
	defaults decode.Options
	log      logger.Logger
	clock    func() time.Time
}

// NewDecodeService creates a service. defaults supplies every search
// parameter a request leaves unset; its special token ids are replaced by
// the model's.
func NewDecodeService(provider ModelProvider, defaults decode.Options, log logger.Logger) *DecodeService {
	if log == nil {
		log = logger.Discard()
	}
	return &DecodeService{
		provider: provider,
		defaults: defaults,
		log:      log,
		clock:    time.Now,
	}
}

func (s *DecodeService) Decode(ctx context.Context, req *DecodeRequest) (*DecodeRecord, error) {
	switch {
	case len(req.Prompts) > 0 && len(req.Inputs) > 0:
		return nil, newInvalidRequest("prompts", "prompts and inputs are mutually exclusive")
	case len(req.Prompts) == 0 && len(req.Inputs) == 0:
		return nil, newInvalidRequest("prompts", "one of prompts or inputs is required")
	case len(req.Prompts) > MaxPrompts || len(req.Inputs) > MaxPrompts:
		return nil, newInvalidRequest("prompts", fmt.Sprintf("at most %d prompts per request", MaxPrompts))
	}

	m, err := s.provider.Model(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	opts, err := s.options(req, m.Special())
	if err != nil {
		return nil, err
	}
	prompts, err := encodePrompts(req, m)
	if err != nil {
		return nil, err
	}

	dec, err := decode.NewDecoder(m, opts, s.log.With("model", m.Name()))
	if err != nil {
		return nil, newInvalidRequest("", err.Error())
	}
	results, stats, err := dec.Decode(ctx, prompts)
	if err != nil {
		return nil, err
	}
	opts = dec.Options()

	rec := &DecodeRecord{
		ID:        newDecodeID(),
		Object:    "decode",
		CreatedAt: s.clock().Unix(),
		Model:     m.Name(),
		Params: DecodeParams{
			BeamSize:   opts.Beam.BeamSize,
			MinLength:  opts.Beam.MinLength,
			MinNBest:   opts.Beam.MinNBest,
			BlockNgram: opts.Beam.BlockNgram,
			MaxSteps:   opts.MaxSteps,
			NBest:      opts.NBest,
		},
		Results: make([]DecodeResult, len(results)),
		Stats: DecodeStats{
			Steps:          stats.Steps,
			Examples:       stats.Examples,
			Failed:         stats.Failed,
			DurationMS:     float64(stats.Duration.Microseconds()) / 1000,
			StepsPerSecond: stats.StepsPerSecond,
		},
	}
	sp := m.Special()
	for i, res := range results {
		rec.Results[i] = toDecodeResult(res, func(ids []int) string {
			return m.Vocabulary().Decode(ids, sp.Pad, sp.Start, sp.End)
		})
	}
	s.log.Info("decode completed",
		"id", rec.ID,
		"model", rec.Model,
		"examples", stats.Examples,
		"failed", stats.Failed,
		"steps", stats.Steps,
		"elapsed", stats.Duration,
	)
	return rec, nil
}

func (s *DecodeService) options(req *DecodeRequest, sp model.Special) (decode.Options, error) {
	opts := s.defaults
	opts.Beam.Pad, opts.Beam.Start, opts.Beam.End = sp.Pad, sp.Start, sp.End
	opts.Progress = nil

	for _, f := range []struct {
		param string
		src   *int
		dst   *int
		limit int
	}{
		{"beam_size", req.BeamSize, &opts.Beam.BeamSize, MaxBeamSize},
		{"min_length", req.MinLength, &opts.Beam.MinLength, MaxSteps},
		{"min_n_best", req.MinNBest, &opts.Beam.MinNBest, MaxBeamSize * MaxSteps},
		{"block_ngram", req.BlockNgram, &opts.Beam.BlockNgram, MaxSteps},
		{"max_steps", req.MaxSteps, &opts.MaxSteps, MaxSteps},
		{"n_best", req.NBest, &opts.NBest, MaxBeamSize * MaxSteps},
	} {
		if f.src == nil {
			continue
		}
		if *f.src < 0 || *f.src > f.limit {
			return opts, newInvalidRequest(f.param, fmt.Sprintf("%s must be between 0 and %d, got %d", f.param, f.limit, *f.src))
		}
		*f.dst = *f.src
	}
	if opts.Beam.BeamSize > MaxBeamSize {
		return opts, newInvalidRequest("beam_size", fmt.Sprintf("beam_size must be at most %d", MaxBeamSize))
	}
	if err := opts.Validate(); err != nil {
		if errors.Is(err, beam.ErrInvalidConfig) {
			return opts, newInvalidRequest("", err.Error())
		}
		return opts, err
	}
	return opts, nil
}

func encodePrompts(req *DecodeRequest, m model.Model) ([][]int, error) {
	voc := m.Vocabulary()
	if len(req.Inputs) > 0 {
		prompts := make([][]int, len(req.Inputs))
		for i, text := range req.Inputs {
			ids, err := voc.Encode(text)
			if err != nil {
				return nil, newInvalidRequest("inputs", fmt.Sprintf("inputs[%d]: %v", i, err))
			}
			prompts[i] = ids
		}
		return prompts, nil
	}
	for i, p := range req.Prompts {
		for _, id := range p {
			if id < 0 || id >= voc.Len() {
				return nil, newInvalidRequest("prompts",
					fmt.Sprintf("prompts[%d]: token %d outside vocabulary of %d", i, id, voc.Len()))
			}
		}
	}
	return req.Prompts, nil
}

func toDecodeResult(res decode.Result, text func([]int) string) DecodeResult {
	out := DecodeResult{
		Index: res.Index,
		Steps: res.Steps,
		Done:  res.Done,
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
		return out
	}
	out.NBest = make([]Hypothesis, len(res.Hypotheses))
	for i, h := range res.Hypotheses {
		out.NBest[i] = Hypothesis{
			Tokens: h.Tokens,
			Text:   text(h.Tokens),
			Score:  beam.Finite(h.Score),
		}
	}
	if len(out.NBest) > 0 {
		best := out.NBest[0]
		out.Tokens, out.Text, out.Score = best.Tokens, best.Text, best.Score
	}
	return out
}
