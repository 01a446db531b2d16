package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/go-cmp/cmp"

	"github.com/samcharles93/beamsearch/internal/beam"
	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/model"
)

func greetingModel(t *testing.T) model.Model {
	t.Helper()
	m, err := model.NewBigram(model.BigramSpec{
		Name:   "greeting",
		Tokens: []string{"<pad>", "<s>", "</s>", "hello", "world"},
		Logits: [][]float64{
			{0, 0, 0, 0, 0},
			{-9, -9, -9, -0.1, -3},
			{0, 0, 0, 0, 0},
			{-9, -9, -2, -9, -0.1},
			{-9, -9, -0.1, -3, -9},
		},
	})
	if err != nil {
		t.Fatalf("NewBigram: %v", err)
	}
	return m
}

func sampleResults() []decode.Result {
	return []decode.Result{
		{
			Index: 0,
			Steps: 3,
			Done:  true,
			Hypotheses: []beam.Hypothesis{
				{Tokens: []int{1, 3, 4, 2}, Score: -0.25},
				{Tokens: []int{1, 3, 2}, Score: -1.5},
			},
		},
		{Index: 1, Steps: 1, Err: errors.New("example 1 step 0: boom")},
	}
}

func TestRenderTable(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	renderTable(&buf, greetingModel(t), []string{"", "hello"}, sampleResults())

	out := buf.String()
	for _, want := range []string{"PROMPT", "hello world", "-0.2500", "-1.5000", "error: example 1 step 0: boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<s>") || strings.Contains(out, "</s>") {
		t.Fatalf("table shows special tokens:\n%s", out)
	}
}

func TestRenderJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	stats := decode.Stats{Steps: 3, Examples: 2, Failed: 1, Duration: 1500 * time.Microsecond}
	if err := renderJSON(&buf, greetingModel(t), []string{" ", "hello"}, sampleResults(), stats); err != nil {
		t.Fatalf("renderJSON: %v", err)
	}

	var got jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	want := jsonOutput{
		Model: "greeting",
		Results: []jsonResult{
			{
				Prompt: "",
				Steps:  3,
				Done:   true,
				Hypotheses: []jsonHypothesis{
					{Tokens: []int{1, 3, 4, 2}, Text: "hello world", Score: -0.25},
					{Tokens: []int{1, 3, 2}, Text: "hello", Score: -1.5},
				},
			},
			{Prompt: "hello", Steps: 1, Error: "example 1 step 0: boom"},
		},
		Steps:   3,
		Elapsed: "1.5ms",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("json output (-want +got):\n%s", diff)
	}
}

func TestStepsLabel(t *testing.T) {
	t.Parallel()
	if got := stepsLabel(decode.Result{Steps: 4, Done: true}); got != "4" {
		t.Fatalf("done label: got %q", got)
	}
	if got := stepsLabel(decode.Result{Steps: 64}); got != "64*" {
		t.Fatalf("truncated label: got %q", got)
	}
}

func TestRenderModels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	renderModels(&buf, []model.Info{
		{Name: "counting", Path: "/m/counting.json", Size: 512},
		{Name: "greeting", Path: "/m/greeting.yaml", Size: 4096},
	})
	out := buf.String()
	for _, want := range []string{"NAME", "counting", "512 B", "greeting", "4.0 KB", "/m/greeting.yaml"} {
		if !strings.Contains(out, want) {
			t.Fatalf("models table missing %q:\n%s", want, out)
		}
	}
}

func TestFormatModelSize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1536, "1.5 KB"},
		{3 * 1024 * 1024, "3.0 MB"},
	}
	for _, tt := range tests {
		if got := formatModelSize(tt.in); got != tt.want {
			t.Fatalf("formatModelSize(%d): got %q want %q", tt.in, got, tt.want)
		}
	}
}

func TestBenchPrompts(t *testing.T) {
	t.Parallel()
	got := benchPrompts(greetingModel(t), 5)
	want := [][]int{{3}, {4}, {3}, {4}, {3}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("bench prompts (-want +got):\n%s", diff)
	}
}

func TestRenderBench(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	renderBench(&buf, []decode.Stats{
		{Steps: 10, Examples: 4, Duration: time.Second, StepsPerSecond: 10},
		{Steps: 10, Examples: 4, Duration: 2 * time.Second, StepsPerSecond: 5},
	})
	out := buf.String()
	for _, want := range []string{"STEPS/S", "avg", "7.50", "3.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("bench table missing %q:\n%s", want, out)
		}
	}
}

func TestNextScores(t *testing.T) {
	t.Parallel()
	m := greetingModel(t)
	scores, err := nextScores(context.Background(), m, 3)
	if err != nil {
		t.Fatalf("nextScores: %v", err)
	}
	if diff := cmp.Diff([]float64{-9, -9, -2, -9, -0.1}, scores); diff != "" {
		t.Fatalf("scores after hello (-want +got):\n%s", diff)
	}

	var buf bytes.Buffer
	renderNext(&buf, m, scores, 2)
	out := buf.String()
	for _, want := range []string{"world", "-0.1000", "</s>", "-2.0000"} {
		if !strings.Contains(out, want) {
			t.Fatalf("next table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<pad>") {
		t.Fatalf("next table lists more than two tokens:\n%s", out)
	}
}

func TestRenderVocabLimit(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	renderVocab(&buf, greetingModel(t), 3)
	out := buf.String()
	if !strings.Contains(out, "</s>") || strings.Contains(out, "hello") {
		t.Fatalf("vocab limit not applied:\n%s", out)
	}
}

func TestRenderJSONClampsInfiniteScores(t *testing.T) {
	t.Parallel()
	results := []decode.Result{{
		Steps:      2,
		Hypotheses: []beam.Hypothesis{{Tokens: []int{1, 3, 2}, Score: math.Inf(-1)}},
	}}
	var buf bytes.Buffer
	if err := renderJSON(&buf, greetingModel(t), []string{""}, results, decode.Stats{Steps: 2}); err != nil {
		t.Fatalf("renderJSON: %v", err)
	}
	var got jsonOutput
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode output: %v\n%s", err, buf.String())
	}
	if score := got.Results[0].Hypotheses[0].Score; score != beam.NegInf {
		t.Fatalf("score: got %v want %v", score, beam.NegInf)
	}

	buf.Reset()
	renderTable(&buf, greetingModel(t), []string{""}, results)
	if strings.Contains(buf.String(), "Inf") {
		t.Fatalf("table shows an infinite score:\n%s", buf.String())
	}
}
