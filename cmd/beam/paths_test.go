package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samcharles93/beamsearch/internal/model"
)

func writeModels(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644); err != nil {
			t.Fatalf("write model %s: %v", name, err)
		}
	}
}

func withTTY(t *testing.T, tty bool) {
	t.Helper()
	prev := stdinIsTTY
	stdinIsTTY = func() bool { return tty }
	t.Cleanup(func() { stdinIsTTY = prev })
}

func TestResolveModelPath(t *testing.T) {
	t.Run("model flag bypasses env", func(t *testing.T) {
		t.Setenv(model.EnvModelsDir, "")
		got, err := resolveModelPath("/tmp/model.json", "", bytes.NewBuffer(nil), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if got != filepath.Clean("/tmp/model.json") {
			t.Fatalf("unexpected model path: got %q", got)
		}
	})

	t.Run("model name resolved in models dir", func(t *testing.T) {
		dir := t.TempDir()
		writeModels(t, dir, "greeting.yaml", "counting.json")

		got, err := resolveModelPath("greeting", dir, bytes.NewBuffer(nil), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if want := filepath.Join(dir, "greeting.yaml"); got != want {
			t.Fatalf("unexpected model path: got %q want %q", got, want)
		}
		if _, err := resolveModelPath("missing", dir, nil, io.Discard); !errors.Is(err, model.ErrUnknownModel) {
			t.Fatalf("expected ErrUnknownModel, got %v", err)
		}
	})

	t.Run("nothing configured", func(t *testing.T) {
		t.Setenv(model.EnvModelsDir, "")
		_, err := resolveModelPath("", "", nil, io.Discard)
		if err == nil || !strings.Contains(err.Error(), model.EnvModelsDir) {
			t.Fatalf("expected hint about %s, got %v", model.EnvModelsDir, err)
		}
	})

	t.Run("single model selects automatically", func(t *testing.T) {
		dir := t.TempDir()
		writeModels(t, dir, "only.yml", "notes.txt")
		t.Setenv(model.EnvModelsDir, dir)
		withTTY(t, false)

		got, err := resolveModelPath("", "", bytes.NewBuffer(nil), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if want := filepath.Join(dir, "only.yml"); got != want {
			t.Fatalf("unexpected model path: got %q want %q", got, want)
		}
	})

	t.Run("multiple models requires tty", func(t *testing.T) {
		dir := t.TempDir()
		writeModels(t, dir, "a.json", "b.json")
		withTTY(t, false)

		if _, err := resolveModelPath("", dir, bytes.NewBuffer(nil), io.Discard); err == nil {
			t.Fatalf("expected error when multiple models and stdin is not a tty")
		}
	})

	t.Run("interactive selection chooses sorted index", func(t *testing.T) {
		dir := t.TempDir()
		writeModels(t, dir, "b.json", "a.json")
		withTTY(t, true)

		got, err := resolveModelPath("", dir, bytes.NewBufferString("x\n2\n"), io.Discard)
		if err != nil {
			t.Fatalf("resolveModelPath returned error: %v", err)
		}
		if want := filepath.Join(dir, "b.json"); got != want {
			t.Fatalf("unexpected model selection: got %q want %q", got, want)
		}

		if _, err := resolveModelPath("", dir, bytes.NewBufferString("9"), io.Discard); err == nil {
			t.Fatal("expected error for out of range selection at EOF")
		}
	})
}

func TestReadPrompts(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "prompts.txt")
	body := "# comment\nhello world\n\n  again  \n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := readPrompts([]string{"flag prompt"}, path, nil)
	if err != nil {
		t.Fatalf("readPrompts: %v", err)
	}
	want := []string{"flag prompt", "hello world", "again"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("readPrompts: got %q want %q", got, want)
	}

	got, err = readPrompts(nil, "-", strings.NewReader("one\ntwo\n"))
	if err != nil || len(got) != 2 {
		t.Fatalf("readPrompts(stdin): %q, %v", got, err)
	}

	if _, err := readPrompts(nil, filepath.Join(t.TempDir(), "missing"), nil); err == nil {
		t.Fatal("expected error for missing input file")
	}
}
