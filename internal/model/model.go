// Package model provides the scorers the decoder runs against: a bigram
// table loaded from JSON or YAML and a seeded toy language model.
package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samcharles93/beamsearch/internal/decode"
	"github.com/samcharles93/beamsearch/internal/vocab"
)

// ErrUnknownModel is returned when a model name cannot be resolved.
var ErrUnknownModel = errors.New("unknown model")

// EnvModelsDir names the environment variable consulted when no models
// directory is configured.
const EnvModelsDir = "BEAM_MODELS_DIR"

// ToyName resolves to the seeded toy model wherever models are looked up by
// name.
const ToyName = "toy"

// Special holds the ids of the pad, start and end tokens.
type Special struct {
	Pad   int
	Start int
	End   int
}

// DefaultSpecial matches the beam defaults: pad 0, start 1, end 2.
var DefaultSpecial = Special{Pad: 0, Start: 1, End: 2}

// Model is a scorer together with the vocabulary it scores over.
type Model interface {
	decode.Scorer
	Name() string
	Vocabulary() *vocab.Vocab
	Special() Special
}

// Info describes a model file found by Discover.
type Info struct {
	Name string
	Path string
	Size int64
}

// Extensions lists the file extensions Load understands.
var Extensions = []string{".json", ".yaml", ".yml"}

// IsModelFile reports whether path has a model file extension.
func IsModelFile(path string) bool {
	return slices.Contains(Extensions, strings.ToLower(filepath.Ext(path)))
}

// NameOf returns the model name for a file: its base name without extension.
func NameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Discover lists the model files directly inside dir, sorted by name.
func Discover(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}
	var out []Info
	for _, e := range entries {
		if e.IsDir() || !IsModelFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		out = append(out, Info{
			Name: NameOf(e.Name()),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Load reads a bigram model, choosing the decoder by file extension.
func Load(path string) (*Bigram, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	var spec BigramSpec
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = decodeJSON(data, &spec)
	case ".yaml", ".yml":
		err = decodeYAML(data, &spec)
	default:
		return nil, fmt.Errorf("load %s: unsupported model extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if spec.Name == "" {
		spec.Name = NameOf(path)
	}
	return NewBigram(spec)
}

// lastToken is the token a prefix is conditioned on. A prefix holding only
// the start token falls back to the last prompt token.
func lastToken(prompt, prefix []int) int {
	if len(prefix) <= 1 && len(prompt) > 0 {
		return prompt[len(prompt)-1]
	}
	return prefix[len(prefix)-1]
}
