package api

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/samcharles93/beamsearch/internal/model"
)

// ModelProvider resolves model names to loaded models.
type ModelProvider interface {
	Model(ctx context.Context, name string) (model.Model, error)
	ListModels() ([]string, error)
}

type ProviderConfig struct {
	// DefaultModelPath is used when a request names no model.
	DefaultModelPath string
	// ModelsPath is searched for named models; BEAM_MODELS_DIR when empty.
	ModelsPath string
	// Toy, when set, makes the name "toy" resolve to a seeded toy model.
	Toy *model.ToyConfig
	// Load reads a model file; model.Load when nil.
	Load func(path string) (model.Model, error)
}

// CachedModelProvider loads model files on first use and keeps them. Models
// are immutable, so one instance serves concurrent requests.
type CachedModelProvider struct {
	cfg   ProviderConfig
	mu    sync.Mutex
	cache map[string]model.Model
}

func NewCachedModelProvider(cfg ProviderConfig) *CachedModelProvider {
	if cfg.Load == nil {
		cfg.Load = func(path string) (model.Model, error) { return model.Load(path) }
	}
	return &CachedModelProvider{
		cfg:   cfg,
		cache: make(map[string]model.Model),
	}
}

func (p *CachedModelProvider) Model(ctx context.Context, name string) (model.Model, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" && p.cfg.DefaultModelPath == "" && p.modelsDir() == "" && p.cfg.Toy != nil {
		name = model.ToyName
	}
	if name == model.ToyName && p.cfg.Toy != nil {
		cfg := *p.cfg.Toy
		return p.getOrCreate(model.ToyName, func() (model.Model, error) { return model.NewToy(cfg) })
	}
	path, err := p.resolveModelPath(name)
	if err != nil {
		return nil, err
	}
	return p.getOrCreate(path, func() (model.Model, error) { return p.cfg.Load(path) })
}

func (p *CachedModelProvider) getOrCreate(key string, load func() (model.Model, error)) (model.Model, error) {
	p.mu.Lock()
	m, ok := p.cache[key]
	p.mu.Unlock()
	if ok {
		return m, nil
	}

	m, err := load()
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.cache[key]; ok {
		return existing, nil
	}
	p.cache[key] = m
	return m, nil
}

// ListModels returns the names requests may use, sorted.
func (p *CachedModelProvider) ListModels() ([]string, error) {
	var names []string
	if p.cfg.DefaultModelPath != "" {
		names = append(names, model.NameOf(p.cfg.DefaultModelPath))
	}
	if dir := p.modelsDir(); dir != "" {
		infos, err := model.Discover(dir)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			names = append(names, info.Name)
		}
	}
	if p.cfg.Toy != nil {
		names = append(names, model.ToyName)
	}
	slices.Sort(names)
	return slices.Compact(names), nil
}

func (p *CachedModelProvider) resolveModelPath(name string) (string, error) {
	if name != "" {
		if looksLikePath(name) {
			return filepath.Clean(name), nil
		}
		dir := p.modelsDir()
		if p.cfg.DefaultModelPath != "" && model.NameOf(p.cfg.DefaultModelPath) == name {
			return filepath.Clean(p.cfg.DefaultModelPath), nil
		}
		if dir == "" {
			return "", fmt.Errorf("%w: %q (no models directory configured)", model.ErrUnknownModel, name)
		}
		if resolved := resolveInDir(dir, name); resolved != "" {
			return resolved, nil
		}
		return "", fmt.Errorf("%w: %q not found in %s", model.ErrUnknownModel, name, dir)
	}

	if p.cfg.DefaultModelPath != "" {
		return filepath.Clean(p.cfg.DefaultModelPath), nil
	}
	dir := p.modelsDir()
	if dir == "" {
		return "", fmt.Errorf("%w: model is required", model.ErrUnknownModel)
	}
	infos, err := model.Discover(dir)
	if err != nil {
		return "", err
	}
	switch len(infos) {
	case 1:
		return infos[0].Path, nil
	case 0:
		return "", fmt.Errorf("%w: no models found in %s", model.ErrUnknownModel, dir)
	default:
		return "", fmt.Errorf("%w: multiple models found in %s; specify model", model.ErrUnknownModel, dir)
	}
}

func (p *CachedModelProvider) modelsDir() string {
	if dir := strings.TrimSpace(p.cfg.ModelsPath); dir != "" {
		return dir
	}
	return strings.TrimSpace(os.Getenv(model.EnvModelsDir))
}

func looksLikePath(v string) bool {
	return strings.ContainsRune(v, filepath.Separator) || model.IsModelFile(v)
}

func resolveInDir(dir, name string) string {
	for _, ext := range model.Extensions {
		cand := filepath.Join(dir, name+ext)
		if st, err := os.Stat(cand); err == nil && !st.IsDir() {
			return cand
		}
	}
	return ""
}
