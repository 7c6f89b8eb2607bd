package rerank

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// Factory loads a Predictor for model. useGPU is a request; a factory
// whose runtime cannot honour it falls back to CPU.
type Factory func(model string, useGPU bool) (Predictor, error)

const (
	PredictorLexical         = "lexical"
	PredictorEmbedEverything = "embedeverything"
)

// Registry creates predictors by name and keeps each loaded model for
// reuse. It replaces process-wide model singletons: whoever owns the
// Registry owns the models and must Close it.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
	loaded    map[string]Predictor
	logger    *slog.Logger
}

// NewRegistry returns a Registry with the built-in predictors registered.
func NewRegistry() *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		loaded:    make(map[string]Predictor),
		logger:    slog.Default().With("component", "rerank-registry"),
	}
	r.Register(PredictorLexical, NewLexicalPredictor)
	r.Register(PredictorEmbedEverything, NewEmbedEverythingPredictor)
	return r
}

// Register adds or replaces the factory for name.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Names lists the registered predictor names.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Predictor returns the predictor for (name, model, useGPU), loading it on
// first use. Load failures wrap ErrModelUnavailable and are not cached.
func (r *Registry) Predictor(name, model string, useGPU bool) (Predictor, error) {
	key := fmt.Sprintf("%s|%s|%t", name, model, useGPU)

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.loaded[key]; ok {
		return p, nil
	}
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown predictor %q", apperrors.ErrModelUnavailable, name)
	}
	p, err := f(model, useGPU)
	if err != nil {
		if errors.Is(err, apperrors.ErrModelUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load %s model %q: %v", apperrors.ErrModelUnavailable, name, model, err)
	}
	r.loaded[key] = p
	r.logger.Info("predictor loaded", "predictor", name, "model", model, "use_gpu", useGPU)
	return p, nil
}

// Close releases every loaded predictor.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, p := range r.loaded {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close predictor %s: %w", key, err))
		}
		delete(r.loaded, key)
	}
	return errors.Join(errs...)
}
