package rerank

import (
	"fmt"
	"log/slog"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

const ProviderRemote = "remote"

// Settings is the full reranking configuration: the stage Config plus
// how to obtain its backend.
type Settings struct {
	Config
	// Provider is a Registry predictor name or ProviderRemote.
	Provider string
	Model    string
	UseGPU   bool
	// FallbackOnError makes a backend that fails to load disable reranking
	// instead of failing Build.
	FallbackOnError bool
	BatchSize       int
	Remote          RemoteConfig
}

// Build wires a Reranker from settings. Local predictors come from reg and
// run on pool; both must outlive the Reranker.
func Build(s Settings, reg *Registry, pool *Pool) (*Reranker, error) {
	if !s.Enabled {
		return New(s.Config, nil), nil
	}
	backend, err := buildBackend(s, reg, pool)
	if err != nil {
		if !s.FallbackOnError {
			return nil, fmt.Errorf("%w: reranker: %w", apperrors.ErrInvalidConfig, err)
		}
		slog.Default().Warn("reranker backend unavailable, reranking disabled",
			"component", "reranker",
			"provider", s.Provider,
			"model", s.Model,
			"error", err,
		)
		return New(s.Config, nil), nil
	}
	return New(s.Config, backend), nil
}

func buildBackend(s Settings, reg *Registry, pool *Pool) (Backend, error) {
	provider := s.Provider
	if provider == "" {
		provider = PredictorLexical
	}
	if provider == ProviderRemote {
		rc := s.Remote
		if rc.Model == "" {
			rc.Model = s.Model
		}
		return NewRemoteBackend(rc)
	}
	if reg == nil || pool == nil {
		return nil, fmt.Errorf("%w: local predictor %q needs a registry and a pool", apperrors.ErrModelUnavailable, provider)
	}
	p, err := reg.Predictor(provider, s.Model, s.UseGPU)
	if err != nil {
		return nil, err
	}
	return NewLocalBackend(p, pool, s.BatchSize), nil
}
