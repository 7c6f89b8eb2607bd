package hybrid

import (
	"fmt"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/fusion"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/temporal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

const (
	FusionRRF      = "rrf"
	FusionWeighted = "weighted"
)

const (
	DefaultLimit           = 10
	DefaultMaxLimit        = 100
	DefaultGraphDepth      = 2
	DefaultSeedCount       = 5
	DefaultProviderTimeout = 2 * time.Second
)

// Config holds the orchestrator's tuning. Weights apply to the fused lists
// of the same name and a zero weight keeps that list out of fusion. A zero
// GraphWeight also skips traversal entirely.
type Config struct {
	VectorWeight float64
	GraphWeight  float64
	BM25Weight   float64

	FusionMethod string
	RRFK         float64
	// Normalize and Aggregation only apply to weighted fusion.
	Normalize   bool
	Aggregation fusion.Aggregation

	GraphDepth int
	SeedCount  int

	UseExactMatch bool
	BM25MinScore  float64

	ApplyTemporal bool
	Temporal      temporal.Booster

	DefaultLimit int
	MaxLimit     int

	ProviderTimeout time.Duration
	// IncludeProvenance attaches per-item list/rank metadata to every
	// response, not only to debug requests.
	IncludeProvenance bool
}

func DefaultConfig() Config {
	return Config{
		VectorWeight:    1.0,
		GraphWeight:     0.5,
		BM25Weight:      1.0,
		FusionMethod:    FusionRRF,
		RRFK:            fusion.DefaultK,
		Aggregation:     fusion.AggregateMean,
		GraphDepth:      DefaultGraphDepth,
		SeedCount:       DefaultSeedCount,
		UseExactMatch:   true,
		Temporal:        temporal.DefaultBooster(),
		DefaultLimit:    DefaultLimit,
		MaxLimit:        DefaultMaxLimit,
		ProviderTimeout: DefaultProviderTimeout,
	}
}

// Validate reports configuration that can only come from a programming or
// deployment mistake.
func (c Config) Validate() error {
	switch c.FusionMethod {
	case "", FusionRRF, FusionWeighted:
	default:
		return fmt.Errorf("%w: unknown fusion method %q", apperrors.ErrInvalidConfig, c.FusionMethod)
	}
	if c.VectorWeight < 0 || c.GraphWeight < 0 || c.BM25Weight < 0 {
		return fmt.Errorf("%w: fusion weights must not be negative", apperrors.ErrInvalidConfig)
	}
	if c.GraphWeight > 0 && (c.GraphDepth < 1 || c.GraphDepth > 5) {
		return fmt.Errorf("%w: graph depth %d outside 1..5", apperrors.ErrInvalidConfig, c.GraphDepth)
	}
	if c.MaxLimit > 0 && c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("%w: default limit %d above max limit %d", apperrors.ErrInvalidConfig, c.DefaultLimit, c.MaxLimit)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.FusionMethod == "" {
		c.FusionMethod = FusionRRF
	}
	if c.RRFK <= 0 {
		c.RRFK = fusion.DefaultK
	}
	if c.SeedCount <= 0 {
		c.SeedCount = DefaultSeedCount
	}
	if c.GraphDepth <= 0 {
		c.GraphDepth = DefaultGraphDepth
	}
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = DefaultMaxLimit
	}
	return c
}
