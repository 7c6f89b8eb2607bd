package main

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/fusion"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/hybrid"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/rerank"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/temporal"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/resilience"
)

func indexConfig(c config.IndexConfig) index.Config {
	return index.Config{
		Params:         ranker.Params{K1: c.K1, B: c.B},
		MinTokenLength: c.MinTokenLength,
		StopWords:      c.StopWords,
		Stem:           c.Stem,
	}
}

func hybridConfig(c config.RetrievalConfig) hybrid.Config {
	agg := fusion.AggregateMean
	if c.Aggregation == "sum" {
		agg = fusion.AggregateSum
	}
	return hybrid.Config{
		VectorWeight:  c.VectorWeight,
		GraphWeight:   c.GraphWeight,
		BM25Weight:    c.BM25Weight,
		FusionMethod:  c.FusionMethod,
		RRFK:          c.RRFK,
		Normalize:     c.Normalize,
		Aggregation:   agg,
		GraphDepth:    c.GraphDepth,
		SeedCount:     hybrid.DefaultSeedCount,
		UseExactMatch: c.UseExactMatch,
		BM25MinScore:  c.BM25MinScore,
		ApplyTemporal: c.ApplyTemporal,
		Temporal: temporal.Booster{
			DecayDays:  c.TemporalDecayDays,
			Floor:      c.TemporalFloor,
			MaxAgeDays: c.TemporalMaxAgeDays,
		},
		DefaultLimit:      c.DefaultLimit,
		MaxLimit:          c.MaxLimit,
		ProviderTimeout:   c.ProviderTimeout,
		IncludeProvenance: c.IncludeProvenance,
	}
}

func rerankSettings(c config.RerankConfig) rerank.Settings {
	return rerank.Settings{
		Config: rerank.Config{
			Enabled:         c.ApplyReranking,
			TopK:            c.TopK,
			MaxExcerptChars: c.MaxExcerptChars,
			ScoreFloor:      c.ScoreFloor,
		},
		Provider:        c.Provider,
		Model:           c.Model,
		UseGPU:          c.UseGPU,
		FallbackOnError: c.FallbackOnError,
		BatchSize:       c.BatchSize,
		Remote: rerank.RemoteConfig{
			BaseURL: c.RemoteURL,
			APIKey:  c.RemoteAPIKey,
			Model:   c.Model,
			Timeout: c.RemoteTimeout,
		},
	}
}

func breakerConfig(c config.BreakerConfig) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		FailureThreshold:    c.FailureThreshold,
		ResetTimeout:        c.ResetTimeout,
		HalfOpenMaxRequests: 1,
	}
}

// replicaGroup gives each replica its own consumer group: every replica
// keeps a full in-memory index, so each must see every item event.
func replicaGroup(base string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return base
	}
	return base + "-" + host
}

// debouncer coalesces bursts of calls into one call after quiet has
// elapsed since the last of them.
type debouncer struct {
	mu    sync.Mutex
	quiet time.Duration
	fn    func(ctx context.Context)
	timer *time.Timer
}

func newDebouncer(quiet time.Duration, fn func(ctx context.Context)) *debouncer {
	return &debouncer{quiet: quiet, fn: fn}
}

func (d *debouncer) Trigger(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.quiet, func() {
		d.fn(context.WithoutCancel(ctx))
	})
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}
