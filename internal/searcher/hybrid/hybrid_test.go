package hybrid

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/fusion"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/rerank"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/temporal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/resilience"
)

func entity(id, content string) *item.Entity {
	return &item.Entity{UUID: id, Name: id, Content: content}
}

type fakeVector struct {
	calls   atomic.Int32
	mu      sync.Mutex
	last    VectorQuery
	results []item.Ranked[item.Item]
	err     error
	block   bool
	// delay ignores ctx, like a provider that cannot be interrupted.
	delay   time.Duration
}

func (f *fakeVector) Search(ctx context.Context, q VectorQuery) ([]item.Ranked[item.Item], error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = q
	f.mu.Unlock()
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeVector) lastQuery() VectorQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeGraph struct {
	calls     atomic.Int32
	mu        sync.Mutex
	last      TraversalQuery
	neighbors []Neighbor
	err       error
}

func (f *fakeGraph) Traverse(_ context.Context, q TraversalQuery) ([]Neighbor, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = q
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.neighbors, nil
}

func (f *fakeGraph) lastQuery() TraversalQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeBackend struct {
	fn func(docs []string) ([]float64, error)
}

func (f fakeBackend) Score(_ context.Context, _ string, docs []string) ([]float64, error) {
	return f.fn(docs)
}

func vectorHits(ids ...string) []item.Ranked[item.Item] {
	out := make([]item.Ranked[item.Item], len(ids))
	for i, id := range ids {
		out[i] = item.Ranked[item.Item]{Item: entity(id, "content of "+id), Score: 1 - float64(i)*0.05}
	}
	return out
}

func exactIndex(t *testing.T, docs map[string]string) *index.Index {
	t.Helper()
	idx := index.New(index.DefaultConfig())
	for id, body := range docs {
		_, err := idx.Add(entity(id, body))
		require.NoError(t, err)
	}
	return idx
}

func newOrchestrator(t *testing.T, cfg Config, deps Deps) *Orchestrator {
	t.Helper()
	o, err := New(cfg, deps)
	require.NoError(t, err)
	return o
}

func TestSearchCombinesSources(t *testing.T) {
	vec := &fakeVector{results: vectorHits("a", "b", "c")}
	graph := &fakeGraph{neighbors: []Neighbor{
		{Item: entity("d", "neighbor"), Distance: 1},
		{Item: entity("e", "second neighbor"), Distance: 2},
	}}
	idx := exactIndex(t, map[string]string{
		"b": "graph retrieval engines",
		"e": "retrieval pipelines",
	})

	o := newOrchestrator(t, DefaultConfig(), Deps{Vector: vec, Graph: graph, Exact: idx})
	resp, err := o.Search(context.Background(), Request{Query: "retrieval", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{SourceVector: 3, SourceGraph: 2, SourceBM25: 2}, resp.Diagnostics.SourceCounts)
	assert.Empty(t, resp.Diagnostics.SourceErrors)
	assert.Equal(t, FusionRRF, resp.Diagnostics.FusionMethod)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, item.IDs(resp.Results))
	// b is ranked well by both vector and exact match.
	assert.Equal(t, "b", resp.Results[0].Item.ID())
	assert.NotEmpty(t, resp.Diagnostics.TraceID)
	assert.Contains(t, resp.Diagnostics.TimingsMs, "fusion")
}

func TestGraphSeededFromVectorResults(t *testing.T) {
	vec := &fakeVector{results: vectorHits("v1", "v2", "v3", "v4", "v5", "v6", "v7")}
	graph := &fakeGraph{neighbors: []Neighbor{
		{Item: entity("v1", "seed echoed back"), Distance: 0},
		{Item: entity("n1", "near"), Distance: 1},
		{Item: entity("n2", "far"), Distance: 3},
	}}
	cfg := DefaultConfig()
	cfg.GraphDepth = 3

	o := newOrchestrator(t, cfg, Deps{Vector: vec, Graph: graph})
	resp, err := o.Search(context.Background(), Request{Query: "who", Limit: 4, TenantScope: "tenant-1"})
	require.NoError(t, err)

	q := graph.lastQuery()
	assert.Equal(t, []string{"v1", "v2", "v3", "v4", "v5"}, q.SeedIDs)
	assert.Equal(t, 3, q.Depth)
	assert.Equal(t, 8, q.Limit)
	assert.Equal(t, "tenant-1", q.TenantScope)
	assert.Equal(t, 8, vec.lastQuery().Limit)
	assert.Equal(t, 2, resp.Diagnostics.SourceCounts[SourceGraph])
	assert.Len(t, resp.Results, 4)
}

func TestGraphSkipped(t *testing.T) {
	t.Run("zero weight", func(t *testing.T) {
		graph := &fakeGraph{}
		cfg := DefaultConfig()
		cfg.GraphWeight = 0
		o := newOrchestrator(t, cfg, Deps{Vector: &fakeVector{results: vectorHits("a")}, Graph: graph})

		_, err := o.Search(context.Background(), Request{Query: "q"})
		require.NoError(t, err)
		assert.Zero(t, graph.calls.Load())
	})

	t.Run("no vector results", func(t *testing.T) {
		graph := &fakeGraph{}
		o := newOrchestrator(t, DefaultConfig(), Deps{Vector: &fakeVector{}, Graph: graph})

		resp, err := o.Search(context.Background(), Request{Query: "q"})
		require.NoError(t, err)
		assert.Zero(t, graph.calls.Load())
		assert.NotContains(t, resp.Diagnostics.SourceCounts, SourceGraph)
	})
}

func TestExactMatchHonorsTenantScope(t *testing.T) {
	idx := index.New(index.DefaultConfig())
	for _, e := range []*item.Entity{
		{UUID: "mine", Name: "mine", Content: "quarterly revenue report", GroupID: "tenant-1"},
		{UUID: "theirs", Name: "theirs", Content: "quarterly revenue forecast", GroupID: "tenant-2"},
		{UUID: "shared", Name: "shared", Content: "revenue glossary"},
	} {
		_, err := idx.Add(e)
		require.NoError(t, err)
	}

	o := newOrchestrator(t, DefaultConfig(), Deps{Exact: idx})
	resp, err := o.Search(context.Background(), Request{Query: "revenue", TenantScope: "tenant-1"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"mine", "shared"}, item.IDs(resp.Results))

	resp, err = o.Search(context.Background(), Request{Query: "revenue"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
}

func TestProviderErrorDegradesToEmptyList(t *testing.T) {
	vec := &fakeVector{err: errors.New("connection refused")}
	idx := exactIndex(t, map[string]string{"x": "hybrid retrieval"})

	o := newOrchestrator(t, DefaultConfig(), Deps{Vector: vec, Graph: &fakeGraph{}, Exact: idx})
	resp, err := o.Search(context.Background(), Request{Query: "retrieval"})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, item.IDs(resp.Results))
	assert.Equal(t, 0, resp.Diagnostics.SourceCounts[SourceVector])
	assert.Contains(t, resp.Diagnostics.SourceErrors[SourceVector], "connection refused")
	assert.True(t, resp.Diagnostics.Degraded())
}

func TestProviderTimeoutDegradesToEmptyList(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProviderTimeout = 20 * time.Millisecond
	idx := exactIndex(t, map[string]string{"x": "slow provider fallback"})

	o := newOrchestrator(t, cfg, Deps{Vector: &fakeVector{block: true}, Exact: idx})
	resp, err := o.Search(context.Background(), Request{Query: "fallback"})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, item.IDs(resp.Results))
	assert.Contains(t, resp.Diagnostics.SourceErrors[SourceVector], "timed out")
}

func TestLateProviderResultIsDiscarded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProviderTimeout = 5 * time.Millisecond
	vec := &fakeVector{results: vectorHits("late"), delay: 50 * time.Millisecond}
	idx := exactIndex(t, map[string]string{"x": "uninterruptible provider"})

	o := newOrchestrator(t, cfg, Deps{Vector: vec, Exact: idx})
	resp, err := o.Search(context.Background(), Request{Query: "provider"})
	require.NoError(t, err)

	assert.Equal(t, []string{"x"}, item.IDs(resp.Results))
	assert.Contains(t, resp.Diagnostics.SourceErrors[SourceVector], "timed out")
	// Let the abandoned call finish so the race detector sees its write.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, []string{"x"}, item.IDs(resp.Results))
}

func TestZeroWeightSourceExcludedFromFusion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.GraphWeight = 0
	cfg.BM25Weight = 0
	idx := exactIndex(t, map[string]string{"z": "keyword only match"})

	o := newOrchestrator(t, cfg, Deps{
		Vector: &fakeVector{results: vectorHits("a", "b")},
		Exact:  idx,
	})
	resp, err := o.Search(context.Background(), Request{Query: "keyword"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, item.IDs(resp.Results))
	assert.Equal(t, 1, resp.Diagnostics.SourceCounts[SourceBM25])

	cfg.FusionMethod = FusionWeighted
	o = newOrchestrator(t, cfg, Deps{
		Vector: &fakeVector{results: vectorHits("a", "b")},
		Exact:  idx,
	})
	resp, err = o.Search(context.Background(), Request{Query: "keyword"})
	require.NoError(t, err)
	assert.NotContains(t, item.IDs(resp.Results), "z")
}

func TestAllSourcesEmptyYieldsEmptyResults(t *testing.T) {
	o := newOrchestrator(t, DefaultConfig(), Deps{
		Vector: &fakeVector{err: errors.New("down")},
		Exact:  index.New(index.DefaultConfig()),
	})
	resp, err := o.Search(context.Background(), Request{Query: "anything"})
	require.NoError(t, err)
	require.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestEmptyQuery(t *testing.T) {
	vec := &fakeVector{results: vectorHits("a")}
	o := newOrchestrator(t, DefaultConfig(), Deps{Vector: vec})

	resp, err := o.Search(context.Background(), Request{Query: "   "})
	require.NoError(t, err)
	require.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
	assert.Zero(t, vec.calls.Load())
}

func TestCancelledContext(t *testing.T) {
	o := newOrchestrator(t, DefaultConfig(), Deps{Vector: &fakeVector{results: vectorHits("a")}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.Search(ctx, Request{Query: "q"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRerankDisabledMatchesFusionOutput(t *testing.T) {
	vecHits := vectorHits("a", "b", "c", "d", "e", "f")
	graph := &fakeGraph{neighbors: []Neighbor{
		{Item: entity("g", "g"), Distance: 1},
		{Item: entity("c", "c"), Distance: 1},
		{Item: entity("h", "h"), Distance: 2},
	}}
	idx := exactIndex(t, map[string]string{"e": "disabled rerank", "i": "rerank"})

	cfg := DefaultConfig()
	o := newOrchestrator(t, cfg, Deps{
		Vector:   &fakeVector{results: vecHits},
		Graph:    graph,
		Exact:    idx,
		Reranker: rerank.Disabled(),
	})
	resp, err := o.Search(context.Background(), Request{Query: "rerank", Limit: 3})
	require.NoError(t, err)

	expected := fusion.RRF([]fusion.List[item.Item]{
		{Name: SourceVector, Weight: cfg.VectorWeight, Results: vecHits},
		{Name: SourceGraph, Weight: cfg.GraphWeight, Results: neighborsToRanked(excludeSeeds(graph.neighbors, []string{"a", "b", "c", "d", "e"}))},
		{Name: SourceBM25, Weight: cfg.BM25Weight, Results: idx.Search("rerank", 6, 0)},
	}, fusion.Options{K: cfg.RRFK, Limit: 6})

	assert.Equal(t, expected[:3], resp.Results)
	assert.False(t, resp.Diagnostics.Reranked)
	assert.Equal(t, rerank.ReasonDisabled, resp.Diagnostics.RerankReason)
}

func TestRerankApplied(t *testing.T) {
	backend := fakeBackend{fn: func(docs []string) ([]float64, error) {
		out := make([]float64, len(docs))
		for i := range docs {
			out[i] = float64(i)
		}
		return out, nil
	}}
	o := newOrchestrator(t, DefaultConfig(), Deps{
		Vector:   &fakeVector{results: vectorHits("a", "b", "c")},
		Reranker: rerank.New(rerank.DefaultConfig(), backend),
	})
	resp, err := o.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	assert.True(t, resp.Diagnostics.Reranked)
	assert.Empty(t, resp.Diagnostics.RerankReason)
	assert.Equal(t, []string{"c", "b", "a"}, item.IDs(resp.Results))
}

func TestRerankFailureKeepsFusedOrder(t *testing.T) {
	backend := fakeBackend{fn: func([]string) ([]float64, error) {
		return nil, fmt.Errorf("%w: model crashed", apperrors.ErrScoringFailure)
	}}
	o := newOrchestrator(t, DefaultConfig(), Deps{
		Vector:   &fakeVector{results: vectorHits("a", "b", "c")},
		Reranker: rerank.New(rerank.DefaultConfig(), backend),
	})
	resp, err := o.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	assert.False(t, resp.Diagnostics.Reranked)
	assert.Equal(t, rerank.ReasonBackendError, resp.Diagnostics.RerankReason)
	assert.Equal(t, []string{"a", "b", "c"}, item.IDs(resp.Results))
}

func TestProvenance(t *testing.T) {
	idx := exactIndex(t, map[string]string{"b": "provenance check"})
	o := newOrchestrator(t, DefaultConfig(), Deps{
		Vector: &fakeVector{results: vectorHits("a", "b")},
		Exact:  idx,
	})

	resp, err := o.Search(context.Background(), Request{Query: "provenance"})
	require.NoError(t, err)
	assert.Nil(t, resp.Diagnostics.Provenance)

	resp, err = o.Search(context.Background(), Request{Query: "provenance", Debug: true})
	require.NoError(t, err)
	assert.Equal(t, []fusion.Appearance{
		{List: SourceVector, Rank: 2},
		{List: SourceBM25, Rank: 1},
	}, resp.Diagnostics.Provenance["b"])
	assert.Equal(t, []fusion.Appearance{{List: SourceVector, Rank: 1}}, resp.Diagnostics.Provenance["a"])
}

func TestWeightedFusion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FusionMethod = FusionWeighted
	cfg.Aggregation = fusion.AggregateSum
	idx := exactIndex(t, map[string]string{"c": "weighted fusion"})

	o := newOrchestrator(t, cfg, Deps{
		Vector: &fakeVector{results: vectorHits("a", "b", "c")},
		Exact:  idx,
	})
	resp, err := o.Search(context.Background(), Request{Query: "fusion"})
	require.NoError(t, err)

	assert.Equal(t, FusionWeighted, resp.Diagnostics.FusionMethod)
	assert.Equal(t, "c", resp.Results[0].Item.ID())
}

func TestTemporalBoost(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -200)
	fresh := now.AddDate(0, 0, -1)

	hits := []item.Ranked[item.Item]{
		{Item: &item.Entity{UUID: "old", Content: "old", ValidAt: &old}, Score: 1},
		{Item: &item.Entity{UUID: "fresh", Content: "fresh", ValidAt: &fresh}, Score: 0.9},
	}
	cfg := DefaultConfig()
	cfg.ApplyTemporal = true
	cfg.Temporal = temporal.DefaultBooster()
	cfg.Temporal.Now = func() time.Time { return now }

	o := newOrchestrator(t, cfg, Deps{Vector: &fakeVector{results: hits}})
	resp, err := o.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)

	assert.True(t, resp.Diagnostics.TemporalApplied)
	assert.Equal(t, []string{"fresh", "old"}, item.IDs(resp.Results))
}

func TestLimitBounds(t *testing.T) {
	vec := &fakeVector{results: vectorHits("a", "b", "c", "d", "e")}
	cfg := DefaultConfig()
	cfg.DefaultLimit = 2
	cfg.MaxLimit = 3
	o := newOrchestrator(t, cfg, Deps{Vector: vec})

	resp, err := o.Search(context.Background(), Request{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 4, vec.lastQuery().Limit)

	resp, err = o.Search(context.Background(), Request{Query: "q", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 3)
	assert.Equal(t, 6, vec.lastQuery().Limit)
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	m := metrics.New(nil)
	vec := &fakeVector{err: errors.New("down")}
	o := newOrchestrator(t, DefaultConfig(), Deps{
		Vector:  vec,
		Metrics: m,
		Breaker: resilience.CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute},
	})

	for i := 0; i < 3; i++ {
		resp, err := o.Search(context.Background(), Request{Query: "q"})
		require.NoError(t, err)
		assert.Contains(t, resp.Diagnostics.SourceErrors, SourceVector)
	}

	assert.Equal(t, int32(2), vec.calls.Load())
	state, ok := o.BreakerState(SourceVector)
	require.True(t, ok)
	assert.Equal(t, resilience.StateOpen, state)
	assert.Equal(t, float64(resilience.StateOpen), testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues(SourceVector)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.SourceFailuresTotal.WithLabelValues(SourceVector)))
}

func TestNewValidation(t *testing.T) {
	_, err := New(DefaultConfig(), Deps{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	cfg := DefaultConfig()
	cfg.FusionMethod = "borda"
	_, err = New(cfg, Deps{Exact: index.New(index.DefaultConfig())})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.GraphDepth = 9
	_, err = New(cfg, Deps{Exact: index.New(index.DefaultConfig())})
	assert.ErrorIs(t, err, apperrors.ErrInvalidConfig)
}

func TestDistanceScore(t *testing.T) {
	assert.Equal(t, 1.0, DistanceScore(0))
	assert.Equal(t, 0.5, DistanceScore(1))
	assert.InDelta(t, 1.0/3, DistanceScore(2), 1e-12)
	assert.Equal(t, 1.0, DistanceScore(-1))
}
