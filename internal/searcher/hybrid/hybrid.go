// Package hybrid runs a retrieval request end to end: vector search, graph
// traversal seeded from it, exact-match lookup, rank fusion, reranking,
// recency boosting and truncation. Provider failures degrade to fewer
// sources; they never fail the request.
package hybrid

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/fusion"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/rerank"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/temporal"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/tracing"
)

// Deps are the collaborators an Orchestrator calls. Any source may be nil;
// at least one of Vector and Exact must be set.
type Deps struct {
	Vector   VectorSearcher
	Graph    GraphTraverser
	Exact    ExactMatcher
	Reranker *rerank.Reranker
	Metrics  *metrics.Metrics
	// Breaker configures the per-source circuit breakers.
	Breaker resilience.CircuitBreakerConfig
}

type Orchestrator struct {
	cfg      Config
	vector   VectorSearcher
	graph    GraphTraverser
	exact    ExactMatcher
	reranker *rerank.Reranker
	metrics  *metrics.Metrics
	breakers map[string]*resilience.CircuitBreaker
	logger   *slog.Logger
}

func New(cfg Config, deps Deps) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Vector == nil && deps.Exact == nil {
		return nil, fmt.Errorf("%w: no retrieval source configured", apperrors.ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()

	o := &Orchestrator{
		cfg:      cfg,
		vector:   deps.Vector,
		graph:    deps.Graph,
		exact:    deps.Exact,
		reranker: deps.Reranker,
		metrics:  deps.Metrics,
		breakers: make(map[string]*resilience.CircuitBreaker, 2),
		logger:   logger.WithComponent("hybrid"),
	}
	if o.reranker == nil {
		o.reranker = rerank.Disabled()
	}

	bcfg := deps.Breaker
	userHook := bcfg.OnStateChange
	bcfg.OnStateChange = func(name string, to resilience.State) {
		o.logger.Info("source breaker changed state", "source", name, "state", to.String())
		if o.metrics != nil {
			o.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
		if userHook != nil {
			userHook(name, to)
		}
	}
	for _, source := range []string{SourceVector, SourceGraph} {
		o.breakers[source] = resilience.NewCircuitBreaker(source, bcfg)
	}
	return o, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// BreakerState reports the circuit state guarding source.
func (o *Orchestrator) BreakerState(source string) (resilience.State, bool) {
	cb, ok := o.breakers[source]
	if !ok {
		return resilience.StateClosed, false
	}
	return cb.GetState(), true
}

// Search runs one retrieval. An empty query yields an empty response. The
// only error returned is the caller's own context ending before fusion.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	limit := o.limit(req.Limit)

	resp := &Response{
		Results:     []item.Ranked[item.Item]{},
		Diagnostics: Diagnostics{SourceCounts: map[string]int{}},
	}
	if query == "" {
		return resp, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	traceID := ""
	if parent := tracing.SpanFromContext(ctx); parent != nil {
		traceID = parent.TraceID
	}
	ctx, root := tracing.StartSpan(ctx, "retrieve", traceID)
	ctx = logger.WithTraceID(ctx, root.TraceID)
	log := logger.ForComponent(ctx, "hybrid")
	resp.Diagnostics.TraceID = root.TraceID

	fetch := limit * 2
	sources := newSourceLog()

	var vectorResults, graphResults, exactResults []item.Ranked[item.Item]
	var g errgroup.Group
	if o.vector != nil {
		g.Go(func() error {
			vectorResults = o.searchVector(ctx, log, sources, VectorQuery{
				Text:        query,
				ItemTypes:   req.ItemTypes,
				Limit:       fetch,
				TenantScope: req.TenantScope,
			})
			if o.graph != nil && o.cfg.GraphWeight > 0 && len(vectorResults) > 0 {
				graphResults = o.traverse(ctx, log, sources, TraversalQuery{
					SeedIDs:     seedIDs(vectorResults, o.cfg.SeedCount),
					Depth:       o.cfg.GraphDepth,
					Limit:       fetch,
					TenantScope: req.TenantScope,
				})
			}
			return nil
		})
	}
	if o.exact != nil && o.cfg.UseExactMatch {
		g.Go(func() error {
			exactResults = o.searchExact(ctx, sources, query, fetch, req.TenantScope)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		root.End()
		return nil, err
	}

	// A zero weight switches a source off. fusion reads Weight <= 0 as unset.
	lists := make([]fusion.List[item.Item], 0, 3)
	for _, l := range []fusion.List[item.Item]{
		{Name: SourceVector, Weight: o.cfg.VectorWeight, Results: vectorResults},
		{Name: SourceGraph, Weight: o.cfg.GraphWeight, Results: graphResults},
		{Name: SourceBM25, Weight: o.cfg.BM25Weight, Results: exactResults},
	} {
		if l.Weight > 0 && len(l.Results) > 0 {
			lists = append(lists, l)
		}
	}

	provenance := req.Debug || o.cfg.IncludeProvenance
	fused := o.fuse(ctx, lists, fetch, provenance, &resp.Diagnostics)

	_, rerankSpan := tracing.StartChildSpan(ctx, "rerank")
	reranked, outcome := o.reranker.Rerank(ctx, query, fused)
	o.endStage(rerankSpan)
	resp.Diagnostics.Reranked = outcome.Applied
	if !outcome.Applied {
		resp.Diagnostics.RerankReason = outcome.Reason
	}
	if o.metrics != nil {
		label := "applied"
		if !outcome.Applied {
			label = outcome.Reason
		}
		o.metrics.RerankOutcomesTotal.WithLabelValues(label).Inc()
	}

	results := reranked
	if o.cfg.ApplyTemporal && len(results) > 0 {
		_, temporalSpan := tracing.StartChildSpan(ctx, "temporal")
		results = temporal.Apply(o.cfg.Temporal, results)
		o.endStage(temporalSpan)
		resp.Diagnostics.TemporalApplied = true
	}

	if len(results) > limit {
		results = results[:limit]
	}
	if results != nil {
		resp.Results = results
	}

	counts, errs := sources.snapshot()
	resp.Diagnostics.SourceCounts = counts
	resp.Diagnostics.SourceErrors = errs

	root.SetAttr("results", len(results))
	root.End()
	resp.Diagnostics.TimingsMs = root.ChildDurations()
	root.Log(log)

	o.observe(resp, time.Since(start))
	log.Debug("retrieval complete",
		"results", len(results),
		"sources", counts,
		"fusion", resp.Diagnostics.FusionMethod,
		"reranked", outcome.Applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (o *Orchestrator) limit(requested int) int {
	if requested <= 0 {
		return o.cfg.DefaultLimit
	}
	if requested > o.cfg.MaxLimit {
		return o.cfg.MaxLimit
	}
	return requested
}

func (o *Orchestrator) fuse(ctx context.Context, lists []fusion.List[item.Item], limit int, provenance bool, diag *Diagnostics) []item.Ranked[item.Item] {
	_, span := tracing.StartChildSpan(ctx, "fusion")
	defer o.endStage(span)

	diag.FusionMethod = o.cfg.FusionMethod
	span.SetAttr("method", o.cfg.FusionMethod)
	span.SetAttr("lists", len(lists))

	if o.cfg.FusionMethod == FusionWeighted {
		fused := fusion.WeightedScore(lists, fusion.WeightedOptions{
			Normalize:   o.cfg.Normalize,
			Aggregation: o.cfg.Aggregation,
			Limit:       limit,
		})
		if provenance {
			diag.Provenance = provenanceOf(fusion.RRFWithMetadata(lists, fusion.Options{K: o.cfg.RRFK}))
		}
		return fused
	}

	opts := fusion.Options{K: o.cfg.RRFK, Limit: limit}
	if !provenance {
		return fusion.RRF(lists, opts)
	}
	entries := fusion.RRFWithMetadata(lists, opts)
	diag.Provenance = provenanceOf(entries)
	out := make([]item.Ranked[item.Item], len(entries))
	for i, e := range entries {
		out[i] = item.Ranked[item.Item]{Item: e.Item, Score: e.Score}
	}
	return out
}

func provenanceOf(entries []fusion.Entry[item.Item]) map[string][]fusion.Appearance {
	out := make(map[string][]fusion.Appearance, len(entries))
	for _, e := range entries {
		out[e.Item.ID()] = e.Appearances
	}
	return out
}

func (o *Orchestrator) searchVector(ctx context.Context, log *slog.Logger, sources *sourceLog, q VectorQuery) []item.Ranked[item.Item] {
	ctx, span := tracing.StartChildSpan(ctx, SourceVector)
	defer o.endStage(span)

	var results []item.Ranked[item.Item]
	err := o.guard(ctx, SourceVector, func(ctx context.Context) error {
		res, err := o.vector.Search(ctx, q)
		if err != nil {
			return err
		}
		results = res
		return nil
	})
	if err != nil {
		return o.settle(log, sources, SourceVector, nil, err)
	}
	return o.settle(log, sources, SourceVector, results, nil)
}

func (o *Orchestrator) traverse(ctx context.Context, log *slog.Logger, sources *sourceLog, q TraversalQuery) []item.Ranked[item.Item] {
	ctx, span := tracing.StartChildSpan(ctx, SourceGraph)
	defer o.endStage(span)
	span.SetAttr("seeds", len(q.SeedIDs))

	var neighbors []Neighbor
	err := o.guard(ctx, SourceGraph, func(ctx context.Context) error {
		res, err := o.graph.Traverse(ctx, q)
		if err != nil {
			return err
		}
		neighbors = res
		return nil
	})
	if err != nil {
		return o.settle(log, sources, SourceGraph, nil, err)
	}
	return o.settle(log, sources, SourceGraph, neighborsToRanked(excludeSeeds(neighbors, q.SeedIDs)), nil)
}

// searchExact queries the local index. The index is shared across tenants,
// so a scoped request drops items that belong to another group.
func (o *Orchestrator) searchExact(ctx context.Context, sources *sourceLog, query string, limit int, scope string) []item.Ranked[item.Item] {
	_, span := tracing.StartChildSpan(ctx, SourceBM25)
	defer o.endStage(span)

	results := o.exact.Search(query, limit, o.cfg.BM25MinScore)
	if scope != "" {
		results = inScope(results, scope)
	}
	sources.record(SourceBM25, len(results), nil)
	o.observeSource(SourceBM25, len(results), nil)
	return results
}

// guard runs fn under the source's circuit breaker with the provider
// timeout. fn's results must only be read when guard returns nil.
func (o *Orchestrator) guard(ctx context.Context, source string, fn func(ctx context.Context) error) error {
	call := func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, o.cfg.ProviderTimeout, source, fn)
	}
	if cb, ok := o.breakers[source]; ok {
		return cb.ExecuteContext(ctx, call)
	}
	return call(ctx)
}

func (o *Orchestrator) settle(log *slog.Logger, sources *sourceLog, source string, results []item.Ranked[item.Item], err error) []item.Ranked[item.Item] {
	if err != nil {
		err = fmt.Errorf("%w: %w", apperrors.ErrProviderUnavailable, err)
		log.Warn("source degraded to empty list", "source", source, "error", err)
		results = nil
	}
	sources.record(source, len(results), err)
	o.observeSource(source, len(results), err)
	return results
}

func (o *Orchestrator) endStage(span *tracing.Span) {
	d := span.End()
	if o.metrics != nil {
		o.metrics.StageLatency.WithLabelValues(span.Name).Observe(d.Seconds())
	}
}

func (o *Orchestrator) observeSource(source string, n int, err error) {
	if o.metrics == nil {
		return
	}
	o.metrics.SourceResults.WithLabelValues(source).Observe(float64(n))
	if err != nil {
		o.metrics.SourceFailuresTotal.WithLabelValues(source).Inc()
	}
}

func (o *Orchestrator) observe(resp *Response, elapsed time.Duration) {
	if o.metrics == nil {
		return
	}
	resultType := "hit"
	switch {
	case resp.Diagnostics.Degraded():
		resultType = "degraded"
	case len(resp.Results) == 0:
		resultType = "zero_result"
	}
	o.metrics.RetrievalsTotal.WithLabelValues(resultType).Inc()
	o.metrics.StageLatency.WithLabelValues("total").Observe(elapsed.Seconds())
}

func inScope(results []item.Ranked[item.Item], scope string) []item.Ranked[item.Item] {
	out := results[:0:0]
	for _, r := range results {
		if g, ok := r.Item.(item.Grouped); ok && g.Group() != "" && g.Group() != scope {
			continue
		}
		out = append(out, r)
	}
	return out
}

func seedIDs(results []item.Ranked[item.Item], n int) []string {
	if len(results) < n {
		n = len(results)
	}
	ids := make([]string, 0, n)
	for _, r := range results[:n] {
		ids = append(ids, r.Item.ID())
	}
	return ids
}

func excludeSeeds(neighbors []Neighbor, seeds []string) []Neighbor {
	skip := make(map[string]struct{}, len(seeds))
	for _, id := range seeds {
		skip[id] = struct{}{}
	}
	out := neighbors[:0:0]
	for _, n := range neighbors {
		if n.Item == nil {
			continue
		}
		if _, ok := skip[n.Item.ID()]; ok {
			continue
		}
		out = append(out, n)
	}
	return out
}
