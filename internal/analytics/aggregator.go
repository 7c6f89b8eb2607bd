package analytics

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/kafka"
)

const (
	maxLatencySamples = 10000
	// DefaultTopQueries is how many queries Stats ranks.
	DefaultTopQueries = 10
)

type AggregatedStats struct {
	TotalRetrievals   int64            `json:"total_retrievals"`
	CacheHits         int64            `json:"cache_hits"`
	CacheMisses       int64            `json:"cache_misses"`
	ZeroResultCount   int64            `json:"zero_result_count"`
	DegradedCount     int64            `json:"degraded_count"`
	RerankedCount     int64            `json:"reranked_count"`
	SourceFailures    map[string]int64 `json:"source_failures"`
	RerankReasons     map[string]int64 `json:"rerank_reasons"`
	AvgLatencyMs      float64          `json:"avg_latency_ms"`
	P50LatencyMs      int64            `json:"p50_latency_ms"`
	P95LatencyMs      int64            `json:"p95_latency_ms"`
	P99LatencyMs      int64            `json:"p99_latency_ms"`
	TopQueries        []QueryCount     `json:"top_queries"`
	ZeroResultQueries []QueryCount     `json:"zero_result_queries"`
	QueriesPerMinute  float64          `json:"queries_per_minute"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps in-process retrieval statistics. Latency samples are
// held in a fixed-size ring so memory stays bounded.
type Aggregator struct {
	mu                sync.RWMutex
	totalRetrievals   int64
	cacheHits         int64
	cacheMisses       int64
	zeroResults       int64
	degraded          int64
	reranked          int64
	sourceFailures    map[string]int64
	rerankReasons     map[string]int64
	latencies         []int64
	next              int
	queryCounts       map[string]int64
	zeroResultQueries map[string]int64
	startTime         time.Time
	now               func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{
		sourceFailures:    make(map[string]int64),
		rerankReasons:     make(map[string]int64),
		latencies:         make([]int64, 0, 1024),
		queryCounts:       make(map[string]int64),
		zeroResultQueries: make(map[string]int64),
		startTime:         time.Now(),
		now:               time.Now,
	}
}

// HandleEvent adapts the aggregator to a Kafka consumer so a standalone
// process can aggregate events published by every retriever replica.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[RetrievalEvent](value)
		if err != nil {
			slog.Default().Error("failed to decode analytics event", "error", err)
			return fmt.Errorf("%w: %v", kafka.ErrSkip, err)
		}
		agg.Record(event)
		return nil
	}
}

// Record folds one event into the running totals.
func (a *Aggregator) Record(event RetrievalEvent) {
	if event.Type == "" {
		event.Classify()
	}
	query := normalize(event.Query)

	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalRetrievals++
	if event.CacheHit {
		a.cacheHits++
	} else {
		a.cacheMisses++
	}
	if event.Returned == 0 {
		a.zeroResults++
		a.zeroResultQueries[query]++
	}
	if event.Type == EventDegraded {
		a.degraded++
	}
	for source := range event.SourceErrors {
		a.sourceFailures[source]++
	}
	if event.Reranked {
		a.reranked++
	}
	if event.RerankReason != "" {
		a.rerankReasons[event.RerankReason]++
	}
	a.queryCounts[query]++

	if len(a.latencies) < maxLatencySamples {
		a.latencies = append(a.latencies, event.LatencyMs)
	} else {
		a.latencies[a.next] = event.LatencyMs
		a.next = (a.next + 1) % maxLatencySamples
	}
}

func (a *Aggregator) Stats() AggregatedStats {
	return a.StatsTop(DefaultTopQueries)
}

// StatsTop is Stats with the top and zero-result query lists cut to n.
func (a *Aggregator) StatsTop(n int) AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		TotalRetrievals: a.totalRetrievals,
		CacheHits:       a.cacheHits,
		CacheMisses:     a.cacheMisses,
		ZeroResultCount: a.zeroResults,
		DegradedCount:   a.degraded,
		RerankedCount:   a.reranked,
		SourceFailures:  copyCounts(a.sourceFailures),
		RerankReasons:   copyCounts(a.rerankReasons),
	}
	if len(a.latencies) > 0 {
		sorted := make([]int64, len(a.latencies))
		copy(sorted, a.latencies)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	stats.TopQueries = topN(a.queryCounts, n)
	stats.ZeroResultQueries = topN(a.zeroResultQueries, n)
	elapsed := a.now().Sub(a.startTime).Minutes()
	if elapsed > 0 {
		stats.QueriesPerMinute = float64(stats.TotalRetrievals) / elapsed
	}
	return stats
}

func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for query, count := range counts {
		result = append(result, QueryCount{Query: query, Count: count})
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].Query < result[j].Query
	})
	if len(result) > n {
		result = result[:n]
	}
	return result
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
