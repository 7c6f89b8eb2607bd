package hybrid

import (
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/fusion"
)

// Request is one retrieval call. Limit <= 0 uses the configured default.
type Request struct {
	Query       string
	Limit       int
	ItemTypes   []string
	TenantScope string
	// Debug asks for provenance in the diagnostics.
	Debug bool
}

type Response struct {
	Results     []item.Ranked[item.Item] `json:"results"`
	Diagnostics Diagnostics              `json:"diagnostics"`
}

// Diagnostics explains how a response was produced.
type Diagnostics struct {
	TraceID         string                         `json:"trace_id,omitempty"`
	SourceCounts    map[string]int                 `json:"source_counts"`
	SourceErrors    map[string]string              `json:"source_errors,omitempty"`
	FusionMethod    string                         `json:"fusion_method,omitempty"`
	Reranked        bool                           `json:"reranked"`
	RerankReason    string                         `json:"rerank_reason,omitempty"`
	TemporalApplied bool                           `json:"temporal_applied"`
	Provenance      map[string][]fusion.Appearance `json:"provenance,omitempty"`
	TimingsMs       map[string]float64             `json:"timings_ms,omitempty"`
}

// Degraded reports whether any source failed.
func (d Diagnostics) Degraded() bool {
	return len(d.SourceErrors) > 0
}

// sourceLog collects per-source outcomes from concurrent stages.
type sourceLog struct {
	mu     sync.Mutex
	counts map[string]int
	errs   map[string]string
}

func newSourceLog() *sourceLog {
	return &sourceLog{counts: make(map[string]int), errs: make(map[string]string)}
}

func (l *sourceLog) record(source string, n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[source] = n
	if err != nil {
		l.errs[source] = err.Error()
	}
}

func (l *sourceLog) snapshot() (map[string]int, map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[string]int, len(l.counts))
	for k, v := range l.counts {
		counts[k] = v
	}
	var errs map[string]string
	if len(l.errs) > 0 {
		errs = make(map[string]string, len(l.errs))
		for k, v := range l.errs {
			errs[k] = v
		}
	}
	return counts, errs
}
