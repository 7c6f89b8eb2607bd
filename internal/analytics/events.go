package analytics

import (
	"strings"
	"time"
)

type EventType string

const (
	EventRetrieval  EventType = "retrieval"
	EventZeroResult EventType = "zero_result"
	EventDegraded   EventType = "degraded"
)

// RetrievalEvent summarises one served retrieval request.
type RetrievalEvent struct {
	Type            EventType         `json:"type"`
	RequestID       string            `json:"request_id,omitempty"`
	TraceID         string            `json:"trace_id,omitempty"`
	Query           string            `json:"query"`
	Group           string            `json:"group,omitempty"`
	Limit           int               `json:"limit"`
	Returned        int               `json:"returned"`
	SourceCounts    map[string]int    `json:"source_counts,omitempty"`
	SourceErrors    map[string]string `json:"source_errors,omitempty"`
	FusionMethod    string            `json:"fusion_method,omitempty"`
	Reranked        bool              `json:"reranked"`
	RerankReason    string            `json:"rerank_reason,omitempty"`
	TemporalApplied bool              `json:"temporal_applied"`
	CacheHit        bool              `json:"cache_hit"`
	LatencyMs       int64             `json:"latency_ms"`
	Timestamp       time.Time         `json:"timestamp"`
}

// Classify sets Type from the event's outcome.
func (e *RetrievalEvent) Classify() {
	switch {
	case len(e.SourceErrors) > 0:
		e.Type = EventDegraded
	case e.Returned == 0:
		e.Type = EventZeroResult
	default:
		e.Type = EventRetrieval
	}
}

func normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
