// Package handler exposes the retrieval engine over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/searcher/hybrid"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/middleware"
)

type Retriever interface {
	Search(ctx context.Context, req hybrid.Request) (*hybrid.Response, error)
}

type IndexStats interface {
	Stats() index.Stats
}

// Tracker receives one event per served request. *analytics.Collector
// satisfies it.
type Tracker interface {
	Track(event analytics.RetrievalEvent)
}

// Result is the wire form of a ranked item.
type Result struct {
	Item  item.Record `json:"item"`
	Score float64     `json:"score"`
}

type RetrieveResponse struct {
	Query       string             `json:"query"`
	Results     []Result           `json:"results"`
	Diagnostics hybrid.Diagnostics `json:"diagnostics"`
	CacheHit    bool               `json:"cache_hit"`
	LatencyMs   int64              `json:"latency_ms"`
}

type Handler struct {
	retriever    Retriever
	cache        *cache.QueryCache[RetrieveResponse]
	index        IndexStats
	tracker      Tracker
	metrics      *metrics.Metrics
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// New builds the handler. queryCache, idx, tracker and m may be nil.
func New(retriever Retriever, queryCache *cache.QueryCache[RetrieveResponse], idx IndexStats, tracker Tracker, m *metrics.Metrics, defaultLimit, maxLimit int) *Handler {
	if defaultLimit <= 0 {
		defaultLimit = hybrid.DefaultLimit
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Handler{
		retriever:    retriever,
		cache:        queryCache,
		index:        idx,
		tracker:      tracker,
		metrics:      m,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       slog.Default().With("component", "retrieve-handler"),
	}
}

// Register mounts the handler's routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/retrieve", h.Retrieve)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

// Retrieve serves GET /api/v1/retrieve?q=&limit=&group=&types=&debug=.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	req, err := h.parseRequest(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	key := cache.Key{
		Query: req.Query,
		Limit: req.Limit,
		Group: req.TenantScope,
		Types: req.ItemTypes,
		Debug: req.Debug,
	}
	compute := func(ctx context.Context) (RetrieveResponse, error) {
		return h.retrieve(ctx, req)
	}

	var resp RetrieveResponse
	cacheHit := false
	cacheStatus := "bypass"
	if h.cache != nil {
		resp, cacheHit, err = h.cache.GetOrCompute(ctx, key, compute)
		cacheStatus = "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
	} else {
		resp, err = compute(ctx)
	}

	elapsed := time.Since(start)
	if err != nil {
		log.Error("retrieval failed", "query", req.Query, "error", err)
		if h.metrics != nil {
			h.metrics.RetrievalsTotal.WithLabelValues("error").Inc()
		}
		h.writeError(w, err)
		return
	}

	resp.CacheHit = cacheHit
	resp.LatencyMs = elapsed.Milliseconds()
	if h.metrics != nil {
		h.metrics.RetrievalLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	}

	log.Info("retrieval completed",
		"query", req.Query,
		"returned", len(resp.Results),
		"degraded", resp.Diagnostics.Degraded(),
		"cache_hit", cacheHit,
		"latency_ms", resp.LatencyMs,
	)
	h.track(ctx, req, resp)
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) retrieve(ctx context.Context, req hybrid.Request) (RetrieveResponse, error) {
	out, err := h.retriever.Search(ctx, req)
	if err != nil {
		return RetrieveResponse{}, err
	}
	resp := RetrieveResponse{
		Query:       req.Query,
		Results:     make([]Result, 0, len(out.Results)),
		Diagnostics: out.Diagnostics,
	}
	for _, r := range out.Results {
		rec, err := item.NewRecord(r.Item)
		if err != nil {
			h.logger.Warn("dropping unserialisable result", "error", err)
			continue
		}
		resp.Results = append(resp.Results, Result{Item: rec, Score: r.Score})
	}
	return resp, nil
}

func (h *Handler) parseRequest(r *http.Request) (hybrid.Request, error) {
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		return hybrid.Request{}, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "query parameter 'q' is required")
	}

	limit := h.defaultLimit
	if s := q.Get("limit"); s != "" {
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 1 {
			return hybrid.Request{}, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = min(parsed, h.maxLimit)
	}

	debug := false
	if s := q.Get("debug"); s != "" {
		parsed, err := strconv.ParseBool(s)
		if err != nil {
			return hybrid.Request{}, apperrors.New(apperrors.ErrInvalidQuery, http.StatusBadRequest, "debug must be a boolean")
		}
		debug = parsed
	}

	var types []string
	for _, t := range strings.Split(q.Get("types"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, t)
		}
	}

	return hybrid.Request{
		Query:       query,
		Limit:       limit,
		ItemTypes:   types,
		TenantScope: strings.TrimSpace(q.Get("group")),
		Debug:       debug,
	}, nil
}

func (h *Handler) track(ctx context.Context, req hybrid.Request, resp RetrieveResponse) {
	if h.tracker == nil {
		return
	}
	h.tracker.Track(analytics.RetrievalEvent{
		RequestID:       middleware.GetRequestID(ctx),
		TraceID:         resp.Diagnostics.TraceID,
		Query:           req.Query,
		Group:           req.TenantScope,
		Limit:           req.Limit,
		Returned:        len(resp.Results),
		SourceCounts:    resp.Diagnostics.SourceCounts,
		SourceErrors:    resp.Diagnostics.SourceErrors,
		FusionMethod:    resp.Diagnostics.FusionMethod,
		Reranked:        resp.Diagnostics.Reranked,
		RerankReason:    resp.Diagnostics.RerankReason,
		TemporalApplied: resp.Diagnostics.TemporalApplied,
		CacheHit:        resp.CacheHit,
		LatencyMs:       resp.LatencyMs,
		Timestamp:       time.Now().UTC(),
	})
}

// IndexStats serves GET /api/v1/index/stats.
func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.index.Stats())
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "caching is disabled"})
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache invalidation failed"})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	message := "retrieval failed"
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		message = appErr.Message
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		message = "retrieval timed out"
	case status != http.StatusInternalServerError:
		message = err.Error()
	}
	h.writeJSON(w, status, map[string]string{"error": message})
}
