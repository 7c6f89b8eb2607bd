package analytics

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

const maxTopQueries = 100

// Handler exposes the in-process retrieval statistics of one replica.
type Handler struct {
	aggregator *Aggregator
	logger     *slog.Logger
}

func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{
		aggregator: aggregator,
		logger:     slog.Default().With("component", "analytics-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analytics/stats", h.Stats)
}

// Stats serves GET /api/v1/analytics/stats?top=N. top bounds the ranked
// query lists and defaults to DefaultTopQueries.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top, err := parseTop(r.URL.Query().Get("top"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, h.aggregator.StatsTop(top))
}

func parseTop(raw string) (int, error) {
	if raw == "" {
		return DefaultTopQueries, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxTopQueries {
		return 0, apperrors.Newf(apperrors.ErrInvalidQuery, http.StatusBadRequest,
			"top must be an integer between 1 and %d", maxTopQueries)
	}
	return n, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	message := "analytics request failed"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": message})
}
