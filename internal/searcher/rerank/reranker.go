// Package rerank re-scores the head of a fused ranking with a pairwise
// relevance model. Any failure leaves the input ranking untouched: the
// caller gets the original slice back plus an Outcome saying why.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/internal/item"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
)

const (
	DefaultTopK            = 20
	DefaultMaxExcerptChars = 512

	// remainderHeadroom keeps the best remainder score strictly under the
	// weakest reranked candidate when both are positive.
	remainderHeadroom = 0.99
)

// Reasons reported in Outcome.Reason when reranking did not apply.
const (
	ReasonDisabled      = "disabled"
	ReasonNoBackend     = "no_backend"
	ReasonEmptyInput    = "empty_input"
	ReasonBackendError  = "backend_error"
	ReasonTimeout       = "timeout"
	ReasonPanic         = "panic"
	ReasonScoreMismatch = "score_count_mismatch"
)

type Config struct {
	Enabled         bool
	TopK            int
	MaxExcerptChars int
	// ScoreFloor, when set, drops reranked candidates scoring below it.
	ScoreFloor *float64
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		TopK:            DefaultTopK,
		MaxExcerptChars: DefaultMaxExcerptChars,
	}
}

// Outcome describes what a Rerank call did.
type Outcome struct {
	Applied    bool          `json:"applied"`
	Reason     string        `json:"reason,omitempty"`
	Candidates int           `json:"candidates"`
	Dropped    int           `json:"dropped,omitempty"`
	Duration   time.Duration `json:"duration"`
}

type Reranker struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger
}

// New returns a Reranker. A nil backend is allowed and makes every call a
// no-op with ReasonNoBackend.
func New(cfg Config, backend Backend) *Reranker {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MaxExcerptChars <= 0 {
		cfg.MaxExcerptChars = DefaultMaxExcerptChars
	}
	return &Reranker{
		cfg:     cfg,
		backend: backend,
		logger:  logger.WithComponent("reranker"),
	}
}

// Disabled returns a Reranker that never applies.
func Disabled() *Reranker {
	return New(Config{}, nil)
}

func (r *Reranker) Enabled() bool {
	return r != nil && r.cfg.Enabled && r.backend != nil
}

// Rerank re-scores the first TopK results and re-sorts them. The rest keep
// their relative order but are rescaled to sit strictly below the weakest
// reranked candidate. When nothing is applied the returned slice is
// results itself.
func (r *Reranker) Rerank(ctx context.Context, query string, results []item.Ranked[item.Item]) ([]item.Ranked[item.Item], Outcome) {
	if r == nil || !r.cfg.Enabled {
		return results, Outcome{Reason: ReasonDisabled}
	}
	if r.backend == nil {
		return results, Outcome{Reason: ReasonNoBackend}
	}
	if len(results) == 0 {
		return results, Outcome{Reason: ReasonEmptyInput}
	}

	start := time.Now()
	k := min(r.cfg.TopK, len(results))
	candidates, remainder := results[:k], results[k:]

	docs := make([]string, k)
	for i, c := range candidates {
		docs[i] = item.Excerpt(c.Item, r.cfg.MaxExcerptChars)
	}

	scores, err := r.score(ctx, query, docs)
	if err != nil {
		reason := failureReason(err)
		logger.FromContext(ctx).Warn("reranking skipped",
			"component", "reranker",
			"reason", reason,
			"candidates", k,
			"error", err,
		)
		return results, Outcome{Reason: reason, Candidates: k, Duration: time.Since(start)}
	}
	if len(scores) != k {
		logger.FromContext(ctx).Warn("reranking skipped",
			"component", "reranker",
			"reason", ReasonScoreMismatch,
			"candidates", k,
			"scores", len(scores),
		)
		return results, Outcome{Reason: ReasonScoreMismatch, Candidates: k, Duration: time.Since(start)}
	}

	reranked := make([]item.Ranked[item.Item], 0, len(results))
	for i, c := range candidates {
		reranked = append(reranked, item.Ranked[item.Item]{Item: c.Item, Score: scores[i]})
	}
	sort.SliceStable(reranked, func(i, j int) bool { return reranked[i].Score > reranked[j].Score })

	dropped := 0
	if r.cfg.ScoreFloor != nil {
		floor := *r.cfg.ScoreFloor
		kept := reranked[:0]
		for _, c := range reranked {
			if c.Score >= floor {
				kept = append(kept, c)
			}
		}
		dropped = len(reranked) - len(kept)
		reranked = kept
	}

	reranked = append(reranked, rescaleRemainder(reranked, remainder)...)

	out := Outcome{Applied: true, Candidates: k, Dropped: dropped, Duration: time.Since(start)}
	r.logger.Debug("reranked",
		"candidates", k,
		"remainder", len(remainder),
		"dropped", dropped,
		"duration", out.Duration,
	)
	return reranked, out
}

// score calls the backend, turning a panic into an error.
func (r *Reranker) score(ctx context.Context, query string, docs []string) (scores []float64, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = &PanicError{Value: v}
		}
	}()
	return r.backend.Score(ctx, query, docs)
}

// rescaleRemainder maps remainder scores below the lowest candidate score,
// preserving their order. With no surviving candidates the remainder is
// returned as is.
func rescaleRemainder(candidates, remainder []item.Ranked[item.Item]) []item.Ranked[item.Item] {
	out := make([]item.Ranked[item.Item], len(remainder))
	copy(out, remainder)
	if len(candidates) == 0 || len(remainder) == 0 {
		return out
	}

	minCand := candidates[len(candidates)-1].Score
	maxRem := remainder[0].Score
	for _, rr := range remainder[1:] {
		maxRem = max(maxRem, rr.Score)
	}

	// ceiling is the largest score strictly below minCand, even where
	// minCand-1 rounds back to minCand.
	ceiling := math.Nextafter(minCand, math.Inf(-1))
	for i := range out {
		s := out[i].Score
		if minCand > 0 && maxRem > 0 {
			out[i].Score = min(s/maxRem*minCand*remainderHeadroom, ceiling)
		} else {
			out[i].Score = min(minCand-1, ceiling) - (maxRem - s)
		}
	}
	return out
}

func failureReason(err error) string {
	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		return ReasonPanic
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, apperrors.ErrTimeout):
		return ReasonTimeout
	default:
		return ReasonBackendError
	}
}

// String implements fmt.Stringer for log lines.
func (o Outcome) String() string {
	if o.Applied {
		return fmt.Sprintf("applied(%d candidates)", o.Candidates)
	}
	return "skipped(" + o.Reason + ")"
}
