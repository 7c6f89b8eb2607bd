package rerank

import (
	"context"
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// Backend scores documents against a query. It must return exactly one
// score per document, in document order.
type Backend interface {
	Score(ctx context.Context, query string, docs []string) ([]float64, error)
}

// Pair is one (query, document) input to a pairwise model.
type Pair struct {
	Query    string
	Document string
}

// Predictor is a loaded pairwise relevance model. Predict is CPU or GPU
// bound and is only ever called from a Pool worker.
type Predictor interface {
	Predict(pairs []Pair) ([]float64, error)
	Close() error
}

// LocalBackend runs a Predictor in batches of BatchSize on a Pool.
type LocalBackend struct {
	predictor Predictor
	pool      *Pool
	batchSize int
}

const DefaultBatchSize = 32

func NewLocalBackend(predictor Predictor, pool *Pool, batchSize int) *LocalBackend {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &LocalBackend{predictor: predictor, pool: pool, batchSize: batchSize}
}

// Score submits the whole request as one pool job so the batches of a
// single rerank call run back to back on one worker.
func (b *LocalBackend) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return []float64{}, nil
	}
	pairs := make([]Pair, len(docs))
	for i, d := range docs {
		pairs[i] = Pair{Query: query, Document: d}
	}
	return b.pool.Do(ctx, func(ctx context.Context) ([]float64, error) {
		scores := make([]float64, 0, len(pairs))
		for start := 0; start < len(pairs); start += b.batchSize {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			end := min(start+b.batchSize, len(pairs))
			batch, err := b.predictor.Predict(pairs[start:end])
			if err != nil {
				return nil, fmt.Errorf("%w: predict batch %d-%d: %v", apperrors.ErrScoringFailure, start, end, err)
			}
			if len(batch) != end-start {
				return nil, fmt.Errorf("%w: predictor returned %d scores for %d pairs",
					apperrors.ErrScoringFailure, len(batch), end-start)
			}
			scores = append(scores, batch...)
		}
		return scores, nil
	})
}
