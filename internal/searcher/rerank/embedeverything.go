//go:build embedeverything

package rerank

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/go-embedeverything/pkg/embedder"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// DefaultCrossEncoderModel is loaded when no model name is configured.
const DefaultCrossEncoderModel = "BAAI/bge-reranker-base"

// EmbedEverythingPredictor runs a native cross-encoder through
// go-embedeverything.
type EmbedEverythingPredictor struct {
	mu       sync.Mutex
	reranker *embedder.Reranker
}

// NewEmbedEverythingPredictor loads model. Device placement is decided by
// the native library build, so useGPU is only logged.
func NewEmbedEverythingPredictor(model string, useGPU bool) (Predictor, error) {
	if model == "" {
		model = DefaultCrossEncoderModel
	}
	r, err := embedder.NewReranker(model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrModelUnavailable, err)
	}
	slog.Default().Info("cross-encoder loaded", "model", model, "use_gpu", useGPU)
	return &EmbedEverythingPredictor{reranker: r}, nil
}

// Predict groups consecutive pairs that share a query into one native call
// and maps the returned passages back to their input positions.
func (p *EmbedEverythingPredictor) Predict(pairs []Pair) ([]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scores := make([]float64, len(pairs))
	for start := 0; start < len(pairs); {
		end := start + 1
		for end < len(pairs) && pairs[end].Query == pairs[start].Query {
			end++
		}
		passages := make([]string, end-start)
		positions := make(map[string][]int, end-start)
		for i := start; i < end; i++ {
			passages[i-start] = pairs[i].Document
			positions[pairs[i].Document] = append(positions[pairs[i].Document], i)
		}

		results, err := p.reranker.Rerank(pairs[start].Query, passages)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrScoringFailure, err)
		}
		if len(results) != len(passages) {
			return nil, fmt.Errorf("%w: cross-encoder returned %d results for %d passages",
				apperrors.ErrScoringFailure, len(results), len(passages))
		}
		for _, r := range results {
			queue := positions[r.Text]
			if len(queue) == 0 {
				return nil, fmt.Errorf("%w: cross-encoder returned an unknown passage", apperrors.ErrScoringFailure)
			}
			scores[queue[0]] = float64(r.Score)
			positions[r.Text] = queue[1:]
		}
		start = end
	}
	return scores, nil
}

func (p *EmbedEverythingPredictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.reranker != nil {
		p.reranker.Close()
		p.reranker = nil
	}
	return nil
}
