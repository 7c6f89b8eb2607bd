//go:build !embedeverything

package rerank

import (
	"fmt"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// DefaultCrossEncoderModel is loaded when no model name is configured.
const DefaultCrossEncoderModel = "BAAI/bge-reranker-base"

// NewEmbedEverythingPredictor always fails in builds without the
// embedeverything tag.
func NewEmbedEverythingPredictor(model string, _ bool) (Predictor, error) {
	return nil, fmt.Errorf("%w: %s requires a build with -tags embedeverything", apperrors.ErrModelUnavailable, model)
}
