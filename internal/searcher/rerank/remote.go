package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
)

// RemoteConfig points RemoteBackend at a Jina/Cohere-style rerank API.
type RemoteConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type remoteRequest struct {
	Model     string   `json:"model,omitempty"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type remoteResult struct {
	Index          *int     `json:"index"`
	RelevanceScore *float64 `json:"relevance_score"`
}

type remoteResponse struct {
	Results []remoteResult `json:"results"`
}

// RemoteBackend calls POST {BaseURL}/rerank and asks for a score for every
// document. A response that omits any document is a scoring failure.
type RemoteBackend struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewRemoteBackend(cfg RemoteConfig) (*RemoteBackend, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: remote rerank base URL is required", apperrors.ErrInvalidConfig)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RemoteBackend{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (b *RemoteBackend) Score(ctx context.Context, query string, docs []string) ([]float64, error) {
	if len(docs) == 0 {
		return []float64{}, nil
	}
	body, err := json.Marshal(remoteRequest{
		Model:     b.model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: rerank request: %v", apperrors.ErrScoringFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: rerank API returned status %d: %s",
			apperrors.ErrScoringFailure, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var out remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode rerank response: %v", apperrors.ErrScoringFailure, err)
	}

	scores := make([]float64, len(docs))
	seen := make([]bool, len(docs))
	for _, r := range out.Results {
		if r.Index == nil || r.RelevanceScore == nil {
			return nil, fmt.Errorf("%w: rerank result missing index or relevance_score", apperrors.ErrScoringFailure)
		}
		i := *r.Index
		if i < 0 || i >= len(docs) || seen[i] {
			return nil, fmt.Errorf("%w: rerank result has invalid index %d", apperrors.ErrScoringFailure, i)
		}
		seen[i] = true
		scores[i] = *r.RelevanceScore
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("%w: rerank response has no score for document %d", apperrors.ErrScoringFailure, i)
		}
	}
	return scores, nil
}
