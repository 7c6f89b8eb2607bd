// Package embedding turns query text into vectors through an
// OpenAI-compatible embeddings endpoint, with an in-process LRU cache in
// front of it.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"

	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Hybrid-Retrieval-Engine/pkg/resilience"
)

const defaultCacheSize = 1024

type embeddingsAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// Client embeds text. It is safe for concurrent use.
type Client struct {
	api        embeddingsAPI
	model      openai.EmbeddingModel
	dimensions int
	timeout    time.Duration
	retry      resilience.RetryConfig
	cache      *lru.Cache[string, []float32]
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New builds a Client from cfg. BaseURL, when set, points the client at a
// self-hosted OpenAI-compatible server.
func New(cfg config.EmbeddingConfig, m *metrics.Metrics) (*Client, error) {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	return newWithAPI(openai.NewClientWithConfig(clientConfig), cfg, m)
}

func newWithAPI(api embeddingsAPI, cfg config.EmbeddingConfig, m *metrics.Metrics) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", apperrors.ErrInvalidConfig)
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("creating embedding cache: %w", err)
	}
	return &Client{
		api:        api,
		model:      openai.EmbeddingModel(cfg.Model),
		dimensions: cfg.Dimensions,
		timeout:    cfg.Timeout,
		retry: resilience.RetryConfig{
			MaxAttempts:  cfg.MaxRetries + 1,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Retryable:    retryable,
		},
		cache:   cache,
		metrics: m,
		logger:  logger.WithComponent("embedding"),
	}, nil
}

// Embed returns the embedding for text. Repeated texts are served from the
// cache; callers must not modify the returned slice.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty text", apperrors.ErrInvalidQuery)
	}
	key := string(c.model) + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		if c.metrics != nil {
			c.metrics.EmbeddingCacheHits.Inc()
		}
		return v, nil
	}
	if c.metrics != nil {
		c.metrics.EmbeddingCacheMisses.Inc()
	}

	var vec []float32
	err := resilience.Retry(ctx, "embedding", c.retry, func() error {
		callCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		resp, err := c.api.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Input:      []string{text},
			Model:      c.model,
			Dimensions: c.dimensions,
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return errEmptyResponse
		}
		vec = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	c.cache.Add(key, vec)
	return vec, nil
}

// CacheLen reports the number of cached embeddings.
func (c *Client) CacheLen() int {
	return c.cache.Len()
}

var errEmptyResponse = errors.New("embedding response contained no vectors")

// retryable reports whether err is worth another attempt: rate limits,
// server errors and transport failures are, client errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, errEmptyResponse) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return statusRetryable(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return statusRetryable(reqErr.HTTPStatusCode)
	}
	return true
}

func statusRetryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
