// Package rerank provides a client for hosted rerank APIs that follow the
// common JSON shape: query + documents + top_n in, ordered index/score pairs out.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
)

// Client calls a hosted rerank endpoint. Implements domain.Reranker.
type Client struct {
	apiKey     string
	endpoint   string
	model      string
	provider   string
	maxRetries uint64
	httpClient *http.Client
	logger     *zap.Logger
}

// Config holds the rerank provider settings.
type Config struct {
	APIKey     string
	Endpoint   string // full URL of the rerank endpoint
	Model      string
	Provider   string
	MaxRetries int // <= 0 means the default
	Timeout    time.Duration
	Logger     *zap.Logger
}

// New creates a rerank client.
func New(cfg *Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRetries := uint64(defaultMaxRetries)
	if cfg.MaxRetries > 0 {
		maxRetries = uint64(cfg.MaxRetries)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		provider:   cfg.Provider,
		maxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		logger:     cfg.Logger,
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

type rerankErrorResponse struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// Rerank implements domain.Reranker. Retries 429 and 5xx responses with
// fibonacci backoff; 4xx responses fail immediately (malformed input cannot
// be fixed by retrying).
func (c *Client) Rerank(
	ctx context.Context, query string, documents []string, topN int,
) ([]domain.RerankResult, error) {
	if len(documents) == 0 || topN <= 0 {
		return []domain.RerankResult{}, nil
	}

	payload, err := json.Marshal(rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rerank request: %w", err)
	}

	start := time.Now()

	var parsed rerankResponse
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewFibonacci(retryBaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		return c.doRequest(ctx, payload, &parsed)
	})

	duration := time.Since(start)

	if err != nil {
		metrics.RerankRequestsTotal.WithLabelValues(c.provider, c.model, "error").Inc()
		return nil, err
	}

	metrics.RerankRequestsTotal.WithLabelValues(c.provider, c.model, "success").Inc()
	metrics.RerankRequestDuration.WithLabelValues(c.provider, c.model).Observe(duration.Seconds())

	results := make([]domain.RerankResult, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf(
				"rerank response index %d out of range: %w", r.Index, domain.ErrRerankProviderError)
		}
		results = append(results, domain.RerankResult{Index: r.Index, Score: r.RelevanceScore})
	}
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

func (c *Client) doRequest(ctx context.Context, payload []byte, out *rerankResponse) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network errors are transient until the context says otherwise.
		return retry.RetryableError(fmt.Errorf("rerank request: %w: %w", err, domain.ErrRerankProviderError))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.RetryableError(fmt.Errorf("read rerank response: %w: %w", err, domain.ErrRerankProviderError))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// parsed below
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("Rerank rate limited, retrying", zap.String("provider", c.provider))
		return retry.RetryableError(fmt.Errorf(
			"rerank API error %d: %s: %w: %w",
			resp.StatusCode, errorMessage(body), domain.ErrRateLimited, domain.ErrRerankProviderError))
	case resp.StatusCode >= 500:
		c.logger.Warn("Rerank server error, retrying",
			zap.String("provider", c.provider), zap.Int("status", resp.StatusCode))
		return retry.RetryableError(fmt.Errorf(
			"rerank API error %d: %s: %w",
			resp.StatusCode, errorMessage(body), domain.ErrRerankProviderError))
	default:
		return fmt.Errorf("rerank API error %d: %s: %w",
			resp.StatusCode, errorMessage(body), domain.ErrRerankProviderError)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse rerank response: %v: %w", err, domain.ErrRerankProviderError)
	}
	return nil
}

func errorMessage(body []byte) string {
	var parsed rerankErrorResponse
	if json.Unmarshal(body, &parsed) == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Detail != "" {
			return parsed.Detail
		}
	}
	return string(body)
}
