package rerank

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

func newTestClient(endpoint string) *Client {
	return New(&Config{
		APIKey:     "test-key",
		Endpoint:   endpoint,
		Model:      "test-rerank",
		Provider:   "test",
		MaxRetries: 2,
		Timeout:    5 * time.Second,
		Logger:     zap.NewNop(),
	})
}

func TestRerank_OrderedResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Query != "what is go" || len(req.Documents) != 3 || req.TopN != 2 {
			t.Errorf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"index": 2, "relevance_score": 0.95},
			{"index": 0, "relevance_score": 0.40}
		]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	results, err := c.Rerank(context.Background(), "what is go", []string{"a", "b", "c"}, 2)
	if err != nil {
		t.Fatalf("Rerank failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Index != 2 || results[0].Score != 0.95 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Index != 0 || results[1].Score != 0.40 {
		t.Errorf("unexpected second result: %+v", results[1])
	}
}

func TestRerank_EmptyInput(t *testing.T) {
	c := newTestClient("http://unused")

	results, err := c.Rerank(context.Background(), "q", nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}

	results, err = c.Rerank(context.Background(), "q", []string{"a"}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results for topN=0, got %v", results)
	}
}

func TestRerank_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results": [{"index": 0, "relevance_score": 1.0}]}`))
	}))
	defer server.Close()

	c := New(&Config{
		APIKey:     "test-key",
		Endpoint:   server.URL,
		Model:      "test-rerank",
		Provider:   "test",
		MaxRetries: 3,
		Logger:     zap.NewNop(),
	})
	// Shrink backoff so the test stays fast.
	c.httpClient.Timeout = time.Second

	results, err := c.Rerank(context.Background(), "q", []string{"a"}, 1)
	if err != nil {
		t.Fatalf("Rerank failed after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if len(results) != 1 || results[0].Index != 0 {
		t.Fatalf("unexpected results: %v", results)
	}
}

func TestRerank_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "documents must not be empty"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Rerank(context.Background(), "q", []string{"a"}, 1)
	if !errors.Is(err, domain.ErrRerankProviderError) {
		t.Fatalf("expected ErrRerankProviderError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected exactly 1 attempt for 400, got %d", calls.Load())
	}
}

func TestRerank_RateLimitedWrapsSentinel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"message": "slow down"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Rerank(context.Background(), "q", []string{"a"}, 1)
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestRerank_IndexOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"index": 5, "relevance_score": 0.9}]}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)

	_, err := c.Rerank(context.Background(), "q", []string{"a", "b"}, 2)
	if !errors.Is(err, domain.ErrRerankProviderError) {
		t.Fatalf("expected ErrRerankProviderError, got %v", err)
	}
}
