package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDimensionMismatch signals inconsistent vector dimensions within one ranking call.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRerankProviderError signals a rerank provider failure.
	ErrRerankProviderError = errors.New("rerank provider error")
	// ErrGenerationProviderError signals a chat generation provider failure.
	ErrGenerationProviderError = errors.New("generation provider error")
	// ErrNoGenerator signals that no generation provider is configured.
	ErrNoGenerator = errors.New("no generation provider configured")
)

// DimensionMismatchError wraps ErrDimensionMismatch with the offending document index.
type DimensionMismatchError struct {
	Index int
	Want  int
	Got   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: document %d has dimension %d, query has %d",
		ErrDimensionMismatch.Error(), e.Index, e.Got, e.Want)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionMismatch creates a dimension mismatch error for document index i.
func NewDimensionMismatch(i, want, got int) error {
	return &DimensionMismatchError{Index: i, Want: want, Got: got}
}
