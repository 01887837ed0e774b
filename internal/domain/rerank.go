package domain

import "context"

// RerankResult is one reranked candidate: the index into the candidate list
// passed to Rerank (not into any larger collection) plus the provider's score.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker is the contract for an external relevance-scoring pass that
// reorders an already-retrieved candidate set. Results come back sorted by
// score descending, length <= topN.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}
