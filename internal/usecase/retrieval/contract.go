package retrieval

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// QueryEmbedder vectorizes the search query.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// DocumentEmbedder vectorizes the document corpus in batch.
type DocumentEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

// Reranker reorders a candidate set via an external relevance pass.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]domain.RerankResult, error)
}
