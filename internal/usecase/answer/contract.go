package answer

import (
	"context"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// Retriever selects the supporting documents for a question.
type Retriever interface {
	Retrieve(
		ctx context.Context, query string, docs []domain.Document, opts *retrieval.Options,
	) ([]domain.ScoredDocument, error)
}

// Generator produces a grounded answer over the retrieved subset.
type Generator interface {
	Generate(ctx context.Context, question string, documents []domain.Document) (domain.Answer, error)
}

// QueryRewriter turns a conversational question into a search query.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, question string) (string, error)
}
