package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/rank"
)

const (
	defaultTopK = 10
	// rerankCandidateFactor widens the local ranking cutoff before the
	// external rerank pass narrows it back to TopK.
	rerankCandidateFactor = 3
)

// Options configures a single retrieval call.
type Options struct {
	TopK          int  // results to return; <= 0 means the default
	Candidates    int  // local ranking cutoff before reranking; <= 0 derives from TopK
	DisableRerank bool // skip the external rerank pass even when configured
}

// Service retrieves the most relevant documents for a query: it embeds the
// corpus and the query, ranks locally by dot product, and optionally refines
// the candidate order through an external reranker.
type Service struct {
	queryEmb QueryEmbedder
	docEmb   DocumentEmbedder
	reranker Reranker
	workers  int
	logger   *zap.Logger
}

// New creates a retrieval service. reranker may be nil. workers > 1 enables
// parallel scoring for large corpora.
func New(
	queryEmb QueryEmbedder,
	docEmb DocumentEmbedder,
	reranker Reranker,
	workers int,
	logger *zap.Logger,
) *Service {
	return &Service{
		queryEmb: queryEmb,
		docEmb:   docEmb,
		reranker: reranker,
		workers:  workers,
		logger:   logger,
	}
}

// Retrieve returns the top documents for the query in descending relevance
// order. Embeddings live only for the duration of the call.
func (s *Service) Retrieve(
	ctx context.Context, query string, docs []domain.Document, opts *Options,
) ([]domain.ScoredDocument, error) {
	if opts == nil {
		opts = &Options{}
	}
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	if len(docs) == 0 {
		return []domain.ScoredDocument{}, nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	batchRes, err := s.docEmb.BatchEmbed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("vectorize documents: %w", err)
	}
	// An embedder that returns the wrong number of vectors would either
	// panic the ranker or silently drop documents from it.
	if len(batchRes.Embeddings) != len(docs) {
		return nil, fmt.Errorf("vectorize documents: expected %d embeddings, got %d: %w",
			len(docs), len(batchRes.Embeddings), domain.ErrEmbeddingProviderError)
	}
	domain.UsageFromContext(ctx).AddTokens(batchRes.TotalTokens)

	queryRes, err := s.queryEmb.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("vectorize query: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(queryRes.TotalTokens)

	candidateK := topK
	useRerank := s.reranker != nil && !opts.DisableRerank
	if useRerank {
		candidateK = opts.Candidates
		if candidateK <= 0 {
			candidateK = topK * rerankCandidateFactor
		}
		if candidateK < topK {
			candidateK = topK
		}
	}

	matches, err := rank.RankParallel(queryRes.Embedding, batchRes.Embeddings, candidateK, s.workers)
	if err != nil {
		return nil, fmt.Errorf("rank documents: %w", err)
	}

	if useRerank {
		matches = s.rerankCandidates(ctx, query, docs, matches, topK)
	}
	if len(matches) > topK {
		matches = matches[:topK]
	}

	results := make([]domain.ScoredDocument, len(matches))
	for i, m := range matches {
		results[i] = domain.ScoredDocument{
			Document: docs[m.Index],
			Index:    m.Index,
			Score:    m.Score,
		}
	}
	return results, nil
}

// rerankCandidates refines the candidate order through the external reranker.
// Rerank failures fall back to the local dot-product order: a degraded answer
// beats no answer, and the error is not the caller's fault.
func (s *Service) rerankCandidates(
	ctx context.Context, query string, docs []domain.Document, matches []rank.Match, topK int,
) []rank.Match {
	candTexts := make([]string, len(matches))
	for i, m := range matches {
		candTexts[i] = docs[m.Index].Text
	}

	reranked, err := s.reranker.Rerank(ctx, query, candTexts, topK)
	if err != nil {
		s.logger.Warn("Rerank failed, falling back to local ranking", zap.Error(err))
		return matches
	}

	refined := make([]rank.Match, 0, len(reranked))
	for _, r := range reranked {
		if r.Index < 0 || r.Index >= len(matches) {
			s.logger.Warn("Rerank returned out-of-range candidate, falling back to local ranking",
				zap.Int("index", r.Index))
			return matches
		}
		refined = append(refined, rank.Match{Index: matches[r.Index].Index, Score: r.Score})
	}
	return refined
}
