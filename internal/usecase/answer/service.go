package answer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

// Options configures a single answer call.
type Options struct {
	Retrieval    retrieval.Options
	RewriteQuery bool // rewrite the question into a search query before retrieval
}

// Result is a grounded answer plus the documents it was grounded in.
// Citation sources index into the caller's original document slice.
type Result struct {
	Answer    domain.Answer
	Retrieved []domain.ScoredDocument
}

// Service answers questions over a caller-supplied corpus: retrieve the
// relevant subset, then generate a cited answer from it.
type Service struct {
	retriever Retriever
	generator Generator
	rewriter  QueryRewriter
	logger    *zap.Logger
}

// New creates an answer service. rewriter may be nil.
func New(retriever Retriever, generator Generator, rewriter QueryRewriter, logger *zap.Logger) *Service {
	return &Service{
		retriever: retriever,
		generator: generator,
		rewriter:  rewriter,
		logger:    logger,
	}
}

// Answer runs the full pipeline for one question.
func (s *Service) Answer(
	ctx context.Context, question string, docs []domain.Document, opts *Options,
) (Result, error) {
	if s.generator == nil {
		return Result{}, domain.ErrNoGenerator
	}
	if opts == nil {
		opts = &Options{}
	}

	query := question
	if opts.RewriteQuery && s.rewriter != nil {
		rewritten, err := s.rewriter.RewriteQuery(ctx, question)
		if err != nil {
			// The original question is still a usable query.
			s.logger.Warn("Query rewrite failed, using the question as-is", zap.Error(err))
		} else {
			query = rewritten
		}
	}

	retrieved, err := s.retriever.Retrieve(ctx, query, docs, &opts.Retrieval)
	if err != nil {
		return Result{}, fmt.Errorf("retrieve documents: %w", err)
	}

	subset := make([]domain.Document, len(retrieved))
	for i, r := range retrieved {
		subset[i] = r.Document
	}

	ans, err := s.generator.Generate(ctx, question, subset)
	if err != nil {
		return Result{}, fmt.Errorf("generate answer: %w", err)
	}
	domain.UsageFromContext(ctx).AddTokens(ans.TotalTokens)

	// The generator cites positions in the retrieved subset; map them back
	// to the caller's document indices. A source outside the subset is a
	// malformed provider response, not grounds for a panic: drop it.
	for ci := range ans.Citations {
		mapped := ans.Citations[ci].Sources[:0]
		for _, src := range ans.Citations[ci].Sources {
			if src < 0 || src >= len(retrieved) {
				s.logger.Warn("Citation source out of range, dropping",
					zap.Int("source", src), zap.Int("retrieved", len(retrieved)))
				continue
			}
			mapped = append(mapped, retrieved[src].Index)
		}
		ans.Citations[ci].Sources = mapped
	}

	return Result{Answer: ans, Retrieved: retrieved}, nil
}
