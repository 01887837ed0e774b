package ragdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/db"
	dbRedis "github.com/kailas-cloud/ragdex/internal/db/redis"
	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
	"github.com/kailas-cloud/ragdex/internal/rank"
	"github.com/kailas-cloud/ragdex/internal/repository/embcache"
	openaiTransport "github.com/kailas-cloud/ragdex/internal/transport/openai"
	rerankTransport "github.com/kailas-cloud/ragdex/internal/transport/rerank"
	answeruc "github.com/kailas-cloud/ragdex/internal/usecase/answer"
	retrievaluc "github.com/kailas-cloud/ragdex/internal/usecase/retrieval"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the ragdex SDK entry point.
type Client struct {
	store        db.Store
	retrievalSvc *retrievaluc.Service
	answerSvc    *answeruc.Service
	workers      int
}

// New creates a ragdex Client. An embedding provider is required; cache,
// rerank and generation are optional.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{workers: 1}
	for _, o := range opts {
		o.apply(cfg)
	}

	log := cfg.logger
	if log == nil {
		log = zap.NewNop()
	}

	embedder, err := buildEmbedder(cfg, log)
	if err != nil {
		return nil, err
	}

	var store db.Store
	if len(cfg.cacheAddrs) > 0 {
		store, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("ragdex: create cache store: %w", err)
		}
		if err := store.WaitForReady(context.Background(), defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("ragdex: cache not ready: %w", err)
		}
		embedder = embcache.New(embedder, store, cfg.cacheTTL, metrics.EmbeddingCacheTotal, log)
	}

	queryEmb := embedder
	if cfg.queryInstruction != "" {
		queryEmb = domain.NewInstructionEmbedder(embedder, cfg.queryInstruction)
	}
	var docEmb domain.Embedder = embedder
	if cfg.documentInstruction != "" {
		docEmb = domain.NewInstructionEmbedder(embedder, cfg.documentInstruction)
	}

	reranker := buildReranker(cfg, log)
	generator, rewriter := buildGenerator(cfg, log)

	retrievalSvc := retrievaluc.New(queryEmb, asBatchEmbedder(docEmb), reranker, cfg.workers, log)
	answerSvc := answeruc.New(retrievalSvc, generator, rewriter, log)

	return &Client{
		store:        store,
		retrievalSvc: retrievalSvc,
		answerSvc:    answerSvc,
		workers:      cfg.workers,
	}, nil
}

func buildEmbedder(cfg *clientConfig, log *zap.Logger) (domain.Embedder, error) {
	if cfg.embedder != nil {
		return &embedderAdapter{inner: cfg.embedder}, nil
	}
	if cfg.apiKey == "" {
		return nil, errors.New("ragdex: embedding provider required (use WithOpenAI or WithEmbedder)")
	}
	return openaiTransport.NewEmbedder(&openaiTransport.EmbedderConfig{
		APIKey:     cfg.apiKey,
		BaseURL:    cfg.baseURL,
		Model:      cfg.model,
		Dimensions: cfg.dimensions,
		Provider:   "openai",
		Logger:     log,
	}), nil
}

func buildReranker(cfg *clientConfig, log *zap.Logger) retrievaluc.Reranker {
	if cfg.reranker != nil {
		return &rerankerAdapter{inner: cfg.reranker}
	}
	if cfg.rerankEndpoint == "" {
		return nil
	}
	return rerankTransport.New(&rerankTransport.Config{
		APIKey:   cfg.rerankAPIKey,
		Endpoint: cfg.rerankEndpoint,
		Model:    cfg.rerankModel,
		Provider: "cohere",
		Logger:   log,
	})
}

func buildGenerator(cfg *clientConfig, log *zap.Logger) (answeruc.Generator, answeruc.QueryRewriter) {
	var generator answeruc.Generator
	var rewriter answeruc.QueryRewriter

	switch {
	case cfg.generator != nil:
		generator = &generatorAdapter{inner: cfg.generator}
	case cfg.generationModel != "":
		gen := openaiTransport.NewGenerator(&openaiTransport.GeneratorConfig{
			APIKey:    cfg.apiKey,
			BaseURL:   cfg.baseURL,
			Model:     cfg.generationModel,
			MaxTokens: cfg.generationMaxTokens,
			Provider:  "openai",
			Logger:    log,
		})
		generator = gen
		rewriter = gen
	}

	if cfg.rewriter != nil {
		rewriter = &rewriterAdapter{inner: cfg.rewriter}
	}
	return generator, rewriter
}

// Close releases the cache connection, if any.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// Ping checks cache connectivity. Returns nil when no cache is configured.
func (c *Client) Ping(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Retrieve embeds the query and the corpus, ranks by dot product and
// optionally reranks. Results come back in descending relevance order.
func (c *Client) Retrieve(
	ctx context.Context, query string, docs []Document, opts *RetrieveOptions,
) ([]ScoredDocument, error) {
	results, err := c.retrievalSvc.Retrieve(ctx, query, documentsToDomain(docs), retrieveOptions(opts))
	if err != nil {
		return nil, err
	}

	out := make([]ScoredDocument, len(results))
	for i, r := range results {
		out[i] = scoredFromDomain(r)
	}
	return out, nil
}

// Answer retrieves the relevant subset of the corpus and generates a cited
// answer from it. Requires generation to be configured.
func (c *Client) Answer(
	ctx context.Context, question string, docs []Document, opts *AnswerOptions,
) (*AnswerResult, error) {
	ucOpts := &answeruc.Options{}
	if opts != nil {
		ucOpts.Retrieval = *retrieveOptions(&opts.Retrieve)
		ucOpts.RewriteQuery = opts.RewriteQuery
	}

	ctx, usage := domain.NewContextWithUsage(ctx)
	result, err := c.answerSvc.Answer(ctx, question, documentsToDomain(docs), ucOpts)
	if err != nil {
		return nil, err
	}

	citations := make([]Citation, len(result.Answer.Citations))
	for i, cit := range result.Answer.Citations {
		citations[i] = Citation{Start: cit.Start, End: cit.End, Text: cit.Text, Sources: cit.Sources}
	}
	retrieved := make([]ScoredDocument, len(result.Retrieved))
	for i, r := range result.Retrieved {
		retrieved[i] = scoredFromDomain(r)
	}

	return &AnswerResult{
		Answer: Answer{
			Text:       result.Answer.Text,
			Citations:  citations,
			TokensUsed: usage.Tokens(),
		},
		Retrieved: retrieved,
	}, nil
}

// RankVectors ranks pre-computed document vectors against a query vector by
// dot product, descending, ties broken by document order. Returns at most k
// matches; k <= 0 yields an empty result.
func (c *Client) RankVectors(query []float32, vectors [][]float32, k int) ([]Match, error) {
	matches, err := rank.RankParallel(query, vectors, k, c.workers)
	if err != nil {
		return nil, err
	}

	out := make([]Match, len(matches))
	for i, m := range matches {
		out[i] = Match{Index: m.Index, Score: m.Score}
	}
	return out, nil
}

func retrieveOptions(opts *RetrieveOptions) *retrievaluc.Options {
	if opts == nil {
		return &retrievaluc.Options{}
	}
	return &retrievaluc.Options{
		TopK:          opts.TopK,
		Candidates:    opts.Candidates,
		DisableRerank: opts.DisableRerank,
	}
}

func documentsToDomain(docs []Document) []domain.Document {
	out := make([]domain.Document, len(docs))
	for i, d := range docs {
		out[i] = domain.Document{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	return out
}

func scoredFromDomain(r domain.ScoredDocument) ScoredDocument {
	return ScoredDocument{
		Document: Document{ID: r.Document.ID, Text: r.Document.Text, Metadata: r.Document.Metadata},
		Index:    r.Index,
		Score:    r.Score,
	}
}

// asBatchEmbedder upgrades an Embedder to batch use, falling back to
// per-text calls for implementations without native batch support.
func asBatchEmbedder(e domain.Embedder) retrievaluc.DocumentEmbedder {
	if be, ok := e.(domain.BatchEmbedder); ok {
		return be
	}
	return &batchFallbackEmbedder{inner: e}
}

type batchFallbackEmbedder struct {
	inner domain.Embedder
}

func (b *batchFallbackEmbedder) BatchEmbed(
	ctx context.Context, texts []string,
) (domain.BatchEmbeddingResult, error) {
	return domain.BatchFallback(ctx, b.inner, texts)
}

// embedderAdapter wraps a public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w", err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

func (a *embedderAdapter) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	be, ok := a.inner.(BatchEmbedder)
	if !ok {
		return domain.BatchFallback(ctx, a, texts)
	}
	r, err := be.BatchEmbed(ctx, texts)
	if err != nil {
		return domain.BatchEmbeddingResult{}, fmt.Errorf("batch embed: %w", err)
	}
	return domain.BatchEmbeddingResult{
		Embeddings:   r.Embeddings,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

type rerankerAdapter struct {
	inner Reranker
}

func (a *rerankerAdapter) Rerank(
	ctx context.Context, query string, documents []string, topN int,
) ([]domain.RerankResult, error) {
	results, err := a.inner.Rerank(ctx, query, documents, topN)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	out := make([]domain.RerankResult, len(results))
	for i, r := range results {
		out[i] = domain.RerankResult{Index: r.Index, Score: r.Score}
	}
	return out, nil
}

type generatorAdapter struct {
	inner Generator
}

func (a *generatorAdapter) Generate(
	ctx context.Context, question string, documents []domain.Document,
) (domain.Answer, error) {
	docs := make([]Document, len(documents))
	for i, d := range documents {
		docs[i] = Document{ID: d.ID, Text: d.Text, Metadata: d.Metadata}
	}
	ans, err := a.inner.Generate(ctx, question, docs)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate: %w", err)
	}

	citations := make([]domain.Citation, len(ans.Citations))
	for i, c := range ans.Citations {
		citations[i] = domain.Citation{Start: c.Start, End: c.End, Text: c.Text, Sources: c.Sources}
	}
	return domain.Answer{
		Text:        ans.Text,
		Citations:   citations,
		TotalTokens: ans.TokensUsed,
	}, nil
}

type rewriterAdapter struct {
	inner QueryRewriter
}

func (a *rewriterAdapter) RewriteQuery(ctx context.Context, question string) (string, error) {
	q, err := a.inner.RewriteQuery(ctx, question)
	if err != nil {
		return "", fmt.Errorf("rewrite query: %w", err)
	}
	return q, nil
}
