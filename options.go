package ragdex

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	// OpenAI-compatible embedding provider
	apiKey     string
	baseURL    string
	model      string
	dimensions int

	queryInstruction    string
	documentInstruction string

	// embedding cache
	cacheAddrs    []string
	cachePassword string
	cacheTTL      time.Duration

	// rerank provider
	rerankEndpoint string
	rerankAPIKey   string
	rerankModel    string

	// answer generation
	generationModel     string
	generationMaxTokens int

	// custom capability implementations, override provider wiring
	embedder  Embedder
	reranker  Reranker
	generator Generator
	rewriter  QueryRewriter

	workers int

	logger *zap.Logger
}

// WithOpenAI configures an OpenAI-compatible embedding provider.
// baseURL may be empty for api.openai.com.
func WithOpenAI(apiKey, baseURL, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
		c.model = model
	})
}

// WithDimensions requests reduced-dimension embeddings from providers
// that support it. Zero keeps the model's native dimension.
func WithDimensions(dim int) Option {
	return optionFunc(func(c *clientConfig) {
		c.dimensions = dim
	})
}

// WithQueryInstruction prepends instruction text to query embeddings.
// Used with asymmetric embedding models.
func WithQueryInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.queryInstruction = instruction
	})
}

// WithDocumentInstruction prepends instruction text to document embeddings.
func WithDocumentInstruction(instruction string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documentInstruction = instruction
	})
}

// WithRedisCache caches embeddings in a Redis instance. ttl = 0 means
// cache entries never expire.
func WithRedisCache(addr, password string, ttl time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.cacheAddrs = []string{addr}
		c.cachePassword = password
		c.cacheTTL = ttl
	})
}

// WithRerank enables a second-stage relevance pass through a
// Cohere-compatible rerank endpoint.
func WithRerank(endpoint, apiKey, model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.rerankEndpoint = endpoint
		c.rerankAPIKey = apiKey
		c.rerankModel = model
	})
}

// WithGeneration enables grounded answer generation through the chat API
// of the configured OpenAI-compatible provider.
func WithGeneration(model string, maxTokens int) Option {
	return optionFunc(func(c *clientConfig) {
		c.generationModel = model
		c.generationMaxTokens = maxTokens
	})
}

// WithEmbedder injects a custom embedding implementation, replacing the
// OpenAI transport. The cache and instruction decorators still apply.
func WithEmbedder(e Embedder) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
	})
}

// WithReranker injects a custom rerank implementation.
func WithReranker(r Reranker) Option {
	return optionFunc(func(c *clientConfig) {
		c.reranker = r
	})
}

// WithGenerator injects a custom answer generation implementation.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithQueryRewriter injects a custom query rewrite implementation.
func WithQueryRewriter(r QueryRewriter) Option {
	return optionFunc(func(c *clientConfig) {
		c.rewriter = r
	})
}

// WithWorkers sets the number of goroutines used for parallel scoring.
// Values <= 1 keep scoring sequential.
func WithWorkers(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.workers = n
	})
}

// WithLogger enables structured logging for SDK operations.
// Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
