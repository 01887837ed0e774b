package ragdex

import "context"

// Document is a caller-supplied corpus entry. ID and Metadata travel through
// retrieval untouched; only Text is embedded.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ScoredDocument is a retrieval result. Index refers to the position of the
// document in the corpus slice as passed in.
type ScoredDocument struct {
	Document Document
	Index    int
	Score    float64
}

// Match is a ranking result over raw vectors.
type Match struct {
	Index int
	Score float64
}

// Citation maps a span of answer text back to its supporting documents.
// Sources are indices into the corpus slice passed to Answer. Start is -1
// when the cited text does not appear verbatim in the answer.
type Citation struct {
	Start   int
	End     int
	Text    string
	Sources []int
}

// Answer is a grounded generation result.
type Answer struct {
	Text       string
	Citations  []Citation
	TokensUsed int
}

// AnswerResult pairs an answer with the documents it was grounded in.
type AnswerResult struct {
	Answer    Answer
	Retrieved []ScoredDocument
}

// RetrieveOptions configures a single retrieval call. The zero value asks
// for the default top 10 with reranking enabled when configured.
type RetrieveOptions struct {
	TopK          int
	Candidates    int // local-ranking candidate pool for the reranker
	DisableRerank bool
}

// AnswerOptions configures a single answer call.
type AnswerOptions struct {
	Retrieve     RetrieveOptions
	RewriteQuery bool // rewrite the question into a search query first
}

// Embedder converts text to vector embeddings.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// BatchEmbedder vectorizes multiple texts in a single API call.
// Optional; if the provided Embedder also implements BatchEmbedder,
// corpus embedding will use it for significantly better throughput.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) (BatchEmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// BatchEmbeddingResult carries multiple embedding vectors and aggregate token usage.
type BatchEmbeddingResult struct {
	Embeddings   [][]float32
	PromptTokens int
	TotalTokens  int
}

// RerankResult scores one document from a rerank call. Index refers to the
// documents slice passed to Rerank.
type RerankResult struct {
	Index int
	Score float64
}

// Reranker reorders candidate documents by relevance to the query.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topN int) ([]RerankResult, error)
}

// Generator produces a grounded answer with citations. Citation sources are
// indices into the documents slice as passed in.
type Generator interface {
	Generate(ctx context.Context, question string, documents []Document) (Answer, error)
}

// QueryRewriter turns a conversational question into a standalone search query.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, question string) (string, error)
}
