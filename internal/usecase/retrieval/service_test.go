package retrieval

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// --- Mocks ---

type mockQueryEmbedder struct {
	vec    []float32
	err    error
	called bool
}

func (m *mockQueryEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.called = true
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec, TotalTokens: 3}, nil
}

type mockDocEmbedder struct {
	vecs [][]float32
	err  error
}

func (m *mockDocEmbedder) BatchEmbed(_ context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.err != nil {
		return domain.BatchEmbeddingResult{}, m.err
	}
	return domain.BatchEmbeddingResult{Embeddings: m.vecs, TotalTokens: 5 * len(texts)}, nil
}

type mockReranker struct {
	results []domain.RerankResult
	err     error
	called  bool
	gotDocs []string
	gotTopN int
}

func (m *mockReranker) Rerank(
	_ context.Context, _ string, documents []string, topN int,
) ([]domain.RerankResult, error) {
	m.called = true
	m.gotDocs = documents
	m.gotTopN = topN
	return m.results, m.err
}

func testDocs() []domain.Document {
	return []domain.Document{
		{ID: "d0", Text: "exact match"},
		{ID: "d1", Text: "unrelated"},
		{ID: "d2", Text: "partial match"},
	}
}

func TestRetrieve_LocalRankingOnly(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}}
	svc := New(qe, de, nil, 0, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "query", testDocs(), &Options{TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Document.ID != "d0" || results[0].Score != 1 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Document.ID != "d2" || results[1].Score != 0.5 {
		t.Errorf("unexpected second result: %+v", results[1])
	}
	if results[0].Index != 0 || results[1].Index != 2 {
		t.Errorf("original indices not preserved: %d, %d", results[0].Index, results[1].Index)
	}
}

func TestRetrieve_EmbeddingCountMismatch(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}

	for name, vecs := range map[string][][]float32{
		"extra": {{1, 0}, {0, 1}, {0.5, 0.5}, {0.2, 0.2}},
		"fewer": {{1, 0}},
	} {
		t.Run(name, func(t *testing.T) {
			de := &mockDocEmbedder{vecs: vecs}
			svc := New(qe, de, nil, 0, zap.NewNop())

			_, err := svc.Retrieve(context.Background(), "query", testDocs(), &Options{TopK: 2})
			if err == nil {
				t.Fatal("expected error for embedding count mismatch")
			}
			if !errors.Is(err, domain.ErrEmbeddingProviderError) {
				t.Errorf("expected ErrEmbeddingProviderError, got %v", err)
			}
		})
	}
}

func TestRetrieve_EmptyCorpus(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{}
	svc := New(qe, de, nil, 0, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "query", nil, &Options{TopK: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty results, got %v", results)
	}
	if qe.called {
		t.Error("query should not be embedded for an empty corpus")
	}
}

func TestRetrieve_RerankerRefinesOrder(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}}
	// Local order of candidates: d0, d2, d1. Reranker flips the top two
	// (candidate indices 1 and 0).
	rr := &mockReranker{results: []domain.RerankResult{
		{Index: 1, Score: 0.99},
		{Index: 0, Score: 0.42},
	}}
	svc := New(qe, de, rr, 0, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "query", testDocs(), &Options{TopK: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !rr.called {
		t.Fatal("expected reranker call")
	}
	// Candidate texts follow local ranking order.
	if len(rr.gotDocs) != 3 || rr.gotDocs[0] != "exact match" || rr.gotDocs[1] != "partial match" {
		t.Errorf("unexpected candidate texts: %v", rr.gotDocs)
	}
	if rr.gotTopN != 2 {
		t.Errorf("expected topN=2, got %d", rr.gotTopN)
	}

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Document.ID != "d2" || results[0].Score != 0.99 {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if results[1].Document.ID != "d0" || results[1].Score != 0.42 {
		t.Errorf("unexpected second result: %+v", results[1])
	}
}

func TestRetrieve_RerankFailureFallsBack(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}}
	rr := &mockReranker{err: errors.New("rerank service down")}
	svc := New(qe, de, rr, 0, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "query", testDocs(), &Options{TopK: 2})
	if err != nil {
		t.Fatalf("expected fallback, got error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	// Local dot-product order survives.
	if results[0].Document.ID != "d0" || results[1].Document.ID != "d2" {
		t.Errorf("expected local order d0, d2; got %s, %s",
			results[0].Document.ID, results[1].Document.ID)
	}
}

func TestRetrieve_DisableRerank(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}}
	rr := &mockReranker{}
	svc := New(qe, de, rr, 0, zap.NewNop())

	_, err := svc.Retrieve(context.Background(), "query", testDocs(),
		&Options{TopK: 2, DisableRerank: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rr.called {
		t.Error("reranker should not be called when disabled")
	}
}

func TestRetrieve_DimensionMismatchPropagates(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0.5}}}
	svc := New(qe, de, nil, 0, zap.NewNop())

	docs := testDocs()[:2]
	_, err := svc.Retrieve(context.Background(), "query", docs, &Options{TopK: 2})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestRetrieve_EmbedErrorPropagates(t *testing.T) {
	qe := &mockQueryEmbedder{err: domain.ErrEmbeddingProviderError}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}}
	svc := New(qe, de, nil, 0, zap.NewNop())

	_, err := svc.Retrieve(context.Background(), "query", testDocs(), nil)
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected ErrEmbeddingProviderError, got %v", err)
	}
}

func TestRetrieve_UsageAccumulates(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1, 0}}
	de := &mockDocEmbedder{vecs: [][]float32{{1, 0}, {0, 1}, {0.5, 0.5}}}
	svc := New(qe, de, nil, 0, zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	if _, err := svc.Retrieve(ctx, "query", testDocs(), &Options{TopK: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 3 docs x 5 tokens + 3 query tokens.
	if usage.Tokens() != 18 {
		t.Errorf("expected 18 tokens recorded, got %d", usage.Tokens())
	}
}

func TestRetrieve_DefaultTopK(t *testing.T) {
	qe := &mockQueryEmbedder{vec: []float32{1}}
	vecs := make([][]float32, 25)
	docs := make([]domain.Document, 25)
	for i := range vecs {
		vecs[i] = []float32{float32(i)}
		docs[i] = domain.Document{ID: "d", Text: "t"}
	}
	de := &mockDocEmbedder{vecs: vecs}
	svc := New(qe, de, nil, 0, zap.NewNop())

	results, err := svc.Retrieve(context.Background(), "query", docs, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != defaultTopK {
		t.Fatalf("expected %d results, got %d", defaultTopK, len(results))
	}
}
