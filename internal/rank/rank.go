// Package rank implements nearest-neighbor retrieval over in-memory embedding
// vectors: dot-product scoring, descending order, top-K truncation.
//
// The package is pure computation. It does no I/O, holds no state, and never
// mutates its inputs, so concurrent calls need no coordination.
package rank

import (
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

// Match is one ranked document: its index in the input order plus its score.
// Scores are raw dot products, not normalized.
type Match struct {
	Index int
	Score float64
}

// Rank scores every document vector against the query by dot product and
// returns the top min(k, len(docs)) matches in descending score order.
// Tied scores keep their original input order. k <= 0 yields an empty result
// rather than an error; a document whose dimension differs from the query's
// fails the whole call with domain.ErrDimensionMismatch.
func Rank(query []float32, docs [][]float32, k int) ([]Match, error) {
	if err := checkDimensions(query, docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 || k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, len(docs))
	for i, doc := range docs {
		matches[i] = Match{Index: i, Score: dot(query, doc)}
	}

	return order(matches, k), nil
}

// RankParallel is Rank with scoring partitioned across workers. Output is
// identical to Rank for the same inputs. workers <= 1 falls through to the
// sequential path; partitioning only pays off for large corpora.
func RankParallel(query []float32, docs [][]float32, k, workers int) ([]Match, error) {
	if workers <= 1 || len(docs) < workers {
		return Rank(query, docs, k)
	}
	if err := checkDimensions(query, docs); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []Match{}, nil
	}

	matches := make([]Match, len(docs))
	chunk := (len(docs) + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < len(docs); start += chunk {
		start := start
		end := min(start+chunk, len(docs))
		g.Go(func() error {
			// Each goroutine writes a disjoint slice range.
			for i := start; i < end; i++ {
				matches[i] = Match{Index: i, Score: dot(query, docs[i])}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return order(matches, k), nil
}

// order sorts matches by descending score, preserving input order on ties,
// and truncates to k.
func order(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches
}

func checkDimensions(query []float32, docs [][]float32) error {
	for i, doc := range docs {
		if len(doc) != len(query) {
			return domain.NewDimensionMismatch(i, len(query), len(doc))
		}
	}
	return nil
}

// dot accumulates in float64 so score ordering stays stable for long vectors.
func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
