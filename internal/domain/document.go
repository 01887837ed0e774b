package domain

// Document is an opaque identifier plus text, carried alongside its embedding
// purely for result mapping. Passed by value; the ranker never reads it.
type Document struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// ScoredDocument pairs a document with its relevance score and the document's
// index in the caller-supplied input order.
type ScoredDocument struct {
	Document Document
	Index    int
	Score    float64
}
