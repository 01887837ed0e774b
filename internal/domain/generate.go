package domain

import "context"

// Citation maps a span of generated text back to the documents that justify it.
// Sources are indices into the document slice handed to Generate.
type Citation struct {
	Start   int
	End     int
	Text    string
	Sources []int
}

// Answer is a grounded generation result.
type Answer struct {
	Text         string
	Citations    []Citation
	PromptTokens int
	TotalTokens  int
}

// Generator produces a grounded answer with citations from a question and a
// set of supporting documents.
type Generator interface {
	Generate(ctx context.Context, question string, documents []Document) (Answer, error)
}

// QueryRewriter turns a conversational question into a standalone search
// query, typically via a provider tool call.
type QueryRewriter interface {
	RewriteQuery(ctx context.Context, question string) (string, error)
}
