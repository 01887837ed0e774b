// Package ragdex provides retrieval-augmented answering over caller-supplied
// document corpora: embed, rank by dot product, optionally rerank, and
// generate grounded answers with citations.
//
// The corpus is transient. Documents are embedded per call and nothing is
// indexed or persisted; an optional Redis cache only memoizes embeddings.
//
// # Retrieval
//
//	client, _ := ragdex.New(
//	    ragdex.WithOpenAI(apiKey, "", "text-embedding-3-small"),
//	    ragdex.WithRedisCache("localhost:6379", "", time.Hour),
//	)
//	defer client.Close()
//
//	docs := []ragdex.Document{
//	    {ID: "a", Text: "Apples fall because of gravity."},
//	    {ID: "b", Text: "Oranges are a citrus fruit."},
//	}
//	results, _ := client.Retrieve(ctx, "why do apples fall", docs,
//	    &ragdex.RetrieveOptions{TopK: 5})
//
// # Grounded answers
//
//	client, _ := ragdex.New(
//	    ragdex.WithOpenAI(apiKey, "", "text-embedding-3-small"),
//	    ragdex.WithGeneration("gpt-4o-mini", 1024),
//	)
//	res, _ := client.Answer(ctx, "why do apples fall", docs, nil)
//	fmt.Println(res.Answer.Text, res.Answer.Citations)
//
// Every provider capability (Embedder, Reranker, Generator, QueryRewriter)
// is an interface and can be replaced with a custom implementation via the
// corresponding With option.
package ragdex
