// Package embedder generates vector embeddings for queries and
// documents using hosted providers (OpenAI, Jina AI) or a deterministic
// offline provider.
//
// Hosted calls go through one OpenAI-compatible HTTP implementation
// with exponential-backoff retries; repeated texts are served from an
// LRU cache keyed by content hash.
//
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vec, err := emb.Embed(ctx, "rotate credentials daily")
//
// For batches, EmbedBatch sends up to MaxBatchSize texts per API call,
// which is substantially cheaper than embedding sequentially.
package embedder
