// Package semantic provides an in-memory vector index with brute-force
// cosine similarity search, implementing the retriever's SemanticScorer
// contract. A query whose dimensionality differs from the index fails
// with types.ErrDimensionMismatch.
package semantic
