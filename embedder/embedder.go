package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Common errors
var (
	ErrEmptyText      = errors.New("text cannot be empty")
	ErrBatchTooLarge  = errors.New("batch size exceeds limit")
	ErrProviderFailed = errors.New("embedding provider failed")
	ErrNoProvider     = errors.New("no embedding provider configured")
)

// MaxBatchSize bounds one EmbedBatch call.
const MaxBatchSize = 100

// Embedder generates fixed-dimensionality vector embeddings for text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed generates a single embedding for the given text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimensionality for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Close releases any resources held by the embedder
	Close() error
}

// hashText computes the SHA-256 cache key for a text.
func hashText(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// validateBatch checks an EmbedBatch input before any network call.
func validateBatch(texts []string) error {
	if len(texts) == 0 {
		return errors.New("no texts provided")
	}
	if len(texts) > MaxBatchSize {
		return ErrBatchTooLarge
	}
	for _, t := range texts {
		if t == "" {
			return ErrEmptyText
		}
	}
	return nil
}
