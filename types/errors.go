package types

import (
	"errors"
	"fmt"
)

// Retrieval error taxonomy. Every failure surfaces to the immediate
// caller of Search; nothing is retried or silently downgraded unless
// degradation is explicitly enabled.
var (
	// ErrIndexUnavailable means a required index was not built or loaded
	ErrIndexUnavailable = errors.New("index unavailable")
	// ErrDimensionMismatch means a query embedding's dimensionality does not match the index
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrEmbedding wraps failures from the Embedder collaborator
	ErrEmbedding = errors.New("embedding failed")
	// ErrInvalidConfig means the retrieval configuration cannot produce a meaningful ranking
	ErrInvalidConfig = errors.New("invalid retrieval configuration")
	// ErrRetrievalTimeout means the deadline expired waiting on scorer or embedding calls
	ErrRetrievalTimeout = errors.New("retrieval timed out")

	// Validation errors for the data model
	ErrMissingDocumentID = errors.New("document ref must have an ID")
	ErrEmptyContent      = errors.New("content cannot be empty")
	ErrInvalidRank       = errors.New("rank must be >= 1")
)

// PartialFailureError is returned when one scorer failed while the
// other succeeded and graceful degradation is not enabled. Scorer names
// the failed branch.
type PartialFailureError struct {
	Scorer Origin
	Err    error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s scorer failed: %v", e.Scorer, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
