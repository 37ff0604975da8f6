package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dshills/goretrieve/types"
)

// entry is one indexed embedding.
type entry struct {
	ref    types.DocumentRef
	vector []float32
}

// Index is an in-memory brute-force vector index using cosine
// similarity. It implements retriever.SemanticScorer. Suitable for
// small to medium corpora; larger deployments should use the pgindex
// or storage backends.
type Index struct {
	mu      sync.RWMutex
	dim     int
	entries map[string]*entry
	closed  bool
}

// NewIndex creates an empty vector index of the given dimensionality.
func NewIndex(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be > 0", types.ErrInvalidConfig)
	}
	return &Index{
		dim:     dimension,
		entries: make(map[string]*entry),
	}, nil
}

// Dimension returns the index's embedding dimensionality.
func (idx *Index) Dimension() int {
	return idx.dim
}

// Upsert stores an embedding for the ref, replacing any previous one.
func (idx *Index) Upsert(ref types.DocumentRef, vector []float32) error {
	if ref.ID == "" {
		return types.ErrMissingDocumentID
	}
	if len(vector) != idx.dim {
		return fmt.Errorf("%w: got %d, index expects %d",
			types.ErrDimensionMismatch, len(vector), idx.dim)
	}

	vec := make([]float32, len(vector))
	copy(vec, vector)

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("%w: index closed", types.ErrIndexUnavailable)
	}
	idx.entries[ref.ID] = &entry{ref: ref.Clone(), vector: vec}
	return nil
}

// Delete removes a ref's embedding. Unknown IDs are a no-op.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, id)
}

// Len returns the number of indexed embeddings.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// Close marks the index unavailable.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// Score computes cosine similarity between the query embedding and
// every indexed embedding (restricted to pool when given), returning
// the top candidates by similarity. Equal similarities are ordered by
// ascending ref ID for determinism.
func (idx *Index) Score(ctx context.Context, embedding []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	if len(embedding) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			types.ErrDimensionMismatch, len(embedding), idx.dim)
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.closed {
		return nil, fmt.Errorf("%w: index closed", types.ErrIndexUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var allowed map[string]bool
	if len(pool) > 0 {
		allowed = make(map[string]bool, len(pool))
		for _, ref := range pool {
			allowed[ref.ID] = true
		}
	}

	cands := make([]types.ScoredCandidate, 0, len(idx.entries))
	for id, e := range idx.entries {
		if allowed != nil && !allowed[id] {
			continue
		}
		cands = append(cands, types.ScoredCandidate{
			Ref:    e.ref.Clone(),
			Score:  CosineSimilarity(embedding, e.vector),
			Origin: types.OriginSemantic,
		})
	}

	sort.Slice(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Ref.ID < cands[j].Ref.ID
	})
	if limit > 0 && limit < len(cands) {
		cands = cands[:limit]
	}
	return cands, nil
}

// CosineSimilarity computes the cosine similarity between two vectors
// of equal length. Zero-magnitude vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
