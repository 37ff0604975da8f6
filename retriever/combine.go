package retriever

import (
	"fmt"
	"sort"

	"github.com/dshills/goretrieve/types"
)

// Combine merges the two normalized candidate sets into a single
// ranking. A document absent from one set contributes 0 for that
// scorer; nothing present in either input is dropped before the top-k
// truncation. Both inputs empty yields an empty result, not an error.
func Combine(keyword, semantic []types.NormalizedCandidate, vectorWeight, bm25Weight float64, topK int) ([]types.CombinedResult, error) {
	if vectorWeight == 0 && bm25Weight == 0 {
		return nil, fmt.Errorf("%w: both weights are zero", types.ErrInvalidConfig)
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: top_k must be >= 1", types.ErrInvalidConfig)
	}

	// Union by document ID, keeping the per-scorer components
	union := make(map[string]*types.CombinedResult, len(keyword)+len(semantic))
	for _, c := range keyword {
		union[c.Ref.ID] = &types.CombinedResult{Ref: c.Ref, KeywordScore: c.Score}
	}
	for _, c := range semantic {
		if existing, ok := union[c.Ref.ID]; ok {
			existing.SemanticScore = c.Score
		} else {
			union[c.Ref.ID] = &types.CombinedResult{Ref: c.Ref, SemanticScore: c.Score}
		}
	}

	results := make([]types.CombinedResult, 0, len(union))
	for _, r := range union {
		r.Score = vectorWeight*r.SemanticScore + bm25Weight*r.KeywordScore
		results = append(results, *r)
	}

	// Descending combined score; ties prefer the higher semantic
	// component, then the lower document ID, for full determinism.
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].SemanticScore != results[j].SemanticScore {
			return results[i].SemanticScore > results[j].SemanticScore
		}
		return results[i].Ref.ID < results[j].Ref.ID
	})

	if topK < len(results) {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}
