package types

// Origin identifies which scorer produced a candidate.
type Origin string

const (
	OriginKeyword  Origin = "keyword"
	OriginSemantic Origin = "semantic"
)

// ScoredCandidate is a scorer's raw output for one document. Candidates
// are produced transiently per query and never persisted.
type ScoredCandidate struct {
	Ref    DocumentRef
	Score  float64
	Origin Origin
}

// NormalizedCandidate is a ScoredCandidate whose raw score has been
// rescaled onto a comparable range. Keyword and semantic sets are
// always normalized independently of each other.
type NormalizedCandidate struct {
	Ref   DocumentRef
	Score float64
}

// CombinedResult is the output unit returned to callers: a document
// ranked by its weighted hybrid score. KeywordScore and SemanticScore
// carry the per-scorer normalized components that produced Score, so
// consumers can explain a ranking.
type CombinedResult struct {
	Ref           DocumentRef
	Score         float64
	Rank          int // 1-based position in the result set
	KeywordScore  float64
	SemanticScore float64
}

// Validate checks if the combined result is well formed.
func (cr *CombinedResult) Validate() error {
	if cr.Ref.ID == "" {
		return ErrMissingDocumentID
	}
	if cr.Rank < 1 {
		return ErrInvalidRank
	}
	return nil
}
