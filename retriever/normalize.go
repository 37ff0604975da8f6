package retriever

import (
	"math"
	"sort"

	"github.com/dshills/goretrieve/types"
)

// Normalize rescales one scorer's raw candidate set onto a comparable
// range. It is a pure function: the input slice is never modified, and
// each scorer's output set must be normalized on its own (BM25 and
// cosine-similarity scales are not comparable).
func Normalize(cands []types.ScoredCandidate, method types.Normalization) []types.NormalizedCandidate {
	switch method {
	case types.NormZScore:
		return normalizeZScore(cands)
	case types.NormRank:
		return normalizeRank(cands)
	default:
		return normalizeMinMax(cands)
	}
}

// normalizeMinMax maps the minimum input score to 0 and the maximum to 1.
// Degenerate sets (all scores equal, including a single candidate) map
// to 1.0 to avoid division by zero.
func normalizeMinMax(cands []types.ScoredCandidate) []types.NormalizedCandidate {
	if len(cands) == 0 {
		return nil
	}

	minScore, maxScore := cands[0].Score, cands[0].Score
	for _, c := range cands[1:] {
		if c.Score < minScore {
			minScore = c.Score
		}
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}

	out := make([]types.NormalizedCandidate, len(cands))
	span := maxScore - minScore
	for i, c := range cands {
		score := 1.0
		if span > 0 {
			score = (c.Score - minScore) / span
		}
		out[i] = types.NormalizedCandidate{Ref: c.Ref, Score: score}
	}
	return out
}

// normalizeZScore maps each score to its standard score within the set.
// A zero-variance set maps to 1.0, mirroring the min-max degenerate rule.
func normalizeZScore(cands []types.ScoredCandidate) []types.NormalizedCandidate {
	if len(cands) == 0 {
		return nil
	}

	var sum float64
	for _, c := range cands {
		sum += c.Score
	}
	mean := sum / float64(len(cands))

	var variance float64
	for _, c := range cands {
		d := c.Score - mean
		variance += d * d
	}
	stddev := math.Sqrt(variance / float64(len(cands)))

	out := make([]types.NormalizedCandidate, len(cands))
	for i, c := range cands {
		score := 1.0
		if stddev > 0 {
			score = (c.Score - mean) / stddev
		}
		out[i] = types.NormalizedCandidate{Ref: c.Ref, Score: score}
	}
	return out
}

// normalizeRank replaces each score with 1 - (rank-1)/(count-1), where
// rank is the 1-based position in descending score order. A single
// candidate gets 1.0. Equal scores are ranked by ascending ref ID so
// the output is deterministic.
func normalizeRank(cands []types.ScoredCandidate) []types.NormalizedCandidate {
	if len(cands) == 0 {
		return nil
	}

	ordered := make([]types.ScoredCandidate, len(cands))
	copy(ordered, cands)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return ordered[i].Ref.ID < ordered[j].Ref.ID
	})

	out := make([]types.NormalizedCandidate, len(ordered))
	count := len(ordered)
	for i, c := range ordered {
		score := 1.0
		if count > 1 {
			score = 1.0 - float64(i)/float64(count-1)
		}
		out[i] = types.NormalizedCandidate{Ref: c.Ref, Score: score}
	}
	return out
}
