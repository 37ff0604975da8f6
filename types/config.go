package types

import "fmt"

// Normalization selects how raw scorer output is rescaled before merging.
type Normalization string

const (
	// NormMinMax maps the minimum score in a set to 0 and the maximum to 1.
	NormMinMax Normalization = "min_max"
	// NormZScore maps each score to its standard score within the set.
	NormZScore Normalization = "z_score"
	// NormRank replaces scores with 1 - (rank-1)/(count-1).
	NormRank Normalization = "rank_based"
)

// SearchMode defines how search is performed.
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // keyword + semantic, weighted merge
	SearchModeVector  SearchMode = "vector"  // semantic similarity only
	SearchModeKeyword SearchMode = "keyword" // BM25 text search only
)

// Config holds per-query retrieval settings. Weights are relative
// multipliers: they need not sum to 1, but both must be >= 0 and at
// least one must be positive.
type Config struct {
	VectorWeight  float64
	BM25Weight    float64
	TopK          int
	Normalization Normalization
	Mode          SearchMode

	// AllowDegraded permits single-method results when one scorer
	// fails. When false a scorer failure surfaces as
	// PartialFailureError.
	AllowDegraded bool
}

// DefaultConfig returns the settings used when a caller supplies none.
func DefaultConfig() Config {
	return Config{
		VectorWeight:  0.6,
		BM25Weight:    0.4,
		TopK:          10,
		Normalization: NormMinMax,
		Mode:          SearchModeHybrid,
	}
}

// Validate checks the configuration before any scorer work is done.
func (c Config) Validate() error {
	if c.VectorWeight < 0 || c.BM25Weight < 0 {
		return fmt.Errorf("%w: weights must be >= 0", ErrInvalidConfig)
	}
	if c.VectorWeight == 0 && c.BM25Weight == 0 {
		return fmt.Errorf("%w: at least one weight must be > 0", ErrInvalidConfig)
	}
	if c.TopK < 1 {
		return fmt.Errorf("%w: top_k must be >= 1", ErrInvalidConfig)
	}
	switch c.Normalization {
	case NormMinMax, NormZScore, NormRank:
	default:
		return fmt.Errorf("%w: unknown normalization %q", ErrInvalidConfig, c.Normalization)
	}
	switch c.Mode {
	case SearchModeHybrid, SearchModeVector, SearchModeKeyword:
	default:
		return fmt.Errorf("%w: unknown search mode %q", ErrInvalidConfig, c.Mode)
	}
	return nil
}
