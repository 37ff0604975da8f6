package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/goretrieve/types"
)

// Over-fetch floor for the per-scorer candidate limit. Each scorer is
// asked for max(topK*overfetchFactor, overfetchMin) candidates so the
// merge step is never starved by truncation upstream.
const (
	overfetchFactor = 3
	overfetchMin    = 50
)

// KeywordScorer produces BM25-style relevance scores for documents
// matching the query terms. Documents with no overlapping terms are
// omitted, never returned with score 0.
type KeywordScorer interface {
	Score(ctx context.Context, query string, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error)
}

// SemanticScorer produces similarity scores between a query embedding
// and indexed document embeddings, higher meaning more similar.
type SemanticScorer interface {
	Score(ctx context.Context, embedding []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error)
}

// Embedder turns query text into a fixed-dimensionality vector. The
// embedder package provides implementations; any collaborator
// satisfying this method works.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Request contains the parameters for one search operation.
type Request struct {
	Query  string
	Config types.Config

	// Pool optionally restricts scoring to the given documents.
	Pool []types.DocumentRef
}

// Response contains ranked results and query metadata.
type Response struct {
	Results            []types.CombinedResult
	Mode               types.SearchMode
	Duration           time.Duration
	KeywordCandidates  int
	SemanticCandidates int

	// Degraded is true when one scorer failed and results come from
	// the surviving scorer alone.
	Degraded bool
}

// Retriever orchestrates hybrid retrieval: both scorers run
// independently per query, their outputs are normalized per scorer,
// then merged into one weighted ranking. A Retriever is safe for
// concurrent use; no state is shared between queries.
type Retriever struct {
	keyword  KeywordScorer
	semantic SemanticScorer
	embedder Embedder
	defaults types.Config
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithDefaults overrides the configuration used when a request carries
// a zero-value Config.
func WithDefaults(cfg types.Config) Option {
	return func(r *Retriever) { r.defaults = cfg }
}

// New creates a Retriever over the given scorers and embedder. Any of
// the three may be nil; the corresponding branch then fails with
// ErrIndexUnavailable (or ErrEmbedding for a missing embedder), which
// degrades gracefully when the request allows it.
func New(keyword KeywordScorer, semantic SemanticScorer, embedder Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		keyword:  keyword,
		semantic: semantic,
		embedder: embedder,
		defaults: types.DefaultConfig(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// branchResult holds one scorer branch's output at the join point.
type branchResult struct {
	origin types.Origin
	cands  []types.ScoredCandidate
	err    error
}

// Search executes one retrieval. The configuration is validated before
// any scorer or embedder work. Keyword and semantic scoring run
// concurrently and both must complete before normalization; on
// cancellation partial results are discarded, never returned.
func (r *Retriever) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	cfg := req.Config
	if cfg == (types.Config{}) {
		cfg = r.defaults
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", types.ErrInvalidConfig)
	}

	limit := cfg.TopK * overfetchFactor
	if limit < overfetchMin {
		limit = overfetchMin
	}

	wantKeyword := cfg.Mode == types.SearchModeHybrid || cfg.Mode == types.SearchModeKeyword
	wantSemantic := cfg.Mode == types.SearchModeHybrid || cfg.Mode == types.SearchModeVector

	results := make(chan branchResult, 2)
	branches := 0
	if wantKeyword {
		branches++
		go r.runKeyword(ctx, req.Query, limit, req.Pool, results)
	}
	if wantSemantic {
		branches++
		go r.runSemantic(ctx, req.Query, limit, req.Pool, results)
	}

	var keywordRes, semanticRes branchResult
	for i := 0; i < branches; i++ {
		select {
		case res := <-results:
			if res.origin == types.OriginKeyword {
				keywordRes = res
			} else {
				semanticRes = res
			}
		case <-ctx.Done():
			return nil, classifyContextErr(ctx.Err())
		}
	}

	resp := &Response{Mode: cfg.Mode}
	vectorWeight, bm25Weight := cfg.VectorWeight, cfg.BM25Weight

	switch cfg.Mode {
	case types.SearchModeKeyword:
		if keywordRes.err != nil {
			return nil, classifyContextErr(keywordRes.err)
		}
		vectorWeight, bm25Weight = 0, 1
	case types.SearchModeVector:
		if semanticRes.err != nil {
			return nil, classifyContextErr(semanticRes.err)
		}
		vectorWeight, bm25Weight = 1, 0
	default:
		if keywordRes.err != nil && semanticRes.err != nil {
			return nil, fmt.Errorf("both scorers failed: keyword=%w; semantic=%v",
				classifyContextErr(keywordRes.err), semanticRes.err)
		}
		if failed := firstFailure(keywordRes, semanticRes); failed != nil {
			if !cfg.AllowDegraded {
				return nil, &types.PartialFailureError{Scorer: failed.origin, Err: classifyContextErr(failed.err)}
			}
			r.logger.Warn("degrading to single-method search",
				zap.String("failed_scorer", string(failed.origin)),
				zap.Error(failed.err))
			resp.Degraded = true
		}
	}

	keywordNorm := Normalize(keywordRes.cands, cfg.Normalization)
	semanticNorm := Normalize(semanticRes.cands, cfg.Normalization)

	combined, err := Combine(keywordNorm, semanticNorm, vectorWeight, bm25Weight, cfg.TopK)
	if err != nil {
		return nil, err
	}

	resp.Results = combined
	resp.KeywordCandidates = len(keywordRes.cands)
	resp.SemanticCandidates = len(semanticRes.cands)
	resp.Duration = time.Since(start)
	return resp, nil
}

// runKeyword executes the keyword branch and delivers its result to
// the join channel. Send never blocks past cancellation.
func (r *Retriever) runKeyword(ctx context.Context, query string, limit int, pool []types.DocumentRef, out chan<- branchResult) {
	res := branchResult{origin: types.OriginKeyword}
	if r.keyword == nil {
		res.err = fmt.Errorf("%w: no keyword index configured", types.ErrIndexUnavailable)
	} else {
		res.cands, res.err = r.keyword.Score(ctx, query, limit, pool)
	}
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// runSemantic embeds the query and executes the semantic branch.
func (r *Retriever) runSemantic(ctx context.Context, query string, limit int, pool []types.DocumentRef, out chan<- branchResult) {
	res := branchResult{origin: types.OriginSemantic}
	switch {
	case r.embedder == nil:
		res.err = fmt.Errorf("%w: no embedder configured", types.ErrEmbedding)
	case r.semantic == nil:
		res.err = fmt.Errorf("%w: no vector index configured", types.ErrIndexUnavailable)
	default:
		embedding, err := r.embedder.Embed(ctx, query)
		if err != nil {
			res.err = fmt.Errorf("%w: %v", types.ErrEmbedding, err)
		} else {
			res.cands, res.err = r.semantic.Score(ctx, embedding, limit, pool)
		}
	}
	select {
	case out <- res:
	case <-ctx.Done():
	}
}

// firstFailure returns the failed branch when exactly one failed.
func firstFailure(keyword, semantic branchResult) *branchResult {
	if keyword.err != nil && semantic.err == nil {
		return &keyword
	}
	if semantic.err != nil && keyword.err == nil {
		return &semantic
	}
	return nil
}

// classifyContextErr maps a deadline expiry onto the retrieval error
// taxonomy; other errors pass through unchanged.
func classifyContextErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrRetrievalTimeout, err)
	}
	return err
}
