package keyword

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/dshills/goretrieve/types"
)

// BM25 tuning parameters.
const (
	// DefaultK1 controls term-frequency saturation
	DefaultK1 = 1.2
	// DefaultB controls document-length normalization
	DefaultB = 0.75
)

// docEntry is one indexed document's posting bookkeeping.
type docEntry struct {
	ref    types.DocumentRef
	length int // token count
}

// Index is an in-memory inverted index scored with BM25. It implements
// retriever.KeywordScorer. Reads and writes are guarded by a RWMutex so
// concurrent queries never observe a partially applied upsert.
type Index struct {
	mu       sync.RWMutex
	k1       float64
	b        float64
	docs     map[string]*docEntry
	postings map[string]map[string]int // term -> doc ID -> term frequency
	totalLen int
	closed   bool
}

// Option configures an Index.
type Option func(*Index)

// WithBM25Params overrides the default k1 and b parameters.
func WithBM25Params(k1, b float64) Option {
	return func(idx *Index) {
		idx.k1 = k1
		idx.b = b
	}
}

// NewIndex creates an empty in-memory BM25 index.
func NewIndex(opts ...Option) *Index {
	idx := &Index{
		k1:       DefaultK1,
		b:        DefaultB,
		docs:     make(map[string]*docEntry),
		postings: make(map[string]map[string]int),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Upsert adds a document to the index, replacing any previous content
// indexed under the same ref ID.
func (idx *Index) Upsert(doc types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	tokens := Tokenize(doc.Content)
	if len(tokens) == 0 {
		return fmt.Errorf("%w: no indexable terms", types.ErrEmptyContent)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return fmt.Errorf("%w: index closed", types.ErrIndexUnavailable)
	}

	idx.removeLocked(doc.Ref.ID)

	entry := &docEntry{ref: doc.Ref.Clone(), length: len(tokens)}
	idx.docs[doc.Ref.ID] = entry
	idx.totalLen += entry.length

	for _, tok := range tokens {
		posting, ok := idx.postings[tok]
		if !ok {
			posting = make(map[string]int)
			idx.postings[tok] = posting
		}
		posting[doc.Ref.ID]++
	}
	return nil
}

// Delete removes a document from the index. Deleting an unknown ID is
// a no-op.
func (idx *Index) Delete(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(id)
}

// removeLocked drops a document's postings. Caller holds the write lock.
func (idx *Index) removeLocked(id string) {
	entry, ok := idx.docs[id]
	if !ok {
		return
	}
	idx.totalLen -= entry.length
	delete(idx.docs, id)
	for term, posting := range idx.postings {
		if _, ok := posting[id]; ok {
			delete(posting, id)
			if len(posting) == 0 {
				delete(idx.postings, term)
			}
		}
	}
}

// Len returns the number of indexed documents.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// Close marks the index unavailable. Subsequent Score calls fail with
// ErrIndexUnavailable.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	return nil
}

// Score computes BM25 relevance for every indexed document sharing at
// least one term with the query, restricted to pool when given.
// Documents with zero term overlap are omitted rather than scored 0.
// Identical query and index state always produce identical output;
// equal scores are ordered by ascending ref ID.
func (idx *Index) Score(ctx context.Context, query string, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	terms := Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
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

	n := float64(len(idx.docs))
	if n == 0 {
		return nil, nil
	}
	avgLen := float64(idx.totalLen) / n

	scores := make(map[string]float64)
	for _, term := range terms {
		posting, ok := idx.postings[term]
		if !ok {
			continue
		}
		df := float64(len(posting))
		idf := math.Log(1.0 + (n-df+0.5)/(df+0.5))
		for id, tf := range posting {
			if allowed != nil && !allowed[id] {
				continue
			}
			entry := idx.docs[id]
			norm := 1.0 - idx.b + idx.b*float64(entry.length)/avgLen
			scores[id] += idf * (float64(tf) * (idx.k1 + 1)) / (float64(tf) + idx.k1*norm)
		}
	}

	cands := make([]types.ScoredCandidate, 0, len(scores))
	for id, score := range scores {
		cands = append(cands, types.ScoredCandidate{
			Ref:    idx.docs[id].ref.Clone(),
			Score:  score,
			Origin: types.OriginKeyword,
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

// Tokenize lowercases text and splits it on any non-letter,
// non-digit rune. The same tokenizer is applied to documents and
// queries so term overlap is computed in a single vocabulary.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
