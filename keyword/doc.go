// Package keyword provides an in-memory inverted index scored with
// BM25 (k1=1.2, b=0.75 by default). It implements the retriever's
// KeywordScorer contract and is the zero-dependency counterpart to the
// SQLite FTS5 path in the storage package.
//
//	idx := keyword.NewIndex()
//	_ = idx.Upsert(types.Document{Ref: ref, Content: "rotate credentials daily"})
//
//	cands, err := idx.Score(ctx, "credential rotation", 50, nil)
//
// Scoring is deterministic: for a fixed index state the same query
// always returns the same candidates in the same order.
package keyword
