// Package retriever implements hybrid retrieval: BM25-style keyword
// scoring and embedding-based semantic scoring merged into a single
// weighted ranking.
//
// The retriever provides three search modes:
//   - Hybrid: keyword + semantic, weighted score fusion (recommended)
//   - Vector: pure semantic search using embeddings
//   - Keyword: BM25 text search only
//
// # Basic Usage
//
//	r := retriever.New(keywordIndex, vectorIndex, emb)
//
//	resp, err := r.Search(ctx, retriever.Request{
//	    Query: "how do I rotate credentials",
//	    Config: types.Config{
//	        VectorWeight:  0.6,
//	        BM25Weight:    0.4,
//	        TopK:          10,
//	        Normalization: types.NormMinMax,
//	        Mode:          types.SearchModeHybrid,
//	    },
//	})
//
//	for _, res := range resp.Results {
//	    fmt.Printf("[%d] %s (score: %.3f)\n", res.Rank, res.Ref.Source, res.Score)
//	}
//
// # Pipeline
//
// One Search call runs four stages:
//
//  1. Both scorers run concurrently over an over-fetched candidate
//     limit (max(topK*3, 50)); the semantic branch embeds the query
//     first. The two branches share no state and join on a channel.
//  2. Each scorer's raw scores are normalized independently
//     (min_max, z_score, or rank_based). BM25 and cosine scales are
//     never normalized together.
//  3. The normalized sets are merged: union of documents, each scored
//     vector_weight*semantic + bm25_weight*keyword, with a document
//     absent from one set contributing 0 for that scorer.
//  4. The union is sorted (score desc, semantic component desc, ref ID
//     asc) and truncated to top-k.
//
// Normalize and Combine are exported as pure functions, so each stage
// can be exercised on its own.
//
// # Failure Semantics
//
// Configuration is validated before any scorer work. When one scorer
// fails and the other succeeds, Search fails with
// *types.PartialFailureError naming the failed scorer. If the request
// sets AllowDegraded, results come from the surviving scorer alone and
// Response.Degraded reports it. A deadline
// expiry anywhere in the pipeline surfaces as ErrRetrievalTimeout with
// no partial results.
//
// # Caching
//
// The core Search path never caches across queries. Callers that want
// query caching wrap the Retriever in a Cached, which adds an LRU with
// per-entry TTL:
//
//	cached, _ := retriever.NewCached(r, 1000, time.Hour)
//	resp, err := cached.Search(ctx, req)
//	cached.Invalidate() // after reindexing
package retriever
