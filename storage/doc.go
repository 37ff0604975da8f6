// Package storage provides a SQLite-backed hybrid index: FTS5 bm25()
// keyword scoring and cosine-similarity vector scoring over serialized
// float32 embeddings, behind the scorer contracts the retriever
// consumes.
//
// # Basic Usage
//
//	store, err := storage.Open("index.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	_, err = store.IndexDocuments(ctx, docs, emb)
//
//	r := retriever.New(store.KeywordScorer(), store.SemanticScorer(), emb)
//
// # Build Modes
//
// Two SQLite drivers are selected through build tags:
//
//   - CGO + sqlite_vec (github.com/mattn/go-sqlite3): vector distance
//     is computed in SQL by the sqlite-vec extension. Recommended for
//     production.
//
//     CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
//   - purego (modernc.org/sqlite): no C compiler needed; cosine
//     similarity is computed in Go over all candidate vectors.
//
//     CGO_ENABLED=0 go build -tags "purego" ./...
//
// Schema changes are tracked by semver-versioned migrations applied on
// Open. Indexes are read-only from the retriever's perspective: queries
// never mutate state, and concurrent reads need no coordination.
package storage
