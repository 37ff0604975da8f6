//go:build sqlite_vec
// +build sqlite_vec

package storage

// Compiled when building with CGO and the sqlite_vec tag. The sqlite-vec
// extension computes cosine distance over the stored embedding blobs in
// SQL, so similarity search never loads the corpus vectors into Go.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// Use this mode for large document corpora where the per-query scan of
// the embeddings table dominates retrieval latency. Requires a C
// compiler on the build host.
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver registered for this build
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports whether similarity runs in SQL
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration
	BuildMode = "cgo"
)
