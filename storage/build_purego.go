//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Compiled when building without CGO or without the sqlite_vec tag.
// Vector similarity falls back to deserializing the embedding blobs and
// scoring them in Go (see searchVectorFallback); FTS5 keyword search is
// unaffected.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Use this mode for cross-compiled binaries and for document corpora
// small enough that a full scan of the embeddings table per query is
// acceptable. No C compiler required.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver registered for this build
	DriverName = "sqlite"

	// VectorExtensionAvailable reports whether similarity runs in SQL
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
