// Package pgindex provides a Postgres/pgvector-backed semantic index
// for corpora that outgrow the in-memory and SQLite backends. It
// implements the retriever's SemanticScorer contract; keyword scoring
// stays with the keyword or storage package.
package pgindex
