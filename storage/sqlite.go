package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/goretrieve/types"
)

var (
	// ErrNotFound is returned when a requested document doesn't exist
	ErrNotFound = errors.New("not found")
)

// Store is a SQLite-backed hybrid index: document content is searchable
// through FTS5 bm25() scoring, embeddings through cosine similarity
// over serialized float32 blobs. It implements both scorer contracts
// consumed by the retriever package.
type Store struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger attaches a structured logger. The default is a no-op logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Open creates a Store at dbPath (":memory:" for an ephemeral index)
// and applies pending migrations.
func Open(dbPath string, opts ...StoreOption) (*Store, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger.Debug("opened document store",
		zap.String("path", dbPath),
		zap.String("build_mode", BuildMode))
	return s, nil
}

// Close releases the underlying database. Subsequent calls on the
// store fail with types.ErrIndexUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// checkOpen returns ErrIndexUnavailable when the store has been closed.
func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("%w: store closed", types.ErrIndexUnavailable)
	}
	return nil
}

// UpsertDocument inserts or replaces a document and its FTS row.
func (s *Store) UpsertDocument(ctx context.Context, doc types.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	tags, err := encodeTags(doc.Ref.Tags)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, source, chunk_index, content, tags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			tags = excluded.tags,
			updated_at = CURRENT_TIMESTAMP
	`, doc.Ref.ID, doc.Ref.Source, doc.Ref.ChunkIndex, doc.Content, tags)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE doc_id = ?", doc.Ref.ID); err != nil {
		return fmt.Errorf("failed to clear FTS row: %w", err)
	}
	if _, err = tx.ExecContext(ctx,
		"INSERT INTO documents_fts (content, doc_id) VALUES (?, ?)",
		doc.Content, doc.Ref.ID); err != nil {
		return fmt.Errorf("failed to insert FTS row: %w", err)
	}

	return tx.Commit()
}

// UpsertEmbedding stores a document's embedding vector.
func (s *Store) UpsertEmbedding(ctx context.Context, docID string, vector []float32, provider string) error {
	if docID == "" {
		return types.ErrMissingDocumentID
	}
	if err := s.checkOpen(); err != nil {
		return err
	}

	if dim, err := s.dimension(ctx); err != nil {
		return err
	} else if dim > 0 && dim != len(vector) {
		return fmt.Errorf("%w: got %d, index holds %d-dimensional vectors",
			types.ErrDimensionMismatch, len(vector), dim)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (doc_id, vector, dimension, provider)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(doc_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider
	`, docID, serializeVector(vector), len(vector), provider)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// GetDocument loads a document by ID.
func (s *Store) GetDocument(ctx context.Context, id string) (*types.Document, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var doc types.Document
	var tags string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source, chunk_index, content, tags
		FROM documents WHERE id = ?
	`, id).Scan(&doc.Ref.ID, &doc.Ref.Source, &doc.Ref.ChunkIndex, &doc.Content, &tags)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	doc.Ref.Tags, err = decodeTags(tags)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document, its FTS row, and its embedding.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err = tx.ExecContext(ctx, "DELETE FROM documents_fts WHERE doc_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete FTS row: %w", err)
	}
	// Embeddings cascade via FK
	if _, err = tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	return tx.Commit()
}

// Count returns the number of indexed documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// dimension reports the stored embedding dimensionality, 0 when the
// embeddings table is empty.
func (s *Store) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx, "SELECT dimension FROM embeddings LIMIT 1").Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read embedding dimension: %w", err)
	}
	return dim, nil
}

// encodeTags serializes a tag map as JSON for storage.
func encodeTags(tags map[string]string) (string, error) {
	if len(tags) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(data), nil
}

// decodeTags parses the stored JSON tag map. Empty maps decode to nil.
func decodeTags(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var tags map[string]string
	if err := json.Unmarshal([]byte(data), &tags); err != nil {
		return nil, fmt.Errorf("failed to decode tags: %w", err)
	}
	return tags, nil
}
