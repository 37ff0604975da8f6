package pgindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/dshills/goretrieve/types"
)

// DefaultTable is the table used when no override is given.
const DefaultTable = "goretrieve_embeddings"

// Index is a Postgres/pgvector-backed semantic index implementing the
// retriever's SemanticScorer contract. Similarity is 1 - cosine
// distance, computed by the vector extension's <=> operator.
type Index struct {
	db     *sql.DB
	table  string
	dim    int
	logger *zap.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithTable overrides the embeddings table name.
func WithTable(name string) Option {
	return func(idx *Index) { idx.table = name }
}

// WithLogger attaches a structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) { idx.logger = l }
}

// Open connects to Postgres, ensures the vector extension and the
// embeddings table exist, and returns a ready index.
func Open(dsn string, dimension int, opts ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be > 0", types.ErrInvalidConfig)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: postgres unreachable: %v", types.ErrIndexUnavailable, err)
	}

	idx := &Index{db: db, table: DefaultTable, dim: dimension, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(idx)
	}

	if err := idx.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	idx.logger.Debug("opened pgvector index",
		zap.String("table", idx.table),
		zap.Int("dimension", dimension))
	return idx, nil
}

// ensureSchema creates the extension and table if missing.
func (idx *Index) ensureSchema() error {
	if _, err := idx.db.Exec("CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	stmt := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			doc_id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			chunk_index INTEGER NOT NULL DEFAULT 0,
			tags JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, pq.QuoteIdentifier(idx.table), idx.dim)
	if _, err := idx.db.Exec(stmt); err != nil {
		return fmt.Errorf("failed to create embeddings table: %w", err)
	}
	return nil
}

// Dimension returns the index's embedding dimensionality.
func (idx *Index) Dimension() int {
	return idx.dim
}

// Upsert stores an embedding for the ref, replacing any previous one.
func (idx *Index) Upsert(ctx context.Context, ref types.DocumentRef, vector []float32) error {
	if ref.ID == "" {
		return types.ErrMissingDocumentID
	}
	if len(vector) != idx.dim {
		return fmt.Errorf("%w: got %d, index expects %d",
			types.ErrDimensionMismatch, len(vector), idx.dim)
	}

	tags, err := json.Marshal(ref.Tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}
	if ref.Tags == nil {
		tags = []byte("{}")
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (doc_id, source, chunk_index, tags, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (doc_id) DO UPDATE SET
			source = EXCLUDED.source,
			chunk_index = EXCLUDED.chunk_index,
			tags = EXCLUDED.tags,
			embedding = EXCLUDED.embedding`, pq.QuoteIdentifier(idx.table))
	_, err = idx.db.ExecContext(ctx, stmt,
		ref.ID, ref.Source, ref.ChunkIndex, tags, pgvector.NewVector(vector))
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// Delete removes a ref's embedding. Unknown IDs are a no-op.
func (idx *Index) Delete(ctx context.Context, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE doc_id = $1", pq.QuoteIdentifier(idx.table))
	if _, err := idx.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("failed to delete embedding: %w", err)
	}
	return nil
}

// Score returns the documents most similar to the query embedding,
// restricted to pool when given. Ordering is similarity descending,
// then doc ID ascending for determinism.
func (idx *Index) Score(ctx context.Context, embedding []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	if len(embedding) != idx.dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, index expects %d",
			types.ErrDimensionMismatch, len(embedding), idx.dim)
	}

	queryVec := pgvector.NewVector(embedding)
	var rows *sql.Rows
	var err error
	if len(pool) > 0 {
		ids := make([]string, len(pool))
		for i, ref := range pool {
			ids[i] = ref.ID
		}
		stmt := fmt.Sprintf(`
			SELECT doc_id, source, chunk_index, tags, 1 - (embedding <=> $1) AS similarity
			FROM %s
			WHERE doc_id = ANY($2)
			ORDER BY embedding <=> $1, doc_id
			LIMIT $3`, pq.QuoteIdentifier(idx.table))
		rows, err = idx.db.QueryContext(ctx, stmt, queryVec, pq.Array(ids), limit)
	} else {
		stmt := fmt.Sprintf(`
			SELECT doc_id, source, chunk_index, tags, 1 - (embedding <=> $1) AS similarity
			FROM %s
			ORDER BY embedding <=> $1, doc_id
			LIMIT $2`, pq.QuoteIdentifier(idx.table))
		rows, err = idx.db.QueryContext(ctx, stmt, queryVec, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cands := make([]types.ScoredCandidate, 0, limit)
	for rows.Next() {
		var c types.ScoredCandidate
		var tags []byte
		if err := rows.Scan(&c.Ref.ID, &c.Ref.Source, &c.Ref.ChunkIndex, &tags, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		if len(tags) > 0 && string(tags) != "{}" {
			if err := json.Unmarshal(tags, &c.Ref.Tags); err != nil {
				return nil, fmt.Errorf("failed to decode tags: %w", err)
			}
		}
		c.Origin = types.OriginSemantic
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// Close releases the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}
