package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dshills/goretrieve/keyword"
	"github.com/dshills/goretrieve/types"
)

// KeywordScorer returns an adapter exposing the store's FTS5 search as
// a retriever.KeywordScorer.
func (s *Store) KeywordScorer() *KeywordAdapter {
	return &KeywordAdapter{store: s}
}

// SemanticScorer returns an adapter exposing the store's vector search
// as a retriever.SemanticScorer.
func (s *Store) SemanticScorer() *SemanticAdapter {
	return &SemanticAdapter{store: s}
}

// KeywordAdapter adapts Store.SearchText to the scorer contract.
type KeywordAdapter struct {
	store *Store
}

func (a *KeywordAdapter) Score(ctx context.Context, query string, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	return a.store.SearchText(ctx, query, limit, pool)
}

// SemanticAdapter adapts Store.SearchVector to the scorer contract.
type SemanticAdapter struct {
	store *Store
}

func (a *SemanticAdapter) Score(ctx context.Context, embedding []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	return a.store.SearchVector(ctx, embedding, limit, pool)
}

// SearchText performs BM25 full-text search using FTS5. FTS5's bm25()
// returns negative scores where lower is better; they are negated so
// higher means more relevant, as the normalizer expects. Documents with
// no overlapping terms never match and are therefore omitted.
func (s *Store) SearchText(ctx context.Context, query string, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	sanitized := sanitizeFTSQuery(query)
	if sanitized == "" {
		return nil, nil
	}

	sqlQuery := `
		SELECT d.id, d.source, d.chunk_index, d.tags, -bm25(documents_fts) AS score
		FROM documents_fts
		INNER JOIN documents d ON documents_fts.doc_id = d.id
		WHERE documents_fts MATCH ?
	`
	args := []interface{}{sanitized}
	sqlQuery, args = applyPoolFilter(sqlQuery, args, pool)
	sqlQuery += " ORDER BY score DESC, d.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute FTS search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectCandidates(rows, types.OriginKeyword)
}

// SearchVector performs cosine-similarity search over the stored
// embeddings. When the sqlite-vec extension is compiled in the distance
// is computed in SQL; otherwise all candidate vectors are scored in Go.
func (s *Store) SearchVector(ctx context.Context, queryVector []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	if dim, err := s.dimension(ctx); err != nil {
		return nil, err
	} else if dim > 0 && dim != len(queryVector) {
		return nil, fmt.Errorf("%w: query has %d dimensions, index holds %d",
			types.ErrDimensionMismatch, len(queryVector), dim)
	}

	if VectorExtensionAvailable {
		return s.searchVectorOptimized(ctx, queryVector, limit, pool)
	}
	return s.searchVectorFallback(ctx, queryVector, limit, pool)
}

// searchVectorOptimized pushes the distance computation into SQL via
// the sqlite-vec extension.
func (s *Store) searchVectorOptimized(ctx context.Context, queryVector []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	blob := serializeVector(queryVector)

	sqlQuery := `
		SELECT d.id, d.source, d.chunk_index, d.tags,
		       1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM embeddings e
		INNER JOIN documents d ON e.doc_id = d.id
		WHERE 1=1
	`
	args := []interface{}{blob}
	sqlQuery, args = applyPoolFilter(sqlQuery, args, pool)
	sqlQuery += " ORDER BY similarity DESC, d.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectCandidates(rows, types.OriginSemantic)
}

// searchVectorFallback loads candidate vectors and scores them in Go.
// Used for purego builds without the sqlite-vec extension.
func (s *Store) searchVectorFallback(ctx context.Context, queryVector []float32, limit int, pool []types.DocumentRef) ([]types.ScoredCandidate, error) {
	sqlQuery := `
		SELECT d.id, d.source, d.chunk_index, d.tags, e.vector
		FROM embeddings e
		INNER JOIN documents d ON e.doc_id = d.id
		WHERE 1=1
	`
	args := []interface{}{}
	sqlQuery, args = applyPoolFilter(sqlQuery, args, pool)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cands := make([]types.ScoredCandidate, 0, 256)
	for rows.Next() {
		var ref types.DocumentRef
		var tags string
		var blob []byte
		if err := rows.Scan(&ref.ID, &ref.Source, &ref.ChunkIndex, &tags, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue // stale row from a different model, skip
		}
		if ref.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		cands = append(cands, types.ScoredCandidate{
			Ref:    ref,
			Score:  cosineSimilarity(queryVector, vector),
			Origin: types.OriginSemantic,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

// applyPoolFilter restricts a query to the given candidate pool.
func applyPoolFilter(query string, args []interface{}, pool []types.DocumentRef) (string, []interface{}) {
	if len(pool) == 0 {
		return query, args
	}
	query += " AND d.id IN ("
	for i, ref := range pool {
		if i > 0 {
			query += ","
		}
		query += "?"
		args = append(args, ref.ID)
	}
	query += ")"
	return query, args
}

// collectCandidates scans (id, source, chunk_index, tags, score) rows.
func collectCandidates(rows *sql.Rows, origin types.Origin) ([]types.ScoredCandidate, error) {
	cands := make([]types.ScoredCandidate, 0)
	for rows.Next() {
		var c types.ScoredCandidate
		var tags string
		if err := rows.Scan(&c.Ref.ID, &c.Ref.Source, &c.Ref.ChunkIndex, &tags, &c.Score); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		var err error
		if c.Ref.Tags, err = decodeTags(tags); err != nil {
			return nil, err
		}
		c.Origin = origin
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// sanitizeFTSQuery rewrites free text as an FTS5 MATCH expression. The
// query is reduced to the same token vocabulary the in-memory keyword
// index uses, and every token is emitted as a quoted phrase joined with
// OR, so punctuation, quotes, and FTS5 operators in user input carry no
// syntactic meaning. Any term overlap matches; bm25() ranks the rest.
func sanitizeFTSQuery(query string) string {
	terms := keyword.Tokenize(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		quoted[i] = `"` + term + `"`
	}
	return strings.Join(quoted, " OR ")
}
