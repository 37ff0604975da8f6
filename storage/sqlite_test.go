package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/goretrieve/embedder"
	"github.com/dshills/goretrieve/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testDoc(id, content string) types.Document {
	return types.Document{
		Ref:     types.DocumentRef{ID: id, Source: "test.md"},
		Content: content,
	}
}

func candidateIDs(cands []types.ScoredCandidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Ref.ID
	}
	return out
}

func TestDocumentRoundtrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	doc := types.Document{
		Ref: types.DocumentRef{
			ID:         "doc-1",
			Source:     "runbook.md",
			ChunkIndex: 3,
			Tags:       map[string]string{"team": "infra", "tier": "1"},
		},
		Content: "rotate credentials quarterly",
	}
	require.NoError(t, store.UpsertDocument(ctx, doc))

	got, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, doc.Ref, got.Ref)
	assert.Equal(t, doc.Content, got.Content)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestGetDocument_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertDocument_Replaces(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("doc-1", "old content")))
	require.NoError(t, store.UpsertDocument(ctx, testDoc("doc-1", "new content")))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	cands, err := store.SearchText(ctx, "old", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, cands, "replaced content must leave the FTS index")

	cands, err = store.SearchText(ctx, "new", 10, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestUpsertDocument_Validation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.UpsertDocument(ctx, types.Document{Content: "no id"})
	assert.ErrorIs(t, err, types.ErrMissingDocumentID)

	err = store.UpsertDocument(ctx, types.Document{Ref: types.DocumentRef{ID: "x"}})
	assert.ErrorIs(t, err, types.ErrEmptyContent)
}

func TestDeleteDocument(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("doc-1", "some content")))
	require.NoError(t, store.UpsertEmbedding(ctx, "doc-1", []float32{1, 0, 0}, "local"))

	require.NoError(t, store.DeleteDocument(ctx, "doc-1"))

	_, err := store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, ErrNotFound)

	cands, err := store.SearchText(ctx, "content", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)

	cands, err = store.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, cands, "embedding must cascade with the document")
}

func TestSearchText(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("creds", "rotate credentials rotate keys rotate secrets")))
	require.NoError(t, store.UpsertDocument(ctx, testDoc("deploy", "deploy the service and rotate logs")))
	require.NoError(t, store.UpsertDocument(ctx, testDoc("dns", "configure dns records for the zone")))

	cands, err := store.SearchText(ctx, "rotate credentials", 10, nil)
	require.NoError(t, err)
	require.Len(t, cands, 2, "zero-overlap documents are omitted")
	assert.Equal(t, "creds", cands[0].Ref.ID)
	assert.Greater(t, cands[0].Score, cands[1].Score)
	for _, c := range cands {
		assert.Equal(t, types.OriginKeyword, c.Origin)
	}
}

func TestSearchText_Limit(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.UpsertDocument(ctx, testDoc(fmt.Sprintf("doc-%02d", i), "shared token")))
	}

	cands, err := store.SearchText(ctx, "shared", 3, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 3)
}

func TestSearchText_PoolFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertDocument(ctx, testDoc(id, "shared token")))
	}

	pool := []types.DocumentRef{{ID: "b"}, {ID: "c"}}
	cands, err := store.SearchText(ctx, "shared", 10, pool)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b", "c"}, candidateIDs(cands))
}

func TestSanitizeFTSQuery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain terms", "rotate credentials", `"rotate" OR "credentials"`},
		{"hyphens split terms", "rotate-credentials", `"rotate" OR "credentials"`},
		{"apostrophes split terms", "what's rotation?", `"what" OR "s" OR "rotation"`},
		{"quotes carry no syntax", `rotate "credentials`, `"rotate" OR "credentials"`},
		{"parentheses carry no syntax", "rotate (credentials)", `"rotate" OR "credentials"`},
		{"operators become terms", "rotate AND credentials", `"rotate" OR "and" OR "credentials"`},
		{"wildcards stripped", "rotate*", `"rotate"`},
		{"single term", "rotate", `"rotate"`},
		{"punctuation only", "?!...", ""},
		{"empty stays empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeFTSQuery(tt.input))
		})
	}
}

func TestSearchText_PunctuationQueries(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("creds", "rotate credentials quarterly")))

	// Natural-language punctuation must neither error nor block matching.
	for _, q := range []string{
		"rotate credentials",
		"rotate-credentials",
		"rotate (credentials)",
		"rotate AND credentials",
		`how do I "rotate" my credentials?`,
	} {
		cands, err := store.SearchText(ctx, q, 10, nil)
		require.NoError(t, err, "query %q", q)
		assert.NotEmpty(t, cands, "query %q", q)
	}

	// No term overlap means no match, still no error.
	cands, err := store.SearchText(ctx, "what's kubernetes?", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearchText_AnyTermOverlapMatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("a", "rotate keys")))

	// Only one of the two query terms appears in the document.
	cands, err := store.SearchText(ctx, "rotate credentials", 10, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}

func TestSearchText_EmptyQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("a", "alpha beta")))

	cands, err := store.SearchText(ctx, "", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)

	cands, err = store.SearchText(ctx, "?!", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func TestSearchVector(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"aligned":    {1, 0, 0},
		"angled":     {1, 1, 0},
		"orthogonal": {0, 0, 1},
	}
	for id, vec := range vectors {
		require.NoError(t, store.UpsertDocument(ctx, testDoc(id, "content for "+id)))
		require.NoError(t, store.UpsertEmbedding(ctx, id, vec, "local"))
	}

	cands, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, cands, 3)
	assert.Equal(t, []string{"aligned", "angled", "orthogonal"}, candidateIDs(cands))
	assert.InDelta(t, 1.0, cands[0].Score, 1e-6)
	for _, c := range cands {
		assert.Equal(t, types.OriginSemantic, c.Origin)
	}
}

func TestSearchVector_DimensionMismatch(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("a", "content")))
	require.NoError(t, store.UpsertEmbedding(ctx, "a", []float32{1, 0, 0}, "local"))

	_, err := store.SearchVector(ctx, []float32{1, 0}, 10, nil)
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)
}

func TestSearchVector_PoolFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.UpsertDocument(ctx, testDoc(id, "content")))
		require.NoError(t, store.UpsertEmbedding(ctx, id, []float32{1, 0, 0}, "local"))
	}

	pool := []types.DocumentRef{{ID: "a"}}
	cands, err := store.SearchVector(ctx, []float32{1, 0, 0}, 10, pool)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, candidateIDs(cands))
}

func TestUpsertEmbedding_DimensionGuard(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("a", "content")))
	require.NoError(t, store.UpsertEmbedding(ctx, "a", []float32{1, 0, 0}, "local"))

	require.NoError(t, store.UpsertDocument(ctx, testDoc("b", "content")))
	err := store.UpsertEmbedding(ctx, "b", []float32{1, 0}, "local")
	assert.ErrorIs(t, err, types.ErrDimensionMismatch)

	err = store.UpsertEmbedding(ctx, "", []float32{1, 0, 0}, "local")
	assert.ErrorIs(t, err, types.ErrMissingDocumentID)
}

func TestVectorSerialization(t *testing.T) {
	vec := []float32{0.1, -2.5, 0, 1e-7, 42}
	assert.Equal(t, vec, deserializeVector(serializeVector(vec)))
	assert.Empty(t, deserializeVector(nil))
}

func TestClosedStore(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "double close is safe")

	ctx := context.Background()
	err := store.UpsertDocument(ctx, testDoc("a", "content"))
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)

	_, err = store.SearchText(ctx, "content", 10, nil)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)

	_, err = store.SearchVector(ctx, []float32{1}, 10, nil)
	assert.ErrorIs(t, err, types.ErrIndexUnavailable)
}

func TestIndexDocuments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	docs := make([]types.Document, 0, 5)
	for i := 0; i < 5; i++ {
		docs = append(docs, testDoc(fmt.Sprintf("doc-%d", i), fmt.Sprintf("document number %d about retrieval", i)))
	}

	emb := embedder.NewLocal(nil)
	stats, err := store.IndexDocuments(ctx, docs, emb)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Indexed)
	assert.Equal(t, 5, stats.Embedded)

	cands, err := store.SearchText(ctx, "retrieval", 10, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 5)

	query, err := emb.Embed(ctx, "document number 2 about retrieval")
	require.NoError(t, err)
	cands, err = store.SearchVector(ctx, query, 10, nil)
	require.NoError(t, err)
	require.NotEmpty(t, cands)
	assert.Equal(t, "doc-2", cands[0].Ref.ID, "exact content match must rank first")
}

func TestIndexDocuments_NilEmbedder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	stats, err := store.IndexDocuments(ctx, []types.Document{testDoc("a", "content")}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Indexed)
	assert.Zero(t, stats.Embedded)
}

func TestIndexDocuments_ValidatesUpfront(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	docs := []types.Document{
		testDoc("a", "valid content"),
		{Content: "missing id"},
	}
	_, err := store.IndexDocuments(ctx, docs, nil)
	assert.ErrorIs(t, err, types.ErrMissingDocumentID)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is written when any document is invalid")
}

func TestScorerAdapters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertDocument(ctx, testDoc("a", "alpha content")))
	require.NoError(t, store.UpsertEmbedding(ctx, "a", []float32{1, 0}, "local"))

	kw := store.KeywordScorer()
	cands, err := kw.Score(ctx, "alpha", 10, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 1)

	sem := store.SemanticScorer()
	cands, err = sem.Score(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Len(t, cands, 1)
}
