package embedder

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_Deterministic(t *testing.T) {
	emb := NewLocal(nil)
	defer func() { _ = emb.Close() }()

	first, err := emb.Embed(context.Background(), "rotate credentials")
	require.NoError(t, err)
	second, err := emb.Embed(context.Background(), "rotate credentials")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := emb.Embed(context.Background(), "completely different text")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestLocal_Dimension(t *testing.T) {
	emb := NewLocal(nil)

	vec, err := emb.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, LocalDimension)
	assert.Equal(t, LocalDimension, emb.Dimension())
	assert.Equal(t, ProviderLocal, emb.Provider())
}

func TestLocal_UnitNorm(t *testing.T) {
	emb := NewLocal(nil)

	vec, err := emb.Embed(context.Background(), "normalize me")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestLocal_EmptyText(t *testing.T) {
	emb := NewLocal(nil)
	_, err := emb.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestLocal_EmbedBatch(t *testing.T) {
	emb := NewLocal(nil)

	vectors, err := emb.EmbedBatch(context.Background(), []string{"one", "two", "one"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, vectors[0], vectors[2])
	assert.NotEqual(t, vectors[0], vectors[1])

	_, err = emb.EmbedBatch(context.Background(), nil)
	assert.Error(t, err)

	_, err = emb.EmbedBatch(context.Background(), []string{"ok", ""})
	assert.ErrorIs(t, err, ErrEmptyText)

	tooMany := make([]string, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = "x"
	}
	_, err = emb.EmbedBatch(context.Background(), tooMany)
	assert.ErrorIs(t, err, ErrBatchTooLarge)
}

func TestLocal_CancelledContext(t *testing.T) {
	emb := NewLocal(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := emb.Embed(ctx, "hello")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCache(t *testing.T) {
	cache := NewCache(4)

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	vec := []float32{1, 2, 3}
	cache.Set("key", vec)
	got, ok := cache.Get("key")
	require.True(t, ok)
	assert.Equal(t, vec, got)

	// Stored and returned values are isolated from caller slices.
	vec[0] = 99
	got[1] = 99
	fresh, ok := cache.Get("key")
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2, 3}, fresh)

	assert.Equal(t, 1, cache.Len())
	cache.Purge()
	assert.Zero(t, cache.Len())
}

func TestLocal_UsesCache(t *testing.T) {
	cache := NewCache(16)
	emb := NewLocal(cache)

	_, err := emb.Embed(context.Background(), "cached text")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	_, ok := cache.Get(hashText("cached text"))
	assert.True(t, ok)
}
