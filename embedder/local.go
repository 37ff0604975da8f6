package embedder

import (
	"context"
	"crypto/sha256"
	"math"
)

// ProviderLocal names the deterministic offline provider.
const ProviderLocal = "local"

// LocalDimension is the local provider's vector size.
const LocalDimension = 384

// Local is a deterministic, offline embedder: the vector is derived
// from the text's SHA-256 digest and normalized to unit length. It
// carries no semantic signal and exists for tests and for running the
// retrieval pipeline without network access.
type Local struct {
	cache *Cache
}

// NewLocal creates a local embedder. cache may be nil.
func NewLocal(cache *Cache) *Local {
	return &Local{cache: cache}
}

func (l *Local) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := hashText(text)
	if l.cache != nil {
		if vec, ok := l.cache.Get(hash); ok {
			return vec, nil
		}
	}

	vec := hashVector(text)
	if l.cache != nil {
		l.cache.Set(hash, vec)
	}
	return vec, nil
}

func (l *Local) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := validateBatch(texts); err != nil {
		return nil, err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := l.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (l *Local) Dimension() int {
	return LocalDimension
}

func (l *Local) Provider() string {
	return ProviderLocal
}

func (l *Local) Close() error {
	return nil
}

// hashVector expands the text digest into a unit-length vector by
// rehashing the digest chain until the dimension is filled.
func hashVector(text string) []float32 {
	vec := make([]float32, LocalDimension)
	digest := sha256.Sum256([]byte(text))

	i := 0
	for i < LocalDimension {
		for _, b := range digest {
			if i >= LocalDimension {
				break
			}
			vec[i] = float32(b)/127.5 - 1.0
			i++
		}
		digest = sha256.Sum256(digest[:])
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
