package retriever

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/goretrieve/types"
)

// DefaultCacheTTL is used when a Cached wrapper is built without an
// explicit TTL.
const DefaultCacheTTL = time.Hour

// cacheEntry is a cached response with its expiration time.
type cacheEntry struct {
	response  *Response
	expiresAt time.Time
}

// Cached wraps a Retriever with an LRU query cache. The core Search
// path is cache-free by design; callers that want cross-query caching
// opt in through this wrapper. For fixed indexes a cached response is
// identical to a recomputed one, so caching preserves determinism.
type Cached struct {
	inner   *Retriever
	ttl     time.Duration
	cache   *lru.Cache[[32]byte, *cacheEntry]
	cacheMu sync.RWMutex
}

// NewCached wraps r with an LRU cache of the given capacity and TTL.
func NewCached(r *Retriever, capacity int, ttl time.Duration) (*Cached, error) {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	cache, err := lru.New[[32]byte, *cacheEntry](capacity)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}
	return &Cached{inner: r, ttl: ttl, cache: cache}, nil
}

// Search returns a cached response when a fresh entry exists for the
// request, otherwise delegates to the wrapped Retriever and caches the
// outcome. Errors are never cached.
func (c *Cached) Search(ctx context.Context, req Request) (*Response, error) {
	key := requestKey(req)

	if resp, ok := c.lookup(key); ok {
		return resp, nil
	}

	resp, err := c.inner.Search(ctx, req)
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	c.cache.Add(key, &cacheEntry{
		response:  copyResponse(resp),
		expiresAt: time.Now().Add(c.ttl),
	})
	c.cacheMu.Unlock()

	return resp, nil
}

// Invalidate drops every cached query. Callers invalidate after
// reindexing; the LRU has no per-document view of what changed.
func (c *Cached) Invalidate() {
	c.cacheMu.Lock()
	c.cache.Purge()
	c.cacheMu.Unlock()
}

// Len returns the number of live cache entries, counting expired ones
// that have not been evicted yet.
func (c *Cached) Len() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return c.cache.Len()
}

// lookup fetches a non-expired entry, removing it if stale.
func (c *Cached) lookup(key [32]byte) (*Response, bool) {
	now := time.Now()

	c.cacheMu.RLock()
	entry, found := c.cache.Get(key)
	if !found {
		c.cacheMu.RUnlock()
		return nil, false
	}
	if now.After(entry.expiresAt) {
		c.cacheMu.RUnlock()
		c.cacheMu.Lock()
		c.cache.Remove(key)
		c.cacheMu.Unlock()
		return nil, false
	}
	// Copy while still holding the read lock so the entry cannot be
	// mutated mid-copy.
	resp := copyResponse(entry.response)
	c.cacheMu.RUnlock()
	return resp, true
}

// requestKey computes a deterministic hash for a search request.
func requestKey(req Request) [32]byte {
	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	fmt.Fprintf(&data, "%g|%g|%d|%s|%s|%t",
		req.Config.VectorWeight,
		req.Config.BM25Weight,
		req.Config.TopK,
		req.Config.Normalization,
		req.Config.Mode,
		req.Config.AllowDegraded,
	)
	for _, ref := range req.Pool {
		data.WriteString("|")
		data.WriteString(ref.ID)
	}
	return sha256.Sum256([]byte(data.String()))
}

// copyResponse creates a deep copy of a Response so cached values are
// isolated from caller mutations.
func copyResponse(src *Response) *Response {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]types.CombinedResult, len(src.Results))
	for i, r := range src.Results {
		dst.Results[i] = r
		dst.Results[i].Ref = r.Ref.Clone()
	}
	return &dst
}
