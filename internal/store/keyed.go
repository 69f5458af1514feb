package store

import "context"

// Key types are those encoding/json accepts as object keys.
type Key interface {
	~string | ~int | ~int64
}

// KeyedFetcher loads the resource for one key.
type KeyedFetcher[K Key, T any] func(ctx context.Context, key K) (T, error)

// Keyed caches one resource per key (a building, a semester). Persisted blobs are
// a JSON object keyed by K.
type Keyed[K Key, T any] struct {
	c *cache[K, T]
}

// NewKeyed builds a keyed store around fetch.
func NewKeyed[K Key, T any](name string, fetch KeyedFetcher[K, T], opts ...Option) *Keyed[K, T] {
	return &Keyed[K, T]{c: newCache[K, T](name, fetch, jsonMapCodec[K, T](), opts)}
}

func (s *Keyed[K, T]) Name() string { return s.c.name }

// GetCached returns the value for key, fetching it on a miss or when stale.
func (s *Keyed[K, T]) GetCached(ctx context.Context, key K) (T, error) {
	return s.c.getCached(ctx, key)
}

// GetRefreshed fetches key unconditionally.
func (s *Keyed[K, T]) GetRefreshed(ctx context.Context, key K) (T, error) {
	return s.c.getRefreshed(ctx, key)
}

// Clear drops one key.
func (s *Keyed[K, T]) Clear(ctx context.Context, key K) error { return s.c.clear(ctx, key) }

// ClearAll drops every key and the persisted blob.
func (s *Keyed[K, T]) ClearAll(ctx context.Context) error { return s.c.clearAll(ctx) }

func (s *Keyed[K, T]) Peek(key K) (T, bool) { return s.c.peek(key) }

func (s *Keyed[K, T]) Stale(key K) bool { return s.c.stale(key) }
