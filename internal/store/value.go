package store

import (
	"context"
	"encoding/json"
)

// Fetcher loads a fresh value from the network.
type Fetcher[T any] func(ctx context.Context) (T, error)

type unit struct{}

// Value caches a single resource.
type Value[T any] struct {
	c *cache[unit, T]
}

// NewValue builds a store around fetch. Persisted blobs hold the value and its
// fetch time, so a TTL keeps counting across restarts.
func NewValue[T any](name string, fetch Fetcher[T], opts ...Option) *Value[T] {
	f := func(ctx context.Context, _ unit) (T, error) { return fetch(ctx) }
	c := codec[unit, T]{
		encode: func(m map[unit]entry[T]) ([]byte, error) { return json.Marshal(toRecord(m[unit{}])) },
		decode: func(b []byte) (map[unit]entry[T], error) {
			e, err := decodeEntry[T](b)
			if err != nil {
				return nil, err
			}
			return map[unit]entry[T]{{}: e}, nil
		},
	}
	return &Value[T]{c: newCache[unit, T](name, f, c, opts)}
}

// Name identifies the store in logs.
func (s *Value[T]) Name() string { return s.c.name }

// GetCached returns the cached value if fresh, otherwise fetches it. Concurrent cold
// calls share a single fetch.
func (s *Value[T]) GetCached(ctx context.Context) (T, error) { return s.c.getCached(ctx, unit{}) }

// GetRefreshed always fetches and replaces the cached value on success. On failure
// the previous value is kept.
func (s *Value[T]) GetRefreshed(ctx context.Context) (T, error) {
	return s.c.getRefreshed(ctx, unit{})
}

// Clear drops the value from memory and disk. Fetches started before Clear do not
// repopulate the store.
func (s *Value[T]) Clear(ctx context.Context) error { return s.c.clearAll(ctx) }

// ClearAll is Clear; it lets Value join a Group.
func (s *Value[T]) ClearAll(ctx context.Context) error { return s.Clear(ctx) }

// Peek returns the cached or persisted value without touching the network.
func (s *Value[T]) Peek() (T, bool) { return s.c.peek(unit{}) }

// Stale reports whether GetCached would fetch.
func (s *Value[T]) Stale() bool { return s.c.stale(unit{}) }
