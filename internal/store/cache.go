package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type entry[T any] struct {
	value     T
	fetchedAt time.Time
}

// codec maps the in-memory entries to the persisted blob format.
type codec[K comparable, T any] struct {
	encode func(map[K]entry[T]) ([]byte, error)
	decode func([]byte) (map[K]entry[T], error)
}

// cache is the shared engine behind Value and Keyed.
type cache[K comparable, T any] struct {
	name  string
	fetch func(context.Context, K) (T, error)
	o     options
	codec codec[K, T]

	hydrate sync.Once

	mu      sync.Mutex
	entries map[K]entry[T]
	epoch   uint64       // bumped by clearAll
	gens    map[K]uint64 // bumped by clear(k)

	sf  singleflight.Group
	pmu sync.Mutex // orders blob writes
}

func newCache[K comparable, T any](name string, fetch func(context.Context, K) (T, error), c codec[K, T], opts []Option) *cache[K, T] {
	return &cache[K, T]{
		name:    name,
		fetch:   fetch,
		o:       newOptions(name, opts),
		codec:   c,
		entries: make(map[K]entry[T]),
		gens:    make(map[K]uint64),
	}
}

// stamp identifies the invalidation generation a fetch started under.
type stamp struct{ epoch, key uint64 }

// stampLocked must be called with c.mu held.
func (c *cache[K, T]) stampLocked(k K) stamp { return stamp{c.epoch, c.gens[k]} }

// ensureHydrated reads the persisted blob once. Any failure leaves the cache cold.
func (c *cache[K, T]) ensureHydrated(ctx context.Context) {
	c.hydrate.Do(func() {
		b, ok := c.o.load(ctx)
		if !ok {
			return
		}
		m, err := c.codec.decode(b)
		if err != nil {
			c.o.log.Warn("cache blob undecodable, starting cold", zap.String("key", c.o.key), zap.Error(err))
			return
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		for k, e := range m {
			if _, exists := c.entries[k]; !exists {
				c.entries[k] = e
			}
		}
		c.o.log.Debug("hydrated", zap.Int("entries", len(m)))
	})
}

func (c *cache[K, T]) fresh(e entry[T]) bool {
	if c.o.ttl <= 0 {
		return true
	}
	return !e.fetchedAt.IsZero() && c.o.now().Sub(e.fetchedAt) < c.o.ttl
}

func (c *cache[K, T]) getCached(ctx context.Context, k K) (T, error) {
	c.ensureHydrated(ctx)

	c.mu.Lock()
	e, ok := c.entries[k]
	gen := c.stampLocked(k)
	c.mu.Unlock()

	if ok {
		if c.fresh(e) {
			c.o.metrics.Hit()
			return e.value, nil
		}
		c.o.metrics.Expire()
	} else {
		c.o.metrics.Miss()
	}

	shared := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(fmt.Sprintf("%d.%d/%v", gen.epoch, gen.key, k), func() (any, error) {
		return c.load(shared, k, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			var zero T
			return zero, res.Err
		}
		return res.Val.(T), nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (c *cache[K, T]) getRefreshed(ctx context.Context, k K) (T, error) {
	c.ensureHydrated(ctx)
	c.o.metrics.Refresh()

	c.mu.Lock()
	gen := c.stampLocked(k)
	c.mu.Unlock()
	return c.load(ctx, k, gen)
}

// load fetches k and stores the result unless the cache was cleared meanwhile.
func (c *cache[K, T]) load(ctx context.Context, k K, gen stamp) (T, error) {
	v, err := c.fetch(ctx, k)
	if err != nil {
		c.o.log.Debug("fetch failed", zap.Any("key", k), zap.Error(err))
		return v, err
	}

	c.mu.Lock()
	if c.stampLocked(k) != gen {
		c.mu.Unlock()
		c.o.log.Debug("fetch result dropped after clear", zap.Any("key", k))
		return v, nil
	}
	c.entries[k] = entry[T]{value: v, fetchedAt: c.o.now()}
	c.mu.Unlock()

	c.persist(ctx)
	return v, nil
}

// persist writes the current snapshot; write failures are logged only.
func (c *cache[K, T]) persist(ctx context.Context) {
	if !c.o.persistent() {
		return
	}
	c.pmu.Lock()
	defer c.pmu.Unlock()

	c.mu.Lock()
	snap := make(map[K]entry[T], len(c.entries))
	for k, e := range c.entries {
		snap[k] = e
	}
	c.mu.Unlock()

	if len(snap) == 0 {
		if err := c.o.remove(ctx); err != nil {
			c.o.log.Warn("cache blob not removed", zap.Error(err))
		}
		return
	}
	b, err := c.codec.encode(snap)
	if err != nil {
		c.o.log.Warn("cache blob not encoded", zap.Error(err))
		return
	}
	c.o.save(ctx, b)
}

func (c *cache[K, T]) clear(ctx context.Context, k K) error {
	c.ensureHydrated(ctx)
	c.mu.Lock()
	delete(c.entries, k)
	c.gens[k]++
	c.mu.Unlock()
	if !c.o.persistent() {
		return nil
	}
	c.persist(ctx)
	return nil
}

func (c *cache[K, T]) clearAll(ctx context.Context) error {
	// a later hydration must not resurrect cleared data
	c.hydrate.Do(func() {})
	c.mu.Lock()
	c.entries = make(map[K]entry[T])
	c.epoch++
	c.mu.Unlock()

	c.pmu.Lock()
	defer c.pmu.Unlock()
	if err := c.o.remove(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", c.name, err)
	}
	return nil
}

func (c *cache[K, T]) peek(k K) (T, bool) {
	c.ensureHydrated(context.Background())
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return e.value, ok
}

func (c *cache[K, T]) stale(k K) bool {
	c.ensureHydrated(context.Background())
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return !ok || !c.fresh(e)
}

func jsonMapCodec[K comparable, T any]() codec[K, T] {
	return codec[K, T]{
		encode: func(m map[K]entry[T]) ([]byte, error) {
			out := make(map[K]record[T], len(m))
			for k, e := range m {
				out[k] = toRecord(e)
			}
			return json.Marshal(out)
		},
		decode: func(b []byte) (map[K]entry[T], error) {
			var raw map[K]json.RawMessage
			if err := json.Unmarshal(b, &raw); err != nil {
				return nil, err
			}
			m := make(map[K]entry[T], len(raw))
			for k, r := range raw {
				e, err := decodeEntry[T](r)
				if err != nil {
					return nil, err
				}
				m[k] = e
			}
			return m, nil
		},
	}
}
