package store

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Snapshot is a payload persisted together with the remote version hash it matches.
type Snapshot[T any] struct {
	Hash    string `json:"hash"`
	Payload T      `json:"payload"`
}

// HashFetcher returns the cheap remote version hash.
type HashFetcher func(ctx context.Context) (string, error)

// Hashed caches a large payload and revalidates it against a remote hash on every Load.
type Hashed[T any] struct {
	name  string
	hash  HashFetcher
	fetch Fetcher[T]
	o     options
	sem   *semaphore.Weighted

	hydrate sync.Once

	mu   sync.Mutex
	snap *Snapshot[T]
	gen  uint64
}

// NewHashed builds a hash-validated cache. Without WithPersistence the snapshot
// lives in memory only.
func NewHashed[T any](name string, hash HashFetcher, fetch Fetcher[T], opts ...Option) *Hashed[T] {
	return &Hashed[T]{
		name:  name,
		hash:  hash,
		fetch: fetch,
		o:     newOptions(name, opts),
		sem:   semaphore.NewWeighted(1),
	}
}

func (h *Hashed[T]) Name() string { return h.name }

// Load fetches the remote hash; when it equals the stored one the stored payload is
// returned, otherwise the payload is fetched and stored together with the new hash.
func (h *Hashed[T]) Load(ctx context.Context) (T, error) {
	var zero T
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}
	defer h.sem.Release(1)
	h.ensureHydrated(ctx)

	h.mu.Lock()
	gen := h.gen
	h.mu.Unlock()

	remote, err := h.hash(ctx)
	if err != nil {
		return zero, err
	}

	h.mu.Lock()
	snap := h.snap
	h.mu.Unlock()
	if snap != nil && snap.Hash == remote {
		h.o.metrics.Hit()
		return snap.Payload, nil
	}
	h.o.metrics.Miss()

	payload, err := h.fetch(ctx)
	if err != nil {
		return zero, err
	}
	next := &Snapshot[T]{Hash: remote, Payload: payload}

	// held across the write so a concurrent Clear cannot be overtaken on disk
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.gen != gen {
		return payload, nil
	}
	h.snap = next
	if h.o.persistent() {
		b, err := json.Marshal(next)
		if err != nil {
			h.o.log.Warn("snapshot not encoded", zap.Error(err))
		} else {
			h.o.save(ctx, b)
		}
	}
	return payload, nil
}

func (h *Hashed[T]) ensureHydrated(ctx context.Context) {
	h.hydrate.Do(func() {
		b, ok := h.o.load(ctx)
		if !ok {
			return
		}
		var s Snapshot[T]
		if err := json.Unmarshal(b, &s); err != nil || s.Hash == "" {
			h.o.log.Warn("snapshot undecodable, starting cold", zap.Error(err))
			return
		}
		h.mu.Lock()
		if h.snap == nil {
			h.snap = &s
		}
		h.mu.Unlock()
	})
}

// Peek returns the stored payload without any network access.
func (h *Hashed[T]) Peek() (T, bool) {
	h.ensureHydrated(context.Background())
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snap == nil {
		var zero T
		return zero, false
	}
	return h.snap.Payload, true
}

// Hash returns the hash of the stored snapshot, if any.
func (h *Hashed[T]) Hash() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.snap == nil {
		return "", false
	}
	return h.snap.Hash, true
}

// Clear drops the snapshot from memory and disk.
func (h *Hashed[T]) Clear(ctx context.Context) error {
	h.hydrate.Do(func() {})
	h.mu.Lock()
	h.snap = nil
	h.gen++
	h.mu.Unlock()
	return h.o.remove(ctx)
}

func (h *Hashed[T]) ClearAll(ctx context.Context) error { return h.Clear(ctx) }
