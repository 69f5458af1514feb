package store

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// PageFetcher loads one 1-based page. An empty page marks the end of data.
type PageFetcher[T any] func(ctx context.Context, page int) ([]T, error)

// Paged accumulates a paginated listing one page per GetCachedPage call.
type Paged[T any] struct {
	name  string
	fetch PageFetcher[T]
	o     options
	sem   *semaphore.Weighted

	mu       sync.Mutex
	page     int
	finished bool
	items    []T
	gen      uint64
}

// NewPaged builds an empty cursor positioned at page 1.
func NewPaged[T any](name string, fetch PageFetcher[T], opts ...Option) *Paged[T] {
	return &Paged[T]{
		name:  name,
		fetch: fetch,
		o:     newOptions(name, opts),
		sem:   semaphore.NewWeighted(1),
		page:  1,
	}
}

func (p *Paged[T]) Name() string { return p.name }

// GetCachedPage fetches the next page, appends it and returns everything accumulated.
// Once a page came back empty it returns the accumulated items without network access.
func (p *Paged[T]) GetCachedPage(ctx context.Context) ([]T, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)

	p.mu.Lock()
	if p.finished {
		out := p.snapshotLocked()
		p.mu.Unlock()
		p.o.metrics.Hit()
		return out, nil
	}
	page, gen := p.page, p.gen
	p.mu.Unlock()
	p.o.metrics.Miss()

	delta, err := p.fetch(ctx, page)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		p.o.log.Debug("page dropped after clear", zap.Int("page", page))
		return append([]T(nil), delta...), nil
	}
	p.items = append(p.items, delta...)
	p.page = page + 1
	p.finished = len(delta) == 0
	return p.snapshotLocked(), nil
}

// GetRefreshedPage restarts from page 1. The previous listing is kept if the fetch fails.
func (p *Paged[T]) GetRefreshedPage(ctx context.Context) ([]T, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer p.sem.Release(1)
	p.o.metrics.Refresh()

	p.mu.Lock()
	gen := p.gen
	p.mu.Unlock()

	first, err := p.fetch(ctx, 1)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return append([]T(nil), first...), nil
	}
	p.items = append([]T(nil), first...)
	p.page = 2
	p.finished = len(first) == 0
	return p.snapshotLocked(), nil
}

// Clear resets the cursor to page 1 with nothing accumulated.
func (p *Paged[T]) Clear(context.Context) error {
	p.mu.Lock()
	p.items, p.page, p.finished = nil, 1, false
	p.gen++
	p.mu.Unlock()
	return nil
}

func (p *Paged[T]) ClearAll(ctx context.Context) error { return p.Clear(ctx) }

// Finished reports whether the end of data has been reached.
func (p *Paged[T]) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

func (p *Paged[T]) snapshotLocked() []T {
	out := make([]T, len(p.items))
	copy(out, p.items)
	return out
}
