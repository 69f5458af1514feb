// Package store implements the staleness-aware resource caches: plain and keyed
// get-cached-or-fetch stores, a pagination cursor and a hash-validated snapshot.
//
// Every store serializes its own mutations; no lock spans two stores.
package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/campus-kit/internal/persist"
)

// Metrics receives cache events. NoopMetrics is used when none is configured.
type Metrics interface {
	Hit()
	Miss()
	// Expire is called when a cached value is found but past its TTL.
	Expire()
	// Refresh is called for every explicit refresh.
	Refresh()
}

// NoopMetrics ignores all events.
type NoopMetrics struct{}

func (NoopMetrics) Hit()     {}
func (NoopMetrics) Miss()    {}
func (NoopMetrics) Expire()  {}
func (NoopMetrics) Refresh() {}

type options struct {
	ttl     time.Duration
	blobs   persist.BlobStore
	key     string
	log     *zap.Logger
	metrics Metrics
	now     func() time.Time
}

// Option configures a store.
type Option func(*options)

// WithTTL marks values older than ttl as stale. Zero keeps values fresh until cleared.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) { o.ttl = ttl }
}

// WithPersistence hydrates the store from blobs[key] and writes it back after every
// successful fetch.
func WithPersistence(blobs persist.BlobStore, key string) Option {
	return func(o *options) { o.blobs, o.key = blobs, key }
}

// WithLogger sets the logger; zap.NewNop by default.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *options) { o.metrics = m }
}

func withClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(name string, opts []Option) options {
	o := options{log: zap.NewNop(), metrics: NoopMetrics{}, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	o.log = o.log.With(zap.String("store", name))
	return o
}

func (o *options) persistent() bool { return o.blobs != nil && o.key != "" }

func (o *options) load(ctx context.Context) ([]byte, bool) {
	if !o.persistent() {
		return nil, false
	}
	b, err := o.blobs.Load(ctx, o.key)
	if err != nil {
		if !errors.Is(err, persist.ErrNotFound) {
			o.log.Warn("cache blob unreadable, starting cold", zap.String("key", o.key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

func (o *options) save(ctx context.Context, b []byte) {
	if err := o.blobs.Save(ctx, o.key, b); err != nil {
		o.log.Warn("cache blob not saved", zap.String("key", o.key), zap.Error(err))
	}
}

func (o *options) remove(ctx context.Context) error {
	if !o.persistent() {
		return nil
	}
	return o.blobs.Remove(ctx, o.key)
}
