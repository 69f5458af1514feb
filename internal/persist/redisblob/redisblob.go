// Package redisblob stores cache blobs in Redis under a key prefix.
package redisblob

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/campus-kit/internal/persist"
)

const scanBatch = 100

// Store implements persist.BlobStore with plain string keys.
type Store struct {
	Client redis.Cmdable
	Prefix string
	// TTL bounds how long an unused blob survives; zero keeps blobs until removed.
	TTL time.Duration
}

var (
	_ persist.BlobStore = (*Store)(nil)
	_ persist.Sweeper   = (*Store)(nil)
)

// New returns a Store writing keys as "<prefix>:<key>".
func New(client redis.Cmdable, prefix string) *Store {
	return &Store{Client: client, Prefix: prefix}
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (s *Store) key(k string) string {
	if s.Prefix == "" {
		return k
	}
	return s.Prefix + ":" + k
}

func (s *Store) Save(ctx context.Context, key string, value []byte) error {
	if err := s.Client.Set(ctx, s.key(key), value, s.TTL).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context, key string) ([]byte, error) {
	b, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return b, nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.key(key)).Err()
}

// RemovePrefix scans for keys under prefix and deletes them batch by batch.
func (s *Store) RemovePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	match := s.key(prefix) + "*"
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("redis scan %q: %w", match, err)
		}
		if len(keys) > 0 {
			if err := s.Client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
