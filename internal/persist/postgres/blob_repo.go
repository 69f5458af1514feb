package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/campus-kit/internal/persist"
)

// BlobRepo implements persist.BlobStore over the cache_blobs table.
// Keys are stored as "<namespace>/<key>" so several users can share one database.
type BlobRepo struct {
	db        *DB
	namespace string
}

var (
	_ persist.BlobStore = (*BlobRepo)(nil)
	_ persist.Sweeper   = (*BlobRepo)(nil)
)

// NewBlobRepo constructs a blob repository scoped to namespace.
func NewBlobRepo(db *DB, namespace string) *BlobRepo {
	return &BlobRepo{db: db, namespace: namespace}
}

func (r *BlobRepo) key(k string) string {
	if r.namespace == "" {
		return k
	}
	return r.namespace + "/" + k
}

// Save upserts the blob.
func (r *BlobRepo) Save(ctx context.Context, key string, value []byte) error {
	const q = `
INSERT INTO cache_blobs (key, value, updated_at) VALUES ($1,$2,now())
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=now()`
	if _, err := r.db.Pool.Exec(ctx, q, r.key(key), value); err != nil {
		return fmt.Errorf("save blob %q: %w", key, err)
	}
	return nil
}

// Load returns the blob or persist.ErrNotFound.
func (r *BlobRepo) Load(ctx context.Context, key string) ([]byte, error) {
	const q = `SELECT value FROM cache_blobs WHERE key=$1`
	var v []byte
	if err := r.db.Pool.QueryRow(ctx, q, r.key(key)).Scan(&v); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, persist.ErrNotFound
		}
		return nil, fmt.Errorf("load blob %q: %w", key, err)
	}
	return v, nil
}

// Remove deletes the blob if present.
func (r *BlobRepo) Remove(ctx context.Context, key string) error {
	const q = `DELETE FROM cache_blobs WHERE key=$1`
	_, err := r.db.Pool.Exec(ctx, q, r.key(key))
	return err
}

// RemovePrefix deletes every blob under prefix within the namespace.
func (r *BlobRepo) RemovePrefix(ctx context.Context, prefix string) error {
	const q = `DELETE FROM cache_blobs WHERE starts_with(key, $1)`
	_, err := r.db.Pool.Exec(ctx, q, r.key(prefix))
	return err
}

// Expire deletes blobs of this namespace not written since before and returns how many were removed.
func (r *BlobRepo) Expire(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM cache_blobs WHERE starts_with(key, $1) AND updated_at < $2`
	tag, err := r.db.Pool.Exec(ctx, q, r.key(""), before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
