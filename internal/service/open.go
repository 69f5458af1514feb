package service

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/and161185/campus-kit/internal/config"
	"github.com/and161185/campus-kit/internal/credential"
	"github.com/and161185/campus-kit/internal/migrate"
	"github.com/and161185/campus-kit/internal/persist"
	"github.com/and161185/campus-kit/internal/persist/postgres"
	"github.com/and161185/campus-kit/internal/persist/redisblob"
)

// Open builds a session with the credential file and cache backend named by cfg.
// Close releases the backend.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fopts := []credential.FileOption{credential.WithLogger(log.Named("credential"))}
	if cfg.Passphrase != "" {
		fopts = append(fopts, credential.WithPassphrase(cfg.Passphrase))
	}
	creds, err := credential.OpenFile(cfg.CredentialPath, fopts...)
	if err != nil {
		return nil, err
	}

	blobs, closer, err := openBlobs(ctx, cfg.Cache, log)
	if err != nil {
		return nil, err
	}

	s, err := New(cfg, Deps{
		Creds: creds,
		Blobs: blobs,
		HTTP:  &http.Client{Timeout: cfg.Timeout},
		Log:   log,
	})
	if err != nil {
		closer()
		return nil, err
	}
	s.closers = append(s.closers, closer)
	return s, nil
}

func openBlobs(ctx context.Context, c config.Cache, log *zap.Logger) (persist.BlobStore, func(), error) {
	noop := func() {}
	switch c.Backend {
	case config.BackendMemory:
		return persist.NewMemory(), noop, nil
	case config.BackendPostgres:
		if c.Migrate {
			if err := migrate.Up(ctx, c.PostgresDSN, log.Named("migrate")); err != nil {
				return nil, nil, fmt.Errorf("migrate cache schema: %w", err)
			}
		}
		db, err := postgres.New(ctx, c.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return postgres.NewBlobRepo(db, c.Namespace), db.Close, nil
	case config.BackendRedis:
		rdb, err := redisblob.Connect(ctx, c.RedisAddr, c.RedisDB)
		if err != nil {
			return nil, nil, err
		}
		return redisblob.New(rdb, c.Namespace), func() { _ = rdb.Close() }, nil
	default:
		d, err := persist.NewDir(c.Dir)
		if err != nil {
			return nil, nil, err
		}
		return d, noop, nil
	}
}
