package auth

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/campus-kit/internal/credential"
	"github.com/and161185/campus-kit/internal/errs"
	"github.com/and161185/campus-kit/internal/model"
)

const refreshKey = "refresh"

// TokenExchanger trades a refresh token for a new credential pair.
// A rejected refresh token must be reported as errs.ErrAuthRequired.
type TokenExchanger interface {
	Exchange(ctx context.Context, refreshToken string) (model.Credential, error)
}

// Refresher coordinates credential renewal so that at most one exchange is in flight.
type Refresher struct {
	creds credential.Store
	exch  TokenExchanger
	log   *zap.Logger

	group singleflight.Group
}

var _ TokenRefresher = (*Refresher)(nil)

// NewRefresher builds a Refresher over the given store and exchanger.
func NewRefresher(creds credential.Store, exch TokenExchanger, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{creds: creds, exch: exch, log: log}
}

// Refresh joins the in-flight refresh if there is one, whatever its fencing token.
// Otherwise it starts one only if the stored access token still equals fencingToken;
// a mismatch means someone already refreshed and Refresh returns nil immediately.
//
// The exchange is detached from ctx: cancelling ctx only stops this caller from
// waiting. Every waiter observes the same outcome.
func (r *Refresher) Refresh(ctx context.Context, fencingToken string) error {
	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(refreshKey, func() (any, error) {
		return nil, r.refresh(shared, fencingToken)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) refresh(ctx context.Context, fencingToken string) error {
	cur, ok := r.creds.Get()
	if !ok {
		return errs.ErrAuthRequired
	}
	if cur.AccessToken != fencingToken {
		r.log.Debug("credential already refreshed")
		return nil
	}

	next, err := r.exch.Exchange(ctx, cur.RefreshToken)
	if err != nil {
		if errors.Is(err, errs.ErrAuthRequired) {
			r.log.Warn("refresh token rejected", zap.Error(err))
		} else {
			r.log.Warn("refresh failed", zap.Error(err))
		}
		return err
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cur.RefreshToken
	}

	if sw, ok := r.creds.(credential.Swapper); ok {
		swapped, err := sw.CompareAndSwap(cur, next)
		if err != nil {
			return err
		}
		if !swapped {
			r.log.Info("credential changed during refresh, result dropped")
		}
		return nil
	}
	return r.creds.Set(next)
}
