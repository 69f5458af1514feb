// Package auth attaches bearer credentials to outgoing requests and renews them
// when the server answers 401.
package auth

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/campus-kit/internal/credential"
	"github.com/and161185/campus-kit/internal/errs"
)

// HeaderRequestID correlates the first attempt and its retry in server logs.
const HeaderRequestID = "X-Request-Id"

// Doer sends an HTTP request. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenRefresher renews the stored credential. fencingToken is the access token the
// caller saw rejected; Refresh must not start a new exchange if it is already stale.
type TokenRefresher interface {
	Refresh(ctx context.Context, fencingToken string) error
}

// Authenticator is a Doer that injects "Authorization: Bearer <access>" and performs
// at most one refresh-and-retry cycle per request.
type Authenticator struct {
	creds     credential.Store
	refresher TokenRefresher
	next      Doer
	log       *zap.Logger
}

var _ Doer = (*Authenticator)(nil)

// NewAuthenticator wires the credential store, refresher and underlying transport.
func NewAuthenticator(creds credential.Store, refresher TokenRefresher, next Doer, log *zap.Logger) *Authenticator {
	if next == nil {
		next = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Authenticator{creds: creds, refresher: refresher, next: next, log: log}
}

// Do sends req with the current access token. A 401 triggers one refresh (joined if
// another caller already started it) and exactly one retry with whatever credential is
// stored afterwards. A second 401 is returned to the caller as a response.
func (a *Authenticator) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	cred, ok := a.creds.Get()
	if !ok {
		return nil, errs.ErrAuthRequired
	}

	body, err := replayableBody(req)
	if err != nil {
		return nil, err
	}
	reqID := req.Header.Get(HeaderRequestID)
	if reqID == "" {
		reqID = RequestID(ctx)
	}

	resp, err := a.send(ctx, req, body, cred.AccessToken, reqID, 1)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	discard(resp)

	if rerr := a.refresher.Refresh(ctx, cred.AccessToken); rerr != nil {
		a.log.Debug("refresh failed, retrying anyway",
			zap.String("request_id", reqID), zap.Error(rerr))
	}

	cred, ok = a.creds.Get()
	if !ok {
		return nil, errs.ErrAuthRequired
	}
	return a.send(ctx, req, body, cred.AccessToken, reqID, 2)
}

func (a *Authenticator) send(
	ctx context.Context, req *http.Request, body func() (io.ReadCloser, error),
	access, reqID string, attempt int,
) (*http.Response, error) {
	r := req.Clone(ctx)
	if body != nil {
		rc, err := body()
		if err != nil {
			return nil, err
		}
		r.Body = rc
		r.GetBody = body
	}
	r.Header.Set("Authorization", "Bearer "+access)
	r.Header.Set(HeaderRequestID, reqID)

	start := time.Now()
	resp, err := a.next.Do(r)
	if err != nil {
		a.log.Debug("request failed",
			zap.String("method", r.Method),
			zap.String("url", r.URL.Redacted()),
			zap.String("request_id", reqID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return nil, errs.Transport(r.Method, r.URL.Redacted(), err)
	}
	a.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("url", r.URL.Redacted()),
		zap.String("request_id", reqID),
		zap.Int("attempt", attempt),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)
	return resp, nil
}

// replayableBody returns a body factory usable for both attempts. Bodies without
// GetBody are buffered once.
func replayableBody(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		return req.GetBody, nil
	}
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
