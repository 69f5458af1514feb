// Package grpcauth carries the bearer credential over gRPC and renews it on
// codes.Unauthenticated the same way auth.Authenticator does for HTTP.
package grpcauth

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/and161185/campus-kit/internal/auth"
	"github.com/and161185/campus-kit/internal/credential"
	"github.com/and161185/campus-kit/internal/errs"
)

const (
	authorizationKey = "authorization"
	requestIDKey     = "x-request-id"
)

// Credentials attaches the current access token to every RPC. It does not renew;
// use UnaryClientInterceptor for that.
type Credentials struct {
	Store credential.Store
	// AllowInsecure permits sending the token over plaintext connections.
	AllowInsecure bool
}

var _ credentials.PerRPCCredentials = Credentials{}

func (c Credentials) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	cred, ok := c.Store.Get()
	if !ok {
		return nil, status.Error(codes.Unauthenticated, errs.ErrAuthRequired.Error())
	}
	return map[string]string{authorizationKey: "Bearer " + cred.AccessToken}, nil
}

func (c Credentials) RequireTransportSecurity() bool { return !c.AllowInsecure }

func withBearer(ctx context.Context, token, requestID string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, authorizationKey, "Bearer "+token, requestIDKey, requestID)
}

// UnaryClientInterceptor injects the bearer token, refreshes on Unauthenticated and
// retries the call exactly once. A second Unauthenticated is reported as
// errs.ErrSessionExpired.
func UnaryClientInterceptor(creds credential.Store, refresher auth.TokenRefresher, log *zap.Logger) grpc.UnaryClientInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		cred, ok := creds.Get()
		if !ok {
			return errs.ErrAuthRequired
		}
		id := auth.RequestID(ctx)

		err := invoker(withBearer(ctx, cred.AccessToken, id), method, req, reply, cc, opts...)
		if status.Code(err) != codes.Unauthenticated {
			return err
		}

		if rerr := refresher.Refresh(ctx, cred.AccessToken); rerr != nil {
			log.Debug("grpc refresh failed", zap.String("method", method), zap.Error(rerr))
		}
		next, ok := creds.Get()
		if !ok {
			return errs.ErrAuthRequired
		}

		err = invoker(withBearer(ctx, next.AccessToken, id), method, req, reply, cc, opts...)
		if status.Code(err) == codes.Unauthenticated {
			return fmt.Errorf("%w: %w", errs.ErrSessionExpired, err)
		}
		return err
	}
}

// LoggingUnary returns a unary client interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)

		// metadata only, never payloads
		log.Debug("grpc",
			zap.String("method", method),
			zap.String("code", status.Code(err).String()),
			zap.Duration("dur", time.Since(start)),
			zap.String("target", cc.Target()),
		)
		return err
	}
}
