package auth

import (
	"context"

	"github.com/gofrs/uuid/v5"
)

type ctxKey string

const requestIDKey ctxKey = "campus.requestID"

// WithRequestID stores the id both transports send as X-Request-Id.
func WithRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx fetches the request id from context.
func RequestIDFromCtx(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(requestIDKey)
	if v == nil {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

// RequestID returns the id stored in ctx or a new random one.
func RequestID(ctx context.Context) string {
	if id, ok := RequestIDFromCtx(ctx); ok {
		return id.String()
	}
	return uuid.Must(uuid.NewV4()).String()
}
