package shared

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Context keys for request-scoped data. Keep types unexported to avoid collisions.
type ctxKey string

const ctxKeyRequestID ctxKey = "request-id"

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID returns the request ID set by chi's RequestID middleware, or
// one set explicitly with WithRequestID.
func RequestID(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}
