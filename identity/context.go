package identity

import "context"

// Context key type to avoid collisions
type ctxKey string

const ctxKeyUser ctxKey = "user"

// WithUser attaches the current user to the context.
func WithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

// FromContext returns the user attached to ctx, or nil when there is none.
func FromContext(ctx context.Context) User {
	if val := ctx.Value(ctxKeyUser); val != nil {
		if user, ok := val.(User); ok {
			return user
		}
	}
	return nil
}
