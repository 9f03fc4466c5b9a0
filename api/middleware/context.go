package middleware

import "context"

type contextKey string

const ctxCartSession contextKey = "cart_session"

// CartSessionFromContext returns the cart session resolved for the request.
func CartSessionFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxCartSession).(string); ok {
		return v
	}
	return ""
}

// WithCartSession injects the cart session into the context for downstream handlers.
func WithCartSession(ctx context.Context, session string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxCartSession, session)
}
