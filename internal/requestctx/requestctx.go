// Package requestctx carries the request identifier through context so any
// layer can tag logs and responses without a transport dependency.
package requestctx

import "context"

type contextKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKey{}, requestID)
}

// GetRequestID returns the identifier set by WithRequestID, or "" when the
// context never passed through the request-id middleware.
func GetRequestID(ctx context.Context) string {
	if value, ok := ctx.Value(contextKey{}).(string); ok {
		return value
	}
	return ""
}
