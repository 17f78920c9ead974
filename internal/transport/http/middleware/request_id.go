package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"hrleave/internal/requestctx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

// RequestID attaches an identifier to every request, honouring an incoming
// X-Request-Id header so callers can correlate across services.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", requestID)
		ctx := requestctx.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
