package chi

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/logger"
)

const requestIDHeader = "X-Request-Id"

// RequestLogger tags every request with an identifier and injects a
// request-scoped logger into the context. Client-supplied identifiers
// are kept so callers can correlate retries.
func RequestLogger(base *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(requestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, id)

			reqLogger := base.With(zap.String("request_id", id))
			ctx := logger.ContextWithLogger(r.Context(), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
