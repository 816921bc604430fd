package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/transport"
	"github.com/fieldline/fieldline/pkg/logger"
)

// RecoveryMiddleware turns a handler panic into a logged 500. The panic value
// stays in the log and is not sent to the client.
func RecoveryMiddleware(log *slog.Logger) func(http.Handler) http.Handler {
	base := transport.NewBaseHandler(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Bind(r.Context(), log).ErrorContext(r.Context(), "panic recovered",
						"error", rec,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					base.WriteAppError(w, internal.NewInternalError("internal server error", nil))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
