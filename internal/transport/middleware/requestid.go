package middleware

import (
	"net/http"

	"github.com/fieldline/fieldline/pkg/logger"
	"github.com/google/uuid"
)

const (
	TraceHeader   = "X-Trace-ID"
	maxTraceIDLen = 128
)

// RequestID accepts the caller's X-Trace-ID, or mints one, and attaches it to
// the context logger and the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if traceID == "" || len(traceID) > maxTraceIDLen {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "traceID", traceID)
		w.Header().Set(TraceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
