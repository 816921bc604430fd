package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
)

const (
	filtered       = "[FILTERED]"
	maxLoggedBody  = 4 << 10
	truncateMarker = "...[TRUNCATED]"
)

// sensitiveFields are matched as substrings of lower-cased header and JSON
// key names.
var sensitiveFields = []string{
	"password",
	"token",
	"authorization",
	"cookie",
	"secret",
	"api_key",
	"apikey",
	"session",
	"credential",
}

// LoggingMiddleware logs one line per request with status and latency.
// Request and response bodies are logged at debug level with sensitive
// fields masked.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := r.Context()
			debug := logger.Enabled(ctx, slog.LevelDebug)

			var reqBody []byte
			if debug && r.Body != nil {
				reqBody, _ = io.ReadAll(io.LimitReader(r.Body, maxLoggedBody+1))
				r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(reqBody), r.Body))
			}

			rw := &responseWriter{ResponseWriter: w, capture: debug}
			next.ServeHTTP(rw, r)

			status := rw.status()
			attrs := []any{
				"request_id", middleware.GetReqID(ctx),
				"trace_id", w.Header().Get(TraceHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rw.size,
				"remote_addr", r.RemoteAddr,
			}
			if debug {
				attrs = append(attrs,
					"headers", FilterHeaders(r.Header),
					"request_body", FilterBody(reqBody),
					"response_body", FilterBody(rw.body.Bytes()),
				)
			}
			logger.Log(ctx, levelFor(status), "http request", attrs...)
		})
	}
}

func levelFor(status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	size       int
	capture    bool
	body       bytes.Buffer
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.statusCode == 0 {
		rw.statusCode = code
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.statusCode == 0 {
		rw.statusCode = http.StatusOK
	}
	if rw.capture && rw.body.Len() <= maxLoggedBody {
		rw.body.Write(b)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.size += n
	return n, err
}

func (rw *responseWriter) status() int {
	if rw.statusCode == 0 {
		return http.StatusOK
	}
	return rw.statusCode
}

func isSensitive(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range sensitiveFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// FilterHeaders flattens headers, masking sensitive ones.
func FilterHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if isSensitive(name) {
			out[name] = filtered
			continue
		}
		out[name] = strings.Join(values, ", ")
	}
	return out
}

// FilterBody masks sensitive keys of a JSON body. Non-JSON bodies that
// mention a sensitive field are dropped entirely.
func FilterBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	truncated := len(body) > maxLoggedBody
	if truncated {
		body = body[:maxLoggedBody]
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		if isSensitive(string(body)) {
			return filtered
		}
		if truncated {
			return string(body) + truncateMarker
		}
		return string(body)
	}

	out, err := json.Marshal(filterJSON(data))
	if err != nil {
		return filtered
	}
	return string(out)
}

func filterJSON(data any) any {
	switch v := data.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			if isSensitive(key) {
				out[key] = filtered
				continue
			}
			out[key] = filterJSON(value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = filterJSON(item)
		}
		return out
	default:
		return v
	}
}
