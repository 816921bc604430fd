package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/fieldline/fieldline/internal/transport/middleware"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Recovery", func() {
	It("answers 500 without leaking the panic value", func() {
		logs := &bytes.Buffer{}
		h := middleware.RecoveryMiddleware(slog.New(slog.NewTextHandler(logs, nil)))(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("db password is hunter2") }))

		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil))

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(w.Body.String()).NotTo(ContainSubstring("hunter2"))
		Expect(logs.String()).To(ContainSubstring("panic recovered"))
	})

	It("tags the panic log with the request trace id", func() {
		logs := &bytes.Buffer{}
		h := middleware.RequestID(middleware.RecoveryMiddleware(slog.New(slog.NewTextHandler(logs, nil)))(
			http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-456")
		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(logs.String()).To(ContainSubstring("traceID=trace-456"))
	})
})

var _ = Describe("RequestID", func() {
	It("echoes a caller trace id and mints one otherwise", func() {
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(middleware.TraceHeader, "trace-123")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		Expect(w.Header().Get(middleware.TraceHeader)).To(Equal("trace-123"))

		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(w.Header().Get(middleware.TraceHeader)).To(HaveLen(36))
	})
})
