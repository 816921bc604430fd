package auth_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/auth"
	"github.com/fieldline/fieldline/internal/transport"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = ginkgo.Describe("Auth Handler", func() {
	var (
		store   *mockUserStore
		handler *auth.Handler
	)

	ginkgo.BeforeEach(func() {
		store = newMockUserStore()
		lg := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		tokenGen := auth.NewJWTTokenGenerator(accessSecret, refreshSecret, 15*time.Minute, 24*time.Hour)
		handler = auth.NewHandler(transport.NewBaseHandler(lg), auth.NewService(store, tokenGen, lg), false)
	})

	login := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		handler.Login(w, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body)))
		return w
	}

	sessionCookie := func(w *httptest.ResponseRecorder) *http.Cookie {
		for _, c := range w.Result().Cookies() {
			if c.Name == transport.SessionCookieName {
				return c
			}
		}
		return nil
	}

	ginkgo.Describe("Login", func() {
		ginkgo.It("should return tokens and set the session cookie", func() {
			w := login(`{"email":"user@example.com","password":"correct_password"}`)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			var tokens auth.AuthTokens
			gomega.Expect(json.NewDecoder(w.Body).Decode(&tokens)).To(gomega.Succeed())

			c := sessionCookie(w)
			gomega.Expect(c).NotTo(gomega.BeNil())
			gomega.Expect(c.Value).To(gomega.Equal(tokens.AccessToken))
			gomega.Expect(c.HttpOnly).To(gomega.BeTrue())
		})

		ginkgo.It("should return 401 for bad credentials", func() {
			w := login(`{"email":"user@example.com","password":"nope"}`)
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
			gomega.Expect(sessionCookie(w)).To(gomega.BeNil())
		})

		ginkgo.It("should return 400 for malformed bodies", func() {
			gomega.Expect(login(`{`).Code).To(gomega.Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("Logout", func() {
		ginkgo.It("should expire the session cookie", func() {
			w := httptest.NewRecorder()
			handler.Logout(w, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusNoContent))
			gomega.Expect(sessionCookie(w).MaxAge).To(gomega.BeNumerically("<", 0))
		})
	})

	ginkgo.Describe("Authenticate middleware", func() {
		var (
			seen   *access.Principal
			userID int64
			chain  http.Handler
		)

		ginkgo.BeforeEach(func() {
			seen, userID = nil, 0
			chain = handler.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen, _ = access.PrincipalFromContext(r.Context())
				userID = internal.UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
		})

		token := func() string {
			var tokens auth.AuthTokens
			w := login(`{"email":"admin@example.com","password":"correct_password"}`)
			gomega.Expect(json.NewDecoder(w.Body).Decode(&tokens)).To(gomega.Succeed())
			return tokens.AccessToken
		}

		ginkgo.It("should load the principal from a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil)
			req.Header.Set("Authorization", "Bearer "+token())
			chain.ServeHTTP(httptest.NewRecorder(), req)

			gomega.Expect(seen).NotTo(gomega.BeNil())
			gomega.Expect(seen.IsAdmin()).To(gomega.BeTrue())
			gomega.Expect(userID).To(gomega.Equal(int64(2)))
		})

		ginkgo.It("should load the principal from the session cookie", func() {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.AddCookie(&http.Cookie{Name: transport.SessionCookieName, Value: token()})
			chain.ServeHTTP(httptest.NewRecorder(), req)

			gomega.Expect(seen).NotTo(gomega.BeNil())
			gomega.Expect(seen.ID).To(gomega.Equal(int64(2)))
		})

		ginkgo.It("should continue anonymously with an unusable token", func() {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.Header.Set("Authorization", "Bearer junk")
			w := httptest.NewRecorder()
			chain.ServeHTTP(w, req)

			gomega.Expect(w.Code).To(gomega.Equal(http.StatusOK))
			gomega.Expect(seen).To(gomega.BeNil())
		})

		ginkgo.It("should drop principals deactivated after login", func() {
			t := token()
			store.byID[2].IsActive = false

			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			req.Header.Set("Authorization", "Bearer "+t)
			chain.ServeHTTP(httptest.NewRecorder(), req)

			gomega.Expect(seen).To(gomega.BeNil())
		})
	})

	ginkgo.Describe("RequireAuth", func() {
		ginkgo.It("should reject anonymous requests with 401", func() {
			h := handler.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
			gomega.Expect(w.Code).To(gomega.Equal(http.StatusUnauthorized))
		})
	})
})
