package rest_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/auth"
	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
	"github.com/fieldline/fieldline/internal/core/events"
	"github.com/fieldline/fieldline/internal/membership"
	membershipPostgres "github.com/fieldline/fieldline/internal/membership/postgres"
	"github.com/fieldline/fieldline/internal/project"
	projectPostgres "github.com/fieldline/fieldline/internal/project/postgres"
	"github.com/fieldline/fieldline/internal/role"
	rolePostgres "github.com/fieldline/fieldline/internal/role/postgres"
	"github.com/fieldline/fieldline/internal/transport"
	"github.com/fieldline/fieldline/internal/transport/middleware"
	"github.com/fieldline/fieldline/internal/transport/rest"
	"github.com/fieldline/fieldline/internal/user"
	userPostgres "github.com/fieldline/fieldline/internal/user/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	accessSecret  = "router-test-access-secret-0123456789"
	refreshSecret = "router-test-refresh-secret-0123456789"
	password      = "correct-horse"
)

var _ = Describe("Router", func() {
	var (
		ctx      context.Context
		router   http.Handler
		cache    *access.MemoryCache
		cacheErr error

		builderID, viewerID int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		cacheErr = nil
		slogger := slog.New(slog.NewTextHandler(io.Discard, nil))

		db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(
			&userDatamodel.Role{},
			&userDatamodel.User{},
			&projectDatamodel.Project{},
			&projectDatamodel.ProjectTeamMember{},
		)).To(Succeed())

		bus := events.NewEventBus(slogger)
		cache = access.NewMemoryCache()
		membershipRepo := membershipPostgres.NewMembershipRepository(db)
		checker := access.NewChecker(membershipRepo, cache, slogger)
		checker.RegisterEventHandlers(bus)

		userRepo := userPostgres.NewUserRepository(db)
		roleService := role.NewService(rolePostgres.NewRoleRepository(db), slogger)
		Expect(roleService.InsertRoles(ctx)).To(Succeed())
		userService := user.NewService(userRepo, roleService, bus, bcrypt.MinCost, slogger)

		createUser := func(email, roleName string) int64 {
			u, err := userService.Create(ctx, user.CreateUserDTO{
				Email: email, Name: email, Password: password, Role: roleName,
			})
			Expect(err).NotTo(HaveOccurred())
			return u.ID
		}
		createUser("admin@site.test", access.RoleAdmin)
		builderID = createUser("builder@site.test", access.RoleGeneralContractor)
		viewerID = createUser("viewer@site.test", "")

		allow, err := middleware.NewIPAllowlist([]string{"10.0.0.0/8"})
		Expect(err).NotTo(HaveOccurred())

		tokens := auth.NewJWTTokenGenerator(accessSecret, refreshSecret, 15*time.Minute, time.Hour)
		base := transport.NewBaseHandler(slogger)
		router = rest.NewRouter(rest.Handlers{
			Auth:     auth.NewHandler(base, auth.NewService(userRepo, tokens, slogger), false),
			Guards:   auth.NewGuards(base, checker, "/auth/login", "/dashboard"),
			Users:    user.NewHandler(base, userService),
			Roles:    role.NewHandler(base, roleService),
			Projects: project.NewHandler(base, project.NewService(projectPostgres.NewProjectRepository(db), bus, slogger)),
			Members:  membership.NewHandler(base, membership.NewService(membershipRepo, bus, slogger)),
			Health: rest.NewHealthHandler(map[string]rest.Pinger{
				"database": sqlDB,
				"cache": rest.PingFunc(func(context.Context) error {
					return cacheErr
				}),
			}),
			AdminAllow: allow,
		}, slogger)
	})

	do := func(method, path, token, body string) *httptest.ResponseRecorder {
		var reader io.Reader
		if body != "" {
			reader = strings.NewReader(body)
		}
		req := httptest.NewRequest(method, path, reader)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		req.Header.Set("X-Forwarded-For", "10.1.2.3")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	login := func(email string) string {
		w := do(http.MethodPost, "/auth/login", "", fmt.Sprintf(`{"email":%q,"password":%q}`, email, password))
		Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())

		var out auth.AuthTokens
		Expect(json.NewDecoder(w.Body).Decode(&out)).To(Succeed())
		Expect(out.AccessToken).NotTo(BeEmpty())
		return out.AccessToken
	}

	createProject := func(token string) int64 {
		w := do(http.MethodPost, "/api/v1/projects", token, `{"name":"Harbour Bridge","number":"HB-01"}`)
		Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())

		var p project.Project
		Expect(json.NewDecoder(w.Body).Decode(&p)).To(Succeed())
		return p.ID
	}

	Describe("authentication", func() {
		It("rejects anonymous API calls with 401", func() {
			w := do(http.MethodGet, "/api/v1/projects", "", "")
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("redirects anonymous browsers to login with a return-to marker", func() {
			w := do(http.MethodGet, "/dashboard", "", "")
			Expect(w.Code).To(Equal(http.StatusFound))
			Expect(w.Header().Get("Location")).To(Equal("/auth/login?next=%2Fdashboard"))
		})

		It("rejects bad credentials", func() {
			w := do(http.MethodPost, "/auth/login", "", `{"email":"viewer@site.test","password":"wrong-password"}`)
			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts the session cookie set at login", func() {
			w := do(http.MethodPost, "/auth/login", "", fmt.Sprintf(`{"email":"viewer@site.test","password":%q}`, password))
			Expect(w.Code).To(Equal(http.StatusOK))
			cookies := w.Result().Cookies()
			Expect(cookies).NotTo(BeEmpty())

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			req.AddCookie(cookies[0])
			me := httptest.NewRecorder()
			router.ServeHTTP(me, req)

			Expect(me.Code).To(Equal(http.StatusOK))
			Expect(me.Body.String()).To(ContainSubstring("viewer@site.test"))
		})
	})

	Describe("project access", func() {
		var builder, viewer string

		BeforeEach(func() {
			builder = login("builder@site.test")
			viewer = login("viewer@site.test")
		})

		It("keeps non-members out until they are added, and out again once removed", func() {
			projectID := createProject(builder)
			path := fmt.Sprintf("/api/v1/projects/%d", projectID)

			// Given a viewer who is not on the team
			w := do(http.MethodGet, path, viewer, "")
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring("PROJECT_ACCESS_DENIED"))

			// When the builder adds them
			w = do(http.MethodPost, path+"/members", builder, fmt.Sprintf(`{"user_id":%d,"role":"inspector"}`, viewerID))
			Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())

			// Then the cached denial no longer applies
			Expect(do(http.MethodGet, path, viewer, "").Code).To(Equal(http.StatusOK))

			// When they are removed the next request is denied again
			w = do(http.MethodDelete, fmt.Sprintf("%s/members/%d", path, viewerID), builder, "")
			Expect(w.Code).To(Equal(http.StatusNoContent))
			Expect(do(http.MethodGet, path, viewer, "").Code).To(Equal(http.StatusForbidden))
		})

		It("answers 400 for a non-integer project id", func() {
			w := do(http.MethodGet, "/api/v1/projects/abc", builder, "")
			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(w.Body.String()).To(ContainSubstring("INVALID_PROJECT_ID"))
		})

		It("requires the create capability to start a project", func() {
			w := do(http.MethodPost, "/api/v1/projects", viewer, `{"name":"Shed","number":"S-1"}`)
			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring("INSUFFICIENT_ROLE"))
		})

		It("lets an admin into any project without membership", func() {
			projectID := createProject(builder)
			admin := login("admin@site.test")

			w := do(http.MethodGet, fmt.Sprintf("/api/v1/projects/%d/members", projectID), admin, "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(fmt.Sprintf(`"user_id":%d`, builderID)))
		})
	})

	Describe("project deletion", func() {
		It("sends non-admins to the landing page", func() {
			builder := login("builder@site.test")
			projectID := createProject(builder)

			w := do(http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d", projectID), builder, "")
			Expect(w.Code).To(Equal(http.StatusFound))
			Expect(w.Header().Get("Location")).To(Equal("/dashboard"))
		})

		It("drops every cached decision for the project", func() {
			builder := login("builder@site.test")
			projectID := createProject(builder)
			Expect(do(http.MethodGet, fmt.Sprintf("/api/v1/projects/%d", projectID), builder, "").Code).To(Equal(http.StatusOK))
			Expect(cache.Set(ctx, access.Key{UserID: viewerID, ProjectID: projectID}, false)).To(Succeed())
			Expect(cache.Set(ctx, access.Key{UserID: viewerID, ProjectID: projectID + 1}, false)).To(Succeed())

			w := do(http.MethodDelete, fmt.Sprintf("/api/v1/projects/%d", projectID), login("admin@site.test"), "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			Expect(cache.Len()).To(Equal(1))
			_, found, err := cache.Get(ctx, access.Key{UserID: viewerID, ProjectID: projectID + 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
		})
	})

	Describe("admin routes", func() {
		It("refuses clients outside the allowlist", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin/roles", nil)
			req.Header.Set("Authorization", "Bearer "+login("admin@site.test"))
			req.RemoteAddr = "192.0.2.10:5555"
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusForbidden))
			Expect(w.Body.String()).To(ContainSubstring("IP_NOT_ALLOWED"))
			Expect(w.Header().Get("X-Frame-Options")).To(Equal("SAMEORIGIN"))
		})

		It("lists roles for an admin on an allowed address", func() {
			w := do(http.MethodGet, "/admin/roles", login("admin@site.test"), "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(ContainSubstring(access.RoleGeneralContractor))
		})

		It("deactivating a user ends their session", func() {
			viewer := login("viewer@site.test")
			w := do(http.MethodPost, fmt.Sprintf("/admin/users/%d/deactivate", viewerID), login("admin@site.test"), "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			Expect(do(http.MethodGet, "/api/v1/users/me", viewer, "").Code).To(Equal(http.StatusUnauthorized))
		})
	})

	Describe("health", func() {
		It("answers ping", func() {
			w := do(http.MethodGet, "/api/v1/ping", "", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("X-Content-Type-Options")).To(Equal("nosniff"))
			Expect(w.Header().Get("Strict-Transport-Security")).To(BeEmpty())
		})

		It("reports healthy components", func() {
			w := do(http.MethodGet, "/api/v1/health", "", "")
			Expect(w.Code).To(Equal(http.StatusOK))

			var resp rest.HealthResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Status).To(Equal(rest.HealthHealthy))
			Expect(resp.Components).To(HaveKey("database"))
		})

		It("answers 503 when a component fails", func() {
			cacheErr = errors.New("connection refused")

			w := do(http.MethodGet, "/api/v1/health", "", "")
			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))

			var resp rest.HealthResponse
			Expect(json.NewDecoder(w.Body).Decode(&resp)).To(Succeed())
			Expect(resp.Components["cache"].Status).To(Equal(rest.HealthUnhealthy))
			Expect(resp.Components["cache"].Message).To(Equal("connection refused"))
		})
	})
})
