package rest

import (
	"log/slog"

	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/auth"
	"github.com/fieldline/fieldline/internal/membership"
	"github.com/fieldline/fieldline/internal/project"
	"github.com/fieldline/fieldline/internal/role"
	"github.com/fieldline/fieldline/internal/transport/middleware"
	"github.com/fieldline/fieldline/internal/transport/swagger"
	"github.com/fieldline/fieldline/internal/user"
	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth       *auth.Handler
	Guards     *auth.Guards
	Users      *user.Handler
	Roles      *role.Handler
	Projects   *project.Handler
	Members    *membership.Handler
	Health     *HealthHandler
	AdminAllow *middleware.IPAllowlist
	// HSTS enables Strict-Transport-Security on responses.
	HSTS bool
}

func NewRouter(h Handlers, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()
	RegisterAllRoutes(router, h, logger)
	return router
}

func RegisterAllRoutes(router *chi.Mux, h Handlers, logger *slog.Logger) {
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.SecurityHeaders(h.HSTS))
	router.Use(middleware.AdminIPAllowlist(h.AdminAllow, logger))
	router.Use(h.Auth.Authenticate)

	router.Get("/openapi.yml", swagger.SpecHandler)
	router.Handle("/swagger/*", swagger.Handler())

	router.Route("/auth", func(r chi.Router) {
		r.Get("/login", h.Auth.LoginInfo)
		r.Post("/login", h.Auth.Login)
		r.Post("/refresh", h.Auth.RefreshToken)
		r.Post("/logout", h.Auth.Logout)
	})

	g := h.Guards
	router.With(g.LoginRequired).Get("/dashboard", h.Projects.ListProjects)

	router.Route("/admin", func(r chi.Router) {
		r.Use(g.RoleRequired(access.RoleAdmin))
		r.Post("/users", h.Users.CreateUser)
		r.Post("/users/{user_id}/deactivate", h.Users.DeactivateUser)
		r.Put("/users/{user_id}/role", h.Users.ChangeUserRole)
		r.Get("/roles", h.Roles.ListRoles)
		r.Put("/roles/default", h.Roles.SetDefaultRole)
	})

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health.healthCheckHandler)
		r.Get("/ping", h.Health.pingHandler)

		r.Group(func(pr chi.Router) {
			pr.Use(h.Auth.RequireAuth)

			pr.Get("/users/me", h.Users.GetCurrentUser)
			pr.Get("/roles", h.Roles.ListRoles)

			pr.Get("/projects", h.Projects.ListProjects)
			pr.With(g.CapabilityRequired(access.CapCreate)).Post("/projects", h.Projects.CreateProject)

			pr.Route("/projects/{project_id}", func(prj chi.Router) {
				prj.With(g.RoleRequired(access.RoleAdmin)).Delete("/", h.Projects.DeleteProject)

				prj.Group(func(m chi.Router) {
					m.Use(g.ProjectAccessRequired)
					m.Get("/", h.Projects.GetProject)
					m.Get("/members", h.Members.ListMembers)
					m.With(g.CapabilityRequired(access.CapEdit)).Post("/members", h.Members.AddMember)
					m.With(g.CapabilityRequired(access.CapEdit)).Delete("/members/{user_id}", h.Members.RemoveMember)
				})
			})
		})
	})
}
