package auth

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/transport"
	"github.com/go-chi/chi"
)

// NextParam carries the originally requested URL on the login redirect.
const NextParam = "next"

type AccessChecker interface {
	HasProjectAccess(ctx context.Context, p *access.Principal, projectID int64) bool
}

// Guards wrap handlers with authorization checks. They expect the
// Authenticate middleware to have run first.
type Guards struct {
	*transport.BaseHandler
	checker     AccessChecker
	loginPath   string
	landingPath string
}

func NewGuards(baseHandler *transport.BaseHandler, checker AccessChecker, loginPath, landingPath string) *Guards {
	return &Guards{
		BaseHandler: baseHandler,
		checker:     checker,
		loginPath:   loginPath,
		landingPath: landingPath,
	}
}

// LoginRequired sends anonymous callers to the login page.
func (g *Guards) LoginRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := access.PrincipalFromContext(r.Context()); !ok {
			g.redirectToLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RoleRequired lets through principals whose global role is one of roles, and
// admins. It does not look at project membership.
func (g *Guards) RoleRequired(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := access.PrincipalFromContext(r.Context())
			if !ok {
				g.redirectToLogin(w, r)
				return
			}
			if !p.HasRole(roles...) && !p.IsAdmin() {
				g.Logger.WarnContext(r.Context(), "role not allowed",
					"user_id", p.ID, "role", p.Role, "required_roles", roles, "path", r.URL.Path)
				http.Redirect(w, r, g.landingPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ProjectAccessRequired checks that the caller may see the project named by
// the project_id route parameter, or the project_id query value when the route
// has none. The parsed id is placed on the request context.
func (g *Guards) ProjectAccessRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "project_id")
		if raw == "" {
			raw = r.URL.Query().Get("project_id")
		}
		if raw == "" {
			g.WriteAppError(w, internal.ErrProjectIDRequired)
			return
		}

		projectID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			g.WriteAppError(w, internal.ErrInvalidProjectID)
			return
		}

		p, _ := access.PrincipalFromContext(r.Context())
		if !g.checker.HasProjectAccess(r.Context(), p, projectID) {
			g.WriteAppError(w, internal.ErrProjectAccessDenied)
			return
		}

		next.ServeHTTP(w, r.WithContext(access.WithProjectID(r.Context(), projectID)))
	})
}

// CapabilityRequired rejects principals lacking every bit of c.
func (g *Guards) CapabilityRequired(c access.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := access.PrincipalFromContext(r.Context())
			if !ok {
				g.WriteAppError(w, internal.ErrUnauthorizedAccess)
				return
			}
			if !p.Can(c) {
				g.Logger.WarnContext(r.Context(), "capability missing",
					"user_id", p.ID, "required", c.String(), "has", p.Capabilities.String())
				g.WriteAppError(w, internal.ErrInsufficientRole)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guards) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := g.loginPath + "?" + url.Values{NextParam: {r.URL.RequestURI()}}.Encode()
	http.Redirect(w, r, target, http.StatusFound)
}
