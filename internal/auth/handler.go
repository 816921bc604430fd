package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/transport"
	"github.com/fieldline/fieldline/pkg/logger"
)

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
	GetPrincipal(ctx context.Context, userID int64) (*access.Principal, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
	// SecureCookie marks the session cookie Secure. Off for plain http in development.
	SecureCookie bool
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI, secureCookie bool) *Handler {
	return &Handler{
		BaseHandler:  baseHandler,
		Service:      svc,
		SecureCookie: secureCookie,
	}
}

// Login handles POST /auth/login. The access token is returned in the body and
// also set as the session cookie for browser clients.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteAppError(w, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidRequest))
		return
	}

	tokens, err := h.Service.Authenticate(r.Context(), dto)
	if err != nil {
		h.Logger.InfoContext(r.Context(), "authentication failed", "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.setSession(w, tokens.AccessToken, time.Duration(tokens.ExpiresIn)*time.Second)
	h.WriteJSON(w, http.StatusOK, tokens)
}

// LoginInfo handles GET /auth/login, where guards send anonymous browsers.
// It echoes the return-to marker so the client can resume after signing in.
func (h *Handler) LoginInfo(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, LoginInfoResponse{
		Message: "POST email and password to this endpoint",
		Next:    r.URL.Query().Get(NextParam),
	})
}

func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var dto RefreshTokenDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteAppError(w, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidRequest))
		return
	}
	if err := dto.Validate(); err != nil {
		h.WriteAppError(w, err)
		return
	}

	tokens, err := h.Service.RefreshTokens(r.Context(), dto.RefreshToken)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.setSession(w, tokens.AccessToken, time.Duration(tokens.ExpiresIn)*time.Second)
	h.WriteJSON(w, http.StatusOK, tokens)
}

// Logout clears the session cookie. Tokens are stateless and expire on their own.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     transport.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setSession(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     transport.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// Authenticate resolves the bearer token or session cookie into a principal on
// the request context. Requests without a usable token continue anonymously;
// guards decide what anonymous callers may do.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.ExtractToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := h.Service.ValidateAccessToken(token)
		if err != nil {
			h.Logger.DebugContext(r.Context(), "ignoring unusable token", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		p, err := h.Service.GetPrincipal(r.Context(), claims.UserID)
		if err != nil {
			h.Logger.WarnContext(r.Context(), "failed to load principal", "user_id", claims.UserID, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !p.Active {
			next.ServeHTTP(w, r)
			return
		}

		ctx := access.WithPrincipal(r.Context(), p)
		ctx = internal.ContextWithUserID(ctx, p.ID)
		ctx = logger.With(ctx, "user_id", p.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous API calls with 401.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := access.PrincipalFromContext(r.Context()); !ok {
			h.WriteAppError(w, internal.ErrUnauthorizedAccess)
			return
		}
		next.ServeHTTP(w, r)
	})
}
