package user

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/transport"
)

type ServiceAPI interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	Create(ctx context.Context, dto CreateUserDTO) (*User, error)
	Deactivate(ctx context.Context, userID int64) error
	ChangeRole(ctx context.Context, userID int64, roleName string) (*User, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     svc,
	}
}

// GetCurrentUser handles GET /api/v1/users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrUnauthorizedAccess)
		return
	}

	u, err := h.Service.GetByID(r.Context(), p.ID)
	if err != nil {
		h.Logger.Error("GetCurrentUser: service GetByID failed", "user_id", p.ID, "error", err)
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, u)
}

// CreateUser handles POST /admin/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var dto CreateUserDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteAppError(w, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidRequest))
		return
	}

	u, err := h.Service.Create(r.Context(), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, u)
}

// DeactivateUser handles POST /admin/users/{user_id}/deactivate
func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ParseIDParam(r, "user_id")
	if !ok {
		h.WriteAppError(w, internal.NewValidationError("user_id must be a positive integer", internal.ErrCodeInvalidRequest))
		return
	}

	if err := h.Service.Deactivate(r.Context(), id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ChangeUserRole handles PUT /admin/users/{user_id}/role
func (h *Handler) ChangeUserRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ParseIDParam(r, "user_id")
	if !ok {
		h.WriteAppError(w, internal.NewValidationError("user_id must be a positive integer", internal.ErrCodeInvalidRequest))
		return
	}

	var dto ChangeRoleDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.Role == "" {
		h.WriteAppError(w, internal.NewValidationError("role is required", internal.ErrCodeInvalidRole))
		return
	}

	u, err := h.Service.ChangeRole(r.Context(), id, dto.Role)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, u)
}
