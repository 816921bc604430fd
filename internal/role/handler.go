package role

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/core/common/validation"
	"github.com/fieldline/fieldline/internal/transport"
)

type ServiceAPI interface {
	List(ctx context.Context) ([]*Role, error)
	SetDefault(ctx context.Context, name string) error
	GetDefault(ctx context.Context) (*Role, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

// ListRoles handles GET /api/v1/roles
func (h *Handler) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Service.List(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, RolesResponse{Roles: roles})
}

// SetDefaultRole handles PUT /admin/roles/default
func (h *Handler) SetDefaultRole(w http.ResponseWriter, r *http.Request) {
	var dto SetDefaultDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteAppError(w, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidRequest))
		return
	}
	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(64)
	if err := v.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.SetDefault(r.Context(), dto.Name); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	def, err := h.Service.GetDefault(r.Context())
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, def)
}
