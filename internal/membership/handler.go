package membership

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/transport"
)

type ServiceAPI interface {
	AddMember(ctx context.Context, projectID, userID int64, role string, addedBy int64) (*Member, error)
	RemoveMember(ctx context.Context, projectID, userID int64) error
	ListMembers(ctx context.Context, projectID int64) ([]*Member, error)
}

// Handler serves the team routes under /api/v1/projects/{project_id}/members.
// Each route sits behind the project access guard, which places the project
// id on the request context.
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

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectID, ok := access.ProjectIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrProjectIDRequired)
		return
	}

	members, err := h.Service.ListMembers(r.Context(), projectID)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, MembersResponse{Members: members})
}

func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := access.ProjectIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrProjectIDRequired)
		return
	}

	var dto AddMemberDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil || dto.UserID <= 0 {
		h.WriteAppError(w, internal.NewValidationError("user_id and role are required", internal.ErrCodeInvalidRequest))
		return
	}

	var addedBy int64
	if p, ok := access.PrincipalFromContext(r.Context()); ok {
		addedBy = p.ID
	}

	m, err := h.Service.AddMember(r.Context(), projectID, dto.UserID, dto.Role, addedBy)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, m)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectID, ok := access.ProjectIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrProjectIDRequired)
		return
	}
	userID, ok := h.ParseIDParam(r, "user_id")
	if !ok {
		h.WriteAppError(w, internal.NewValidationError("user_id must be a positive integer", internal.ErrCodeInvalidRequest))
		return
	}

	if err := h.Service.RemoveMember(r.Context(), projectID, userID); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
