package project

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/transport"
)

type ServiceAPI interface {
	ListForPrincipal(ctx context.Context, p *access.Principal) ([]*Project, error)
	GetByID(ctx context.Context, id int64) (*Project, error)
	Create(ctx context.Context, p *access.Principal, dto CreateProjectDTO) (*Project, error)
	Delete(ctx context.Context, p *access.Principal, id int64) error
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

// ListProjects handles GET /api/v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())

	projects, err := h.Service.ListForPrincipal(r.Context(), p)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, ProjectsResponse{Projects: projects})
}

// GetProject handles GET /api/v1/projects/{project_id}. The project id comes
// from the access guard.
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := access.ProjectIDFromContext(r.Context())
	if !ok {
		h.WriteAppError(w, internal.ErrProjectIDRequired)
		return
	}

	proj, err := h.Service.GetByID(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, proj)
}

// CreateProject handles POST /api/v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	p, _ := access.PrincipalFromContext(r.Context())

	var dto CreateProjectDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteAppError(w, internal.NewValidationError("invalid request body", internal.ErrCodeInvalidRequest))
		return
	}

	proj, err := h.Service.Create(r.Context(), p, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, proj)
}

// DeleteProject handles DELETE /api/v1/projects/{project_id}
func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	id, ok := h.ParseIDParam(r, "project_id")
	if !ok {
		h.WriteAppError(w, internal.ErrInvalidProjectID)
		return
	}
	p, _ := access.PrincipalFromContext(r.Context())

	if err := h.Service.Delete(r.Context(), p, id); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
