package project

import (
	"context"
	"errors"
	"time"

	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
)

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Number      string    `json:"number"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

var ErrNotFound = errors.New("project not found")

// CreatorRole is the role-within-project given to whoever creates a project.
const CreatorRole = "project_manager"

var Statuses = []string{
	projectDatamodel.StatusPlanning,
	projectDatamodel.StatusActive,
	projectDatamodel.StatusOnHold,
	projectDatamodel.StatusCompleted,
	projectDatamodel.StatusCancelled,
	projectDatamodel.StatusDelayed,
}

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*projectDatamodel.Project, error)
	ListAll(ctx context.Context) ([]*projectDatamodel.Project, error)
	// ListForUser returns projects where the user has an active membership.
	ListForUser(ctx context.Context, userID int64) ([]*projectDatamodel.Project, error)
	// CreateWithManager inserts the project and makes creatorID its active
	// manager in one transaction.
	CreateWithManager(ctx context.Context, p *projectDatamodel.Project, creatorID int64) error
	// Delete removes the project and its memberships.
	Delete(ctx context.Context, id int64) error
}

func FromDataModel(p *projectDatamodel.Project) *Project {
	return &Project{
		ID:          p.ID,
		Name:        p.Name,
		Number:      p.Number,
		Description: p.Description,
		Status:      p.Status,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func FromDataModels(rows []*projectDatamodel.Project) []*Project {
	out := make([]*Project, 0, len(rows))
	for _, p := range rows {
		out = append(out, FromDataModel(p))
	}
	return out
}
