package membership

import (
	"context"
	"errors"
	"time"

	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
)

// Member is a user's place on a project team.
type Member struct {
	ID        int64     `json:"id"`
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	AddedBy   *int64    `json:"added_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var ErrMemberNotFound = errors.New("team member not found")

type RepositoryAPI interface {
	// Get returns the (project, user) row whether active or not.
	Get(ctx context.Context, projectID, userID int64) (*projectDatamodel.ProjectTeamMember, error)
	Save(ctx context.Context, m *projectDatamodel.ProjectTeamMember) error
	ListActive(ctx context.Context, projectID int64) ([]*projectDatamodel.ProjectTeamMember, error)
	ProjectExists(ctx context.Context, projectID int64) (bool, error)
	UserExists(ctx context.Context, userID int64) (bool, error)
}

func FromDataModel(m *projectDatamodel.ProjectTeamMember) *Member {
	return &Member{
		ID:        m.ID,
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Role:      m.Role,
		IsActive:  m.IsActive,
		AddedBy:   m.AddedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
