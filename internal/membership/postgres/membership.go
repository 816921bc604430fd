package postgres

import (
	"context"
	"errors"

	"github.com/fieldline/fieldline/internal/access"
	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
	"github.com/fieldline/fieldline/internal/membership"
	"gorm.io/gorm"
)

// MembershipRepository stores project team rows. It also backs the access
// checker's membership lookups.
type MembershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

var (
	_ membership.RepositoryAPI = (*MembershipRepository)(nil)
	_ access.MembershipStore   = (*MembershipRepository)(nil)
)

func (r *MembershipRepository) Get(ctx context.Context, projectID, userID int64) (*projectDatamodel.ProjectTeamMember, error) {
	var row projectDatamodel.ProjectTeamMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND user_id = ?", projectID, userID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, membership.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *MembershipRepository) Save(ctx context.Context, m *projectDatamodel.ProjectTeamMember) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *MembershipRepository) ListActive(ctx context.Context, projectID int64) ([]*projectDatamodel.ProjectTeamMember, error) {
	var rows []*projectDatamodel.ProjectTeamMember
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_active = ?", projectID, true).
		Order("id").
		Find(&rows).Error
	return rows, err
}

func (r *MembershipRepository) ActiveMembershipExists(ctx context.Context, projectID, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&projectDatamodel.ProjectTeamMember{}).
		Where("project_id = ? AND user_id = ? AND is_active = ?", projectID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *MembershipRepository) ProjectExists(ctx context.Context, projectID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&projectDatamodel.Project{}).Where("id = ?", projectID).Count(&count).Error
	return count > 0, err
}

func (r *MembershipRepository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", userID).Count(&count).Error
	return count > 0, err
}
