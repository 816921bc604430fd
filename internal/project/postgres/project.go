package postgres

import (
	"context"
	"errors"

	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
	"github.com/fieldline/fieldline/internal/project"
	"gorm.io/gorm"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

var _ project.RepositoryAPI = (*ProjectRepository)(nil)

func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*projectDatamodel.Project, error) {
	var row projectDatamodel.Project
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, project.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Exists reports whether a project with id is present.
func (r *ProjectRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&projectDatamodel.Project{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *ProjectRepository) ListAll(ctx context.Context) ([]*projectDatamodel.Project, error) {
	var rows []*projectDatamodel.Project
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&rows).Error
	return rows, err
}

func (r *ProjectRepository) ListForUser(ctx context.Context, userID int64) ([]*projectDatamodel.Project, error) {
	var rows []*projectDatamodel.Project
	err := r.db.WithContext(ctx).
		Joins("JOIN project_team_members ptm ON ptm.project_id = projects.id").
		Where("ptm.user_id = ? AND ptm.is_active = ?", userID, true).
		Order("projects.created_at DESC, projects.id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *ProjectRepository) CreateWithManager(ctx context.Context, p *projectDatamodel.Project, creatorID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return tx.Create(&projectDatamodel.ProjectTeamMember{
			ProjectID: p.ID,
			UserID:    creatorID,
			Role:      project.CreatorRole,
			IsActive:  true,
			AddedBy:   &creatorID,
		}).Error
	})
}

func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", id).Delete(&projectDatamodel.ProjectTeamMember{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&projectDatamodel.Project{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return project.ErrNotFound
		}
		return nil
	})
}
