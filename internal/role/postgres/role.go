package postgres

import (
	"context"
	"errors"

	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
	"github.com/fieldline/fieldline/internal/role"
	"gorm.io/gorm"
)

type RoleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) role.RepositoryAPI {
	return &RoleRepository{db: db}
}

func (r *RoleRepository) GetByName(ctx context.Context, name string) (*userDatamodel.Role, error) {
	var row userDatamodel.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, role.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *RoleRepository) GetDefault(ctx context.Context) (*userDatamodel.Role, error) {
	var row userDatamodel.Role
	err := r.db.WithContext(ctx).Where("is_default = ?", true).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, role.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]*userDatamodel.Role, error) {
	var rows []*userDatamodel.Role
	err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *RoleRepository) Save(ctx context.Context, row *userDatamodel.Role) error {
	return r.db.WithContext(ctx).Save(row).Error
}

func (r *RoleRepository) SetDefault(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var target userDatamodel.Role
		if err := tx.Where("name = ?", name).First(&target).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return role.ErrNotFound
			}
			return err
		}
		if err := tx.Model(&userDatamodel.Role{}).
			Where("id <> ?", target.ID).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&target).Update("is_default", true).Error
	})
}
