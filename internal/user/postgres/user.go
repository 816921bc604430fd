package postgres

import (
	"context"
	"errors"
	"time"

	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
	"github.com/fieldline/fieldline/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).Preload("Role").Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var row userDatamodel.User
	err := r.db.WithContext(ctx).Preload("Role").Where("email = ?", email).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, user.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Omit("Role").Create(u).Error
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	return r.updateColumn(ctx, id, "is_active", active)
}

func (r *UserRepository) SetRole(ctx context.Context, id, roleID int64) error {
	return r.updateColumn(ctx, id, "role_id", roleID)
}

func (r *UserRepository) TouchLastSeen(ctx context.Context, id int64, at time.Time) error {
	return r.updateColumn(ctx, id, "last_seen", at)
}

func (r *UserRepository) updateColumn(ctx context.Context, id int64, column string, value interface{}) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}
