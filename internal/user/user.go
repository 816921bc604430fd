package user

import (
	"context"
	"errors"
	"time"

	"github.com/fieldline/fieldline/internal/access"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
)

type User struct {
	ID           int64             `json:"id"`
	Email        string            `json:"email"`
	Name         string            `json:"name"`
	PasswordHash string            `json:"-"`
	Role         string            `json:"role"`
	Capabilities access.Capability `json:"capabilities"`
	IsActive     bool              `json:"is_active"`
	LastSeen     *time.Time        `json:"last_seen,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (u *User) Principal() *access.Principal {
	return &access.Principal{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		Role:         u.Role,
		Capabilities: u.Capabilities,
		Active:       u.IsActive,
	}
}

var ErrNotFound = errors.New("user not found")

type RepositoryAPI interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	Create(ctx context.Context, u *userDatamodel.User) error
	SetActive(ctx context.Context, id int64, active bool) error
	SetRole(ctx context.Context, id, roleID int64) error
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
}

func FromDataModel(u *userDatamodel.User) *User {
	out := &User{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		LastSeen:     u.LastSeen,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if u.Role != nil {
		out.Role = u.Role.Name
		out.Capabilities = access.FromMask(u.Role.Permissions)
	}
	return out
}
