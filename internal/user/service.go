package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/core/common/validation"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
	"github.com/fieldline/fieldline/internal/core/events"
	"github.com/fieldline/fieldline/internal/role"
	"golang.org/x/crypto/bcrypt"
)

// RoleLookup resolves global roles for new and re-assigned users.
type RoleLookup interface {
	GetByName(ctx context.Context, name string) (*role.Role, error)
	GetDefault(ctx context.Context) (*role.Role, error)
}

type Service struct {
	repo       RepositoryAPI
	roles      RoleLookup
	publisher  events.Publisher
	bcryptCost int
	logger     *slog.Logger
}

func NewService(repo RepositoryAPI, roles RoleLookup, publisher events.Publisher, bcryptCost int, logger *slog.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		repo:       repo,
		roles:      roles,
		publisher:  publisher,
		bcryptCost: bcryptCost,
		logger:     logger,
	}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil, internal.ErrUserNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to get user", err)
	}
	return FromDataModel(u), nil
}

// Create registers a user. Without an explicit role the default role is
// assigned.
func (s *Service) Create(ctx context.Context, dto CreateUserDTO) (*User, error) {
	dto.Email = strings.ToLower(strings.TrimSpace(dto.Email))

	v := validation.NewValidator()
	v.Field("email", dto.Email).Required().Email().MaxLength(120)
	v.Field("name", dto.Name).Required().MaxLength(120)
	v.Field("password", dto.Password).Required().MinLength(8)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, dto.Email); err == nil {
		return nil, internal.NewConflictError("email already registered", internal.ErrCodeEmailTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, internal.NewInternalError("failed to check email", err)
	}

	r, err := s.resolveRole(ctx, dto.Role)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(dto.Password), s.bcryptCost)
	if err != nil {
		return nil, internal.NewInternalError("failed to hash password", err)
	}

	row := &userDatamodel.User{
		Email:        dto.Email,
		Name:         dto.Name,
		PasswordHash: string(hash),
		RoleID:       &r.ID,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, internal.NewInternalError("failed to create user", err)
	}

	s.logger.InfoContext(ctx, "user created", "user_id", row.ID, "role", r.Name)

	created, err := s.repo.GetByID(ctx, row.ID)
	if err != nil {
		return nil, internal.NewInternalError("failed to reload user", err)
	}
	return FromDataModel(created), nil
}

func (s *Service) resolveRole(ctx context.Context, name string) (*role.Role, error) {
	if name == "" {
		r, err := s.roles.GetDefault(ctx)
		if err != nil {
			return nil, fmt.Errorf("default role: %w", err)
		}
		return r, nil
	}
	return s.roles.GetByName(ctx, name)
}

// Deactivate disables the account and drops every cached access decision
// for it.
func (s *Service) Deactivate(ctx context.Context, userID int64) error {
	err := s.repo.SetActive(ctx, userID, false)
	if errors.Is(err, ErrNotFound) {
		return internal.ErrUserNotFound
	}
	if err != nil {
		return internal.NewInternalError("failed to deactivate user", err)
	}

	s.logger.InfoContext(ctx, "user deactivated", "user_id", userID)
	return s.publish(ctx, events.NewUserAccessChangedEvent(userID, events.UserDeactivated))
}

// ChangeRole moves the user to another global role. Cached decisions for the
// user are dropped because admin capability may have changed.
func (s *Service) ChangeRole(ctx context.Context, userID int64, roleName string) (*User, error) {
	r, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		return nil, err
	}

	err = s.repo.SetRole(ctx, userID, r.ID)
	if errors.Is(err, ErrNotFound) {
		return nil, internal.ErrUserNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to change role", err)
	}

	s.logger.InfoContext(ctx, "user role changed", "user_id", userID, "role", r.Name)
	if err := s.publish(ctx, events.NewUserAccessChangedEvent(userID, events.UserRoleChanged)); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, userID)
}

func (s *Service) TouchLastSeen(ctx context.Context, userID int64) error {
	return s.repo.TouchLastSeen(ctx, userID, time.Now().UTC())
}

func (s *Service) publish(ctx context.Context, event events.Event) error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishSync(ctx, event); err != nil {
		return internal.NewInternalError("failed to invalidate access cache", err)
	}
	return nil
}
