package role

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fieldline/fieldline/internal"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
)

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// InsertRoles creates missing seed roles and resets the capabilities of
// existing ones. Running it twice leaves the table unchanged.
func (s *Service) InsertRoles(ctx context.Context) error {
	for _, seed := range Seeds {
		r, err := s.repo.GetByName(ctx, seed.Name)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("lookup role %s: %w", seed.Name, err)
		}
		if r == nil {
			r = &userDatamodel.Role{Name: seed.Name}
		}
		r.Permissions = int(seed.Capabilities)
		r.Default = false
		if err := s.repo.Save(ctx, r); err != nil {
			return fmt.Errorf("save role %s: %w", seed.Name, err)
		}
	}

	if err := s.repo.SetDefault(ctx, DefaultRoleName); err != nil {
		return fmt.Errorf("set default role: %w", err)
	}

	s.logger.Info("roles inserted", "count", len(Seeds), "default", DefaultRoleName)
	return nil
}

func (s *Service) SetDefault(ctx context.Context, name string) error {
	err := s.repo.SetDefault(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return internal.ErrRoleNotFound
	}
	if err != nil {
		return internal.NewInternalError("failed to set default role", err)
	}
	s.logger.Info("default role changed", "role", name)
	return nil
}

func (s *Service) GetDefault(ctx context.Context) (*Role, error) {
	r, err := s.repo.GetDefault(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, internal.ErrRoleNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to get default role", err)
	}
	return FromDataModel(r), nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*Role, error) {
	r, err := s.repo.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, internal.ErrRoleNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to get role", err)
	}
	return FromDataModel(r), nil
}

func (s *Service) List(ctx context.Context) ([]*Role, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, internal.NewInternalError("failed to list roles", err)
	}
	out := make([]*Role, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromDataModel(r))
	}
	return out, nil
}
