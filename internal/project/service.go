package project

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/core/common/validation"
	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
	"github.com/fieldline/fieldline/internal/core/events"
)

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// ListForPrincipal returns every project for admins and the projects with an
// active membership for everyone else.
func (s *Service) ListForPrincipal(ctx context.Context, p *access.Principal) ([]*Project, error) {
	if p == nil {
		return nil, internal.ErrUnauthorizedAccess
	}

	var (
		rows []*projectDatamodel.Project
		err  error
	)
	if p.IsAdmin() {
		rows, err = s.repo.ListAll(ctx)
	} else {
		rows, err = s.repo.ListForUser(ctx, p.ID)
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to list projects", err)
	}
	return FromDataModels(rows), nil
}

func (s *Service) GetByID(ctx context.Context, id int64) (*Project, error) {
	row, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, internal.ErrProjectNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to get project", err)
	}
	return FromDataModel(row), nil
}

// Create stores a new project with the creator as its project manager.
func (s *Service) Create(ctx context.Context, p *access.Principal, dto CreateProjectDTO) (*Project, error) {
	if p == nil {
		return nil, internal.ErrUnauthorizedAccess
	}
	if dto.Status == "" {
		dto.Status = projectDatamodel.StatusPlanning
	}

	v := validation.NewValidator()
	v.Field("name", dto.Name).Required().MaxLength(100)
	v.Field("number", dto.Number).Required().MaxLength(64)
	v.Field("status", dto.Status).OneOf(Statuses, internal.ErrCodeValidationFailed)
	if err := v.Validate(); err != nil {
		return nil, err
	}

	creator := p.ID
	row := &projectDatamodel.Project{
		Name:        dto.Name,
		Number:      dto.Number,
		Description: dto.Description,
		Status:      dto.Status,
		CreatedBy:   &creator,
	}
	if err := s.repo.CreateWithManager(ctx, row, p.ID); err != nil {
		return nil, internal.NewInternalError("failed to create project", err)
	}

	s.logger.InfoContext(ctx, "project created", "project_id", row.ID, "user_id", p.ID)

	// a denial for this pair may already be cached from an earlier request
	if err := s.publisher.PublishSync(ctx, events.NewMembershipChangedEvent(row.ID, p.ID, events.MembershipAdded)); err != nil {
		return nil, internal.NewInternalError("failed to invalidate access cache", err)
	}
	return FromDataModel(row), nil
}

// Delete removes the project and clears every cached decision for it.
func (s *Service) Delete(ctx context.Context, p *access.Principal, id int64) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internal.NewInternalError("failed to delete project", err)
	}

	var by int64
	if p != nil {
		by = p.ID
	}
	s.logger.InfoContext(ctx, "project deleted", "project_id", id, "user_id", by)

	if err := s.publisher.PublishSync(ctx, events.NewProjectDeletedEvent(id, by)); err != nil {
		return internal.NewInternalError("failed to invalidate access cache", err)
	}
	return nil
}
