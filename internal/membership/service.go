package membership

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/core/common/validation"
	projectDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/project"
	"github.com/fieldline/fieldline/internal/core/events"
)

var errMemberAlreadyExists = internal.NewConflictError("User is already a member of this project", internal.ErrCodeMemberAlreadyExists)

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// AddMember puts userID on the project team, reactivating a previous
// membership row when one exists.
func (s *Service) AddMember(ctx context.Context, projectID, userID int64, role string, addedBy int64) (*Member, error) {
	if err := validation.ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	if err := validation.ValidateMemberRole(role); err != nil {
		return nil, err
	}
	if err := s.requireExisting(ctx, projectID, userID); err != nil {
		return nil, err
	}

	row, err := s.repo.Get(ctx, projectID, userID)
	switch {
	case errors.Is(err, ErrMemberNotFound):
		row = &projectDatamodel.ProjectTeamMember{ProjectID: projectID, UserID: userID}
	case err != nil:
		return nil, internal.NewInternalError("failed to load team member", err)
	case row.IsActive:
		return nil, errMemberAlreadyExists
	}

	row.Role = role
	row.IsActive = true
	if addedBy > 0 {
		row.AddedBy = &addedBy
	}
	if err := s.repo.Save(ctx, row); err != nil {
		return nil, internal.NewInternalError("failed to save team member", err)
	}

	s.logger.InfoContext(ctx, "team member added", "project_id", projectID, "user_id", userID, "role", role)

	if err := s.publisher.PublishSync(ctx, events.NewMembershipChangedEvent(projectID, userID, events.MembershipAdded)); err != nil {
		return nil, internal.NewInternalError("failed to invalidate access cache", err)
	}
	return FromDataModel(row), nil
}

// RemoveMember deactivates the membership. The row is kept so it can be
// reactivated later.
func (s *Service) RemoveMember(ctx context.Context, projectID, userID int64) error {
	row, err := s.repo.Get(ctx, projectID, userID)
	if errors.Is(err, ErrMemberNotFound) || err == nil && !row.IsActive {
		return internal.ErrMemberNotFound
	}
	if err != nil {
		return internal.NewInternalError("failed to load team member", err)
	}

	row.IsActive = false
	if err := s.repo.Save(ctx, row); err != nil {
		return internal.NewInternalError("failed to save team member", err)
	}

	s.logger.InfoContext(ctx, "team member removed", "project_id", projectID, "user_id", userID)

	if err := s.publisher.PublishSync(ctx, events.NewMembershipChangedEvent(projectID, userID, events.MembershipRemoved)); err != nil {
		return internal.NewInternalError("failed to invalidate access cache", err)
	}
	return nil
}

func (s *Service) ListMembers(ctx context.Context, projectID int64) ([]*Member, error) {
	rows, err := s.repo.ListActive(ctx, projectID)
	if err != nil {
		return nil, internal.NewInternalError("failed to list team members", err)
	}
	out := make([]*Member, 0, len(rows))
	for _, r := range rows {
		out = append(out, FromDataModel(r))
	}
	return out, nil
}

func (s *Service) requireExisting(ctx context.Context, projectID, userID int64) error {
	ok, err := s.repo.ProjectExists(ctx, projectID)
	if err != nil {
		return internal.NewInternalError("failed to load project", err)
	}
	if !ok {
		return internal.ErrProjectNotFound
	}

	ok, err = s.repo.UserExists(ctx, userID)
	if err != nil {
		return internal.NewInternalError("failed to load user", err)
	}
	if !ok {
		return internal.ErrUserNotFound
	}
	return nil
}
