package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	userDatamodel "github.com/fieldline/fieldline/internal/core/datamodel/user"
	"github.com/fieldline/fieldline/internal/user"
	"golang.org/x/crypto/bcrypt"
)

// UserStore is the slice of the user repository authentication needs.
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*userDatamodel.User, error)
	GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error)
	TouchLastSeen(ctx context.Context, id int64, at time.Time) error
}

// Service is the main auth service with dependencies
type Service struct {
	users          UserStore
	tokenGenerator TokenGenerator
	logger         *slog.Logger
}

func NewService(users UserStore, tokenGen TokenGenerator, logger *slog.Logger) *Service {
	return &Service{
		users:          users,
		tokenGenerator: tokenGen,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns tokens
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if err := dto.Validate(); err != nil {
		return AuthTokens{}, err
	}

	u, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(dto.Email)))
	if errors.Is(err, user.ErrNotFound) {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(dto.Password)); err != nil {
		return AuthTokens{}, internal.ErrInvalidCredentials
	}
	if !u.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	tokens, err := s.issue(u)
	if err != nil {
		return AuthTokens{}, err
	}
	s.touch(ctx, u.ID)
	return tokens, nil
}

// RefreshTokens validates refresh token and returns new tokens
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string) (AuthTokens, error) {
	claims, err := s.tokenGenerator.ValidateRefreshToken(refreshToken)
	if err != nil {
		return AuthTokens{}, tokenError(err)
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, user.ErrNotFound) {
		return AuthTokens{}, internal.ErrInvalidToken
	}
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to load user", err)
	}
	if !u.IsActive {
		return AuthTokens{}, internal.ErrUserInactive
	}

	tokens, err := s.issue(u)
	if err != nil {
		return AuthTokens{}, err
	}
	s.touch(ctx, u.ID)
	return tokens, nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims, err := s.tokenGenerator.ValidateAccessToken(tokenString)
	if err != nil {
		return nil, tokenError(err)
	}
	return claims, nil
}

// GetPrincipal loads the user behind a token. Role and active state are read
// fresh so that a deactivation takes effect on the next request.
func (s *Service) GetPrincipal(ctx context.Context, userID int64) (*access.Principal, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, user.ErrNotFound) {
		return nil, internal.ErrUserNotFound
	}
	if err != nil {
		return nil, internal.NewInternalError("failed to load user", err)
	}
	return user.FromDataModel(u).Principal(), nil
}

func (s *Service) issue(u *userDatamodel.User) (AuthTokens, error) {
	accessToken, err := s.tokenGenerator.GenerateAccessToken(u.ID, u.Email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign access token", err)
	}
	refreshToken, err := s.tokenGenerator.GenerateRefreshToken(u.ID, u.Email)
	if err != nil {
		return AuthTokens{}, internal.NewInternalError("failed to sign refresh token", err)
	}
	return AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tokenGenerator.AccessTTL().Seconds()),
	}, nil
}

func (s *Service) touch(ctx context.Context, userID int64) {
	if err := s.users.TouchLastSeen(ctx, userID, time.Now().UTC()); err != nil {
		s.logger.WarnContext(ctx, "failed to update last seen", "user_id", userID, "error", err)
	}
}

func tokenError(err error) error {
	if errors.Is(err, ErrTokenExpired) {
		return internal.ErrTokenExpired
	}
	return internal.ErrInvalidToken
}
