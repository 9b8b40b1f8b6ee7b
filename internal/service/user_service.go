package service

import (
	"context"
	"errors"

	"labsched/internal/auth"
	"labsched/internal/database"
	"labsched/internal/domain"
	"labsched/internal/models"

	"github.com/rs/zerolog"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords
// so login failures do not reveal which one it was.
var ErrInvalidCredentials = errors.New("invalid credentials")

type UserService struct {
	repo   domain.Repository
	tokens *auth.TokenManager
	logger *zerolog.Logger
}

func NewUserService(repo domain.Repository, tokens *auth.TokenManager, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		tokens: tokens,
		logger: logger,
	}
}

// Login verifies a username/password pair and issues an access token.
func (s *UserService) Login(ctx context.Context, username, password string) (auth.AccessToken, *models.User, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return auth.AccessToken{}, nil, ErrInvalidCredentials
		}
		return auth.AccessToken{}, nil, err
	}

	if !user.IsActive || !auth.VerifyPassword(user.HashedPassword, password) {
		return auth.AccessToken{}, nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return auth.AccessToken{}, nil, err
	}

	s.logger.Info().Str("username", username).Msg("User logged in")
	return token, user, nil
}

// Register creates a new account. Only admins may create users.
func (s *UserService) Register(ctx context.Context, actorID int64, user *models.User, password string) error {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}

	if user.Username == "" {
		return &ValidationError{Field: "username", Reason: "is required"}
	}
	if len(password) < 8 {
		return &ValidationError{Field: "password", Reason: "must be at least 8 characters"}
	}
	switch user.Role {
	case models.RoleAdmin, models.RoleInstructor, models.RoleStudent:
	default:
		return &ValidationError{Field: "role", Reason: "unknown role"}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user.HashedPassword = hash
	user.IsActive = true

	return s.repo.CreateUser(ctx, user)
}

func (s *UserService) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

func (s *UserService) GetAllUsers(ctx context.Context, actorID int64) ([]*models.User, error) {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return s.repo.GetAllUsers(ctx)
}

// SetUserActive enables or disables an account. Admin only. Deactivation
// blocks new logins and reservations but preserves history.
func (s *UserService) SetUserActive(ctx context.Context, actorID, userID int64, active bool) error {
	actor, err := s.repo.GetUserByID(ctx, actorID)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return s.repo.SetUserActive(ctx, userID, active)
}
