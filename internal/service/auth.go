package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arcadehub/arcade/internal/auth"
	"github.com/arcadehub/arcade/internal/config"
	"github.com/arcadehub/arcade/internal/domain"
)

// UserStore is the persistent state the auth service depends on
type UserStore interface {
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AuthService handles account registration and login
type AuthService struct {
	store  UserStore
	tokens *auth.TokenManager
	roles  *config.RolesConfig
	logger *slog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(store UserStore, tokens *auth.TokenManager, roles *config.RolesConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:  store,
		tokens: tokens,
		roles:  roles,
		logger: logger,
	}
}

// Register creates an account with the default role and signs the user in
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Name == "" || req.Email == "" {
		return nil, fmt.Errorf("%w: name and email are required", domain.ErrInvalidRequest)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidRequest)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.store.CreateUser(ctx, domain.User{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         s.roles.DefaultRole,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(&user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return &domain.AuthResult{Token: token, User: user}, nil
}

// Login authenticates an existing account and issues a token
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResult{Token: token, User: *user}, nil
}
