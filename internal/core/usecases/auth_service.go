package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/ports"
)

const (
	maxUsernameLen = 150
	// bcrypt ignores input past 72 bytes.
	maxPasswordBytes = 72
)

// AuthService handles registration and credential exchange.
type AuthService struct {
	users  ports.UserRepository
	tokens ports.TokenService
	cost   int
}

// NewAuthService creates a new AuthService.
func NewAuthService(users ports.UserRepository, tokens ports.TokenService) *AuthService {
	return &AuthService{users: users, tokens: tokens, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithCost(cost int) *AuthService {
	s.cost = cost
	return s
}

// Register creates an account. The username is trimmed and must be unique
// case-insensitively.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.Invalid("", "username and password are required")
	}
	if utf8.RuneCountInString(username) > maxUsernameLen {
		return nil, domain.Invalid("username", "must be at most 150 characters")
	}
	if len(password) > maxPasswordBytes {
		return nil, domain.Invalid("password", "must be at most 72 bytes")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("username %q is taken: %w", username, domain.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login exchanges credentials for an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.TokenPair, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.TokenPair{}, domain.Invalid("", "username and password are required")
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.TokenPair{}, domain.ErrUnauthenticated
		}
		return domain.TokenPair{}, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.TokenPair{}, domain.ErrUnauthenticated
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token. The user is
// reloaded so deleted accounts and staff changes take effect.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return "", domain.Invalid("refresh", "this field is required")
	}
	userID, err := s.tokens.RefreshSubject(refreshToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.ErrUnauthenticated
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	return access, nil
}

// Authenticate resolves a bearer access token into an actor.
func (s *AuthService) Authenticate(accessToken string) (domain.Actor, error) {
	actor, err := s.tokens.Authenticate(accessToken)
	if err != nil {
		return domain.Anonymous, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	return actor, nil
}

// CreateAdmin registers a staff account, or promotes an existing one when
// password matches its stored hash.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.Register(ctx, username, password)
	if errors.Is(err, domain.ErrConflict) {
		user, err = s.users.GetByUsername(ctx, strings.TrimSpace(username))
		if err != nil {
			return nil, fmt.Errorf("get user: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return nil, fmt.Errorf("user %q exists and the password does not match: %w", user.Username, domain.ErrConflict)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := s.users.SetStaff(ctx, user.ID, true); err != nil {
		return nil, fmt.Errorf("promote user: %w", err)
	}
	user.IsStaff = true
	return user, nil
}
