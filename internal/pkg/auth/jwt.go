// Package auth issues and validates the HS256 bearer tokens of the API.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// Token type constants for the typ claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// Default token lifetimes.
const (
	AccessTokenExpiry  = 15 * time.Minute
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// DefaultLeeway tolerates small clock skew between issuers and validators.
const DefaultLeeway = 30 * time.Second

var (
	// ErrInvalidToken is returned when token validation fails.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
	// ErrWrongTokenType is returned when a refresh token is used as an access token or vice versa.
	ErrWrongTokenType = errors.New("wrong token type")
	// ErrEmptyUserID is returned when the user has no id.
	ErrEmptyUserID = errors.New("userID cannot be empty")
)

// Claims are the JWT claims of both token types.
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
	Staff    bool   `json:"staff,omitempty"`
	Type     string `json:"typ"`
}

// JWTService implements ports.TokenService. Tokens are signed with the
// current secret and accepted under either the current or the previous one,
// so secrets can be rotated without logging everyone out.
type JWTService struct {
	currentSecret  []byte
	previousSecret []byte
	accessTTL      time.Duration
	refreshTTL     time.Duration
	leeway         time.Duration
	now            func() time.Time
}

// NewJWTService creates a JWTService. previousSecret may be empty. Zero TTLs
// fall back to the defaults.
func NewJWTService(currentSecret, previousSecret string, accessTTL, refreshTTL time.Duration) *JWTService {
	svc := &JWTService{
		currentSecret: []byte(currentSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	if svc.accessTTL <= 0 {
		svc.accessTTL = AccessTokenExpiry
	}
	if svc.refreshTTL <= 0 {
		svc.refreshTTL = RefreshTokenExpiry
	}
	return svc
}

func (s *JWTService) sign(user *domain.User, typ string, ttl time.Duration) (string, error) {
	if user == nil || user.ID == "" {
		return "", ErrEmptyUserID
	}
	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: typ,
	}
	if typ == TokenTypeAccess {
		claims.Username = user.Username
		claims.Staff = user.IsStaff
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.currentSecret)
}

// IssueAccess creates an access token for user.
func (s *JWTService) IssueAccess(user *domain.User) (string, error) {
	return s.sign(user, TokenTypeAccess, s.accessTTL)
}

// IssuePair creates an access and a refresh token for user.
func (s *JWTService) IssuePair(user *domain.User) (domain.TokenPair, error) {
	access, err := s.sign(user, TokenTypeAccess, s.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	refresh, err := s.sign(user, TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.TokenPair{Access: access, Refresh: refresh}, nil
}

// RefreshSubject validates a refresh token and returns its subject.
func (s *JWTService) RefreshSubject(token string) (string, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return "", err
	}
	if claims.Type != TokenTypeRefresh {
		return "", ErrWrongTokenType
	}
	return claims.Subject, nil
}

// Authenticate validates an access token and returns the actor it names.
func (s *JWTService) Authenticate(token string) (domain.Actor, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return domain.Anonymous, err
	}
	if claims.Type != TokenTypeAccess {
		return domain.Anonymous, ErrWrongTokenType
	}
	return domain.Actor{UserID: claims.Subject, Username: claims.Username, Staff: claims.Staff}, nil
}

// ValidateToken parses and validates a token of either type, trying the
// current secret before the previous one.
func (s *JWTService) ValidateToken(token string) (*Claims, error) {
	claims, err := s.parse(token, s.currentSecret)
	if err == nil {
		return claims, nil
	}
	if s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(token, s.previousSecret)
		if err == nil {
			return claims, nil
		}
	}
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpiredToken
	}
	return nil, ErrInvalidToken
}

func (s *JWTService) parse(token string, secret []byte) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
