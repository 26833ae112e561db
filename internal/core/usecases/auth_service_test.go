package usecases_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/samirrijal/pinmap/internal/core/domain"
	"github.com/samirrijal/pinmap/internal/core/usecases"
)

// --- Mock TokenService ---

type mockTokens struct {
	issuePairFn      func(user *domain.User) (domain.TokenPair, error)
	refreshSubjectFn func(token string) (string, error)
	authenticateFn   func(token string) (domain.Actor, error)
}

func (m *mockTokens) IssuePair(user *domain.User) (domain.TokenPair, error) {
	if m.issuePairFn != nil {
		return m.issuePairFn(user)
	}
	return domain.TokenPair{Access: "access-" + user.ID, Refresh: "refresh-" + user.ID}, nil
}

func (m *mockTokens) IssueAccess(user *domain.User) (string, error) {
	return "access-" + user.ID, nil
}

func (m *mockTokens) RefreshSubject(token string) (string, error) {
	if m.refreshSubjectFn != nil {
		return m.refreshSubjectFn(token)
	}
	return "", errors.New("not a refresh token")
}

func (m *mockTokens) Authenticate(token string) (domain.Actor, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(token)
	}
	return domain.Anonymous, errors.New("invalid token")
}

func newAuthService(store *memStore) *usecases.AuthService {
	return usecases.NewAuthService(memUsers{store}, &mockTokens{}).WithCost(bcrypt.MinCost)
}

func TestAuthService_Register(t *testing.T) {
	svc := newAuthService(newMemStore())
	ctx := context.Background()

	u, err := svc.Register(ctx, "  maite  ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "maite", u.Username)
	assert.NotEmpty(t, u.ID)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	_, err = svc.Register(ctx, "MAITE", "other")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestAuthService_Register_Validation(t *testing.T) {
	svc := newAuthService(newMemStore())
	cases := map[string][2]string{
		"empty username":    {"", "pw"},
		"blank username":    {"   ", "pw"},
		"empty password":    {"maite", ""},
		"long username":     {strings.Repeat("a", 151), "pw"},
		"password too long": {"maite", strings.Repeat("p", 73)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), c[0], c[1])
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	svc := newAuthService(newMemStore())
	ctx := context.Background()
	u, err := svc.Register(ctx, "maite", "s3cret")
	require.NoError(t, err)

	pair, err := svc.Login(ctx, "Maite", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "access-"+u.ID, pair.Access)
	assert.Equal(t, "refresh-"+u.ID, pair.Refresh)

	_, err = svc.Login(ctx, "maite", "wrong")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Login(ctx, "nobody", "s3cret")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_RefreshAndAuthenticate(t *testing.T) {
	store := newMemStore()
	maite := store.addUser("maite", false)
	tokens := &mockTokens{
		refreshSubjectFn: func(token string) (string, error) {
			switch token {
			case "good":
				return maite.UserID, nil
			case "orphan":
				return "deleted-user", nil
			}
			return "", errors.New("expired")
		},
		authenticateFn: func(token string) (domain.Actor, error) {
			if token == "good" {
				return maite, nil
			}
			return domain.Anonymous, errors.New("bad signature")
		},
	}
	svc := usecases.NewAuthService(memUsers{store}, tokens)

	access, err := svc.Refresh(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "access-"+maite.UserID, access)

	_, err = svc.Refresh(context.Background(), "bad")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Refresh(context.Background(), "orphan")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	_, err = svc.Refresh(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	actor, err := svc.Authenticate("good")
	require.NoError(t, err)
	assert.Equal(t, maite.UserID, actor.UserID)
	_, err = svc.Authenticate("bad")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestAuthService_CreateAdmin(t *testing.T) {
	store := newMemStore()
	svc := newAuthService(store)
	ctx := context.Background()

	u, err := svc.CreateAdmin(ctx, "root", "pw")
	require.NoError(t, err)
	assert.True(t, u.IsStaff)

	// An existing account is promoted only with its own password.
	plain, err := svc.Register(ctx, "maite", "pw")
	require.NoError(t, err)
	_, err = svc.CreateAdmin(ctx, "Maite", "wrong")
	assert.ErrorIs(t, err, domain.ErrConflict)
	stored, err := memUsers{store}.GetByID(ctx, plain.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsStaff)

	u, err = svc.CreateAdmin(ctx, "maite", "pw")
	require.NoError(t, err)
	assert.Equal(t, plain.ID, u.ID)
	stored, err = memUsers{store}.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsStaff)
}
