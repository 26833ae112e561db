package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/samirrijal/pinmap/internal/core/domain"
)

// 44-character base64 string, as produced by `openssl rand -base64 32`
const testSecret = "wJ6Qk8Qn1v9Qw1Zb2l8Qk9J3p6Qk8Qn1v9Qw1Zb2l8Qk="

var testUser = &domain.User{ID: "3f1c9f9e-1111-4c2a-9e55-0d1b8e0c2a10", Username: "maite", IsStaff: true}

func TestIssuePair_RoundTrip(t *testing.T) {
	svc := NewJWTService(testSecret, "", 0, 0)

	pair, err := svc.IssuePair(testUser)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" || pair.Access == pair.Refresh {
		t.Fatalf("unexpected pair: %+v", pair)
	}

	actor, err := svc.Authenticate(pair.Access)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if actor.UserID != testUser.ID || actor.Username != "maite" || !actor.Staff {
		t.Errorf("unexpected actor: %+v", actor)
	}

	sub, err := svc.RefreshSubject(pair.Refresh)
	if err != nil {
		t.Fatalf("RefreshSubject: %v", err)
	}
	if sub != testUser.ID {
		t.Errorf("subject = %s, want %s", sub, testUser.ID)
	}
}

func TestTokenTypesAreNotInterchangeable(t *testing.T) {
	svc := NewJWTService(testSecret, "", 0, 0)
	pair, err := svc.IssuePair(testUser)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	if _, err := svc.Authenticate(pair.Refresh); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("refresh token as bearer: got %v, want ErrWrongTokenType", err)
	}
	if _, err := svc.RefreshSubject(pair.Access); !errors.Is(err, ErrWrongTokenType) {
		t.Errorf("access token as refresh: got %v, want ErrWrongTokenType", err)
	}
}

func TestIssue_EmptyUserID(t *testing.T) {
	svc := NewJWTService(testSecret, "", 0, 0)
	if _, err := svc.IssuePair(&domain.User{}); !errors.Is(err, ErrEmptyUserID) {
		t.Errorf("got %v, want ErrEmptyUserID", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	svc := NewJWTService(testSecret, "", time.Minute, time.Hour)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.IssueAccess(testUser)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	svc.now = time.Now
	if _, err := svc.ValidateToken(token); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("got %v, want ErrExpiredToken", err)
	}
}

func TestValidateToken_Tampered(t *testing.T) {
	svc := NewJWTService(testSecret, "", 0, 0)
	token, _ := svc.IssueAccess(testUser)

	other := NewJWTService(strings.Repeat("x", 44), "", 0, 0)
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("foreign secret: got %v, want ErrInvalidToken", err)
	}
	if _, err := svc.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("garbage: got %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	svc := NewJWTService(testSecret, "", 0, 0)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   testUser.ID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Type: TokenTypeAccess,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := svc.Authenticate(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("HS512 token: got %v, want ErrInvalidToken", err)
	}
}

func TestValidateToken_Rotation(t *testing.T) {
	oldSvc := NewJWTService("old-secret-old-secret-old-secret-12", "", 0, 0)
	token, err := oldSvc.IssueAccess(testUser)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	rotated := NewJWTService(testSecret, "old-secret-old-secret-old-secret-12", 0, 0)
	if _, err := rotated.Authenticate(token); err != nil {
		t.Errorf("token under previous secret should validate: %v", err)
	}

	fresh := NewJWTService(testSecret, "", 0, 0)
	if _, err := fresh.Authenticate(token); err == nil {
		t.Error("token under dropped secret should not validate")
	}
}
