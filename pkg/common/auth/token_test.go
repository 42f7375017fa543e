package auth

import (
	"errors"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123"

func newManager(t *testing.T) *TokenManager {
	t.Helper()
	m, err := NewTokenManager(testSecret, "pseudonym-service", "pseudonym-api", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return m
}

func TestNewTokenManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewTokenManager("short", "iss", "aud", time.Minute); err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestIssueAndAuthorize(t *testing.T) {
	m := newManager(t)
	token, err := m.IssueToken("steward", []string{ScopeReidentify})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claims, err := m.Authorize(token, ScopeReidentify)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "steward" {
		t.Fatalf("expected subject steward, got %s", claims.Subject)
	}

	if _, err := m.Authorize(token, ScopePools); !errors.Is(err, ErrMissingScope) {
		t.Fatalf("expected ErrMissingScope, got %v", err)
	}
}

func TestValidateTokenFailures(t *testing.T) {
	m := newManager(t)
	token, err := m.IssueToken("steward", []string{ScopePseudonymize})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	other, err := NewTokenManager(testSecret, "pseudonym-service", "another-api", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := other.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for audience mismatch, got %v", err)
	}

	parts := strings.Split(token, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := m.ValidateToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered payload, got %v", err)
	}
	if _, err := m.ValidateToken("not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	m.nowFunc = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := m.ValidateToken(token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
