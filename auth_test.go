package main

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newTestAuth(t *testing.T, db *DB) *Auth {
	t.Helper()
	a, err := NewAuth(db)
	if err != nil {
		t.Fatalf("new auth: %v", err)
	}
	a.cost = bcrypt.MinCost
	return a
}

func TestAuthRegisterLoginValidate(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))

	id, token, err := a.Register("  marlin ", "secret")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if id == 0 || token == "" {
		t.Fatalf("expected id and token, got %d %q", id, token)
	}

	pid, user, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if pid != id || user != "marlin" {
		t.Errorf("expected (%d, marlin), got (%d, %s)", id, pid, user)
	}

	loginID, _, err := a.Login("marlin", "secret", "1.2.3.4")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loginID != id {
		t.Errorf("expected login id %d, got %d", id, loginID)
	}
}

func TestAuthRejects(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))
	if _, _, err := a.Register("dory", "pass"); err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name string
		err  error
		want error
	}{
		{"duplicate", second(a.Register("dory", "pass")), ErrUsernameTaken},
		{"short name", second(a.Register("d", "pass")), ErrInvalidInput},
		{"short password", second(a.Register("nemo", "p")), ErrInvalidInput},
		{"bad password", second(a.Login("dory", "nope", "ip")), ErrInvalidCredentials},
		{"unknown user", second(a.Login("bruce", "pass", "ip")), ErrInvalidCredentials},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, tc.err)
		}
		if publicError(tc.err) == "internal error" {
			t.Errorf("%s: expected a client-facing message", tc.name)
		}
	}
}

func second(_ int64, _ string, err error) error { return err }

func TestAuthInvalidToken(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))
	if _, _, err := a.ValidateToken("not.a.jwt"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}

	other := newTestAuth(t, openTestDB(t))
	_, token, err := other.Register("gill", "pass")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected token from another secret to fail, got %v", err)
	}
}

func TestAuthSecretPersists(t *testing.T) {
	db := openTestDB(t)
	a1 := newTestAuth(t, db)
	_, token, err := a1.Register("crush", "pass")
	if err != nil {
		t.Fatal(err)
	}

	a2 := newTestAuth(t, db)
	if _, _, err := a2.ValidateToken(token); err != nil {
		t.Errorf("expected token to survive a restart, got %v", err)
	}
}

func TestAuthLoginRateLimit(t *testing.T) {
	a := newTestAuth(t, openTestDB(t))
	var err error
	for i := 0; i <= maxLoginAttempts; i++ {
		_, _, err = a.Login("x", "y", "9.9.9.9")
	}
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected rate limit after %d attempts, got %v", maxLoginAttempts, err)
	}
	if _, _, err := a.Login("x", "y", "8.8.8.8"); errors.Is(err, ErrRateLimited) {
		t.Error("rate limit should be per IP")
	}
}

func TestPublicErrorHidesInternals(t *testing.T) {
	if got := publicError(errors.New("sql: connection refused")); got != "internal error" {
		t.Errorf("expected internal error, got %q", got)
	}
}
