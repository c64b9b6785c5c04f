package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	applog "depositos/internal/log"
	"depositos/internal/session"
	"depositos/internal/store/memory"
)

func newTestAuth(t *testing.T, now *time.Time) (*Authenticator, *memory.Store) {
	t.Helper()
	st := memory.New(nil)
	if err := EnsureAdminPassword(context.Background(), st, "s3cret", applog.Discard()); err != nil {
		t.Fatalf("EnsureAdminPassword: %v", err)
	}
	sessions := session.NewStore(time.Hour, session.WithClock(func() time.Time { return *now }))
	return NewAuthenticator(st, sessions, applog.Discard()), st
}

func TestLogin(t *testing.T) {
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	a, _ := newTestAuth(t, &now)

	if _, err := a.Login(context.Background(), "wrong"); !errors.Is(err, ErrInvalidPassword) {
		t.Fatalf("expected ErrInvalidPassword, got %v", err)
	}
	sess, err := a.Login(context.Background(), "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if sess.Token == "" || !sess.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected session %+v", sess)
	}
}

func TestEnsureAdminPasswordKeepsExistingHash(t *testing.T) {
	st := memory.New(nil)
	ctx := context.Background()
	if err := EnsureAdminPassword(ctx, st, "first", applog.Discard()); err != nil {
		t.Fatal(err)
	}
	if err := EnsureAdminPassword(ctx, st, "second", applog.Discard()); err != nil {
		t.Fatal(err)
	}
	hash, ok, _ := st.AdminPasswordHash(ctx)
	if !ok || bcrypt.CompareHashAndPassword(hash, []byte("first")) != nil {
		t.Fatal("existing hash must not be replaced")
	}
}

func TestEnsureAdminPasswordDefault(t *testing.T) {
	st := memory.New(nil)
	if err := EnsureAdminPassword(context.Background(), st, "", applog.Discard()); err != nil {
		t.Fatal(err)
	}
	hash, _, _ := st.AdminPasswordHash(context.Background())
	if bcrypt.CompareHashAndPassword(hash, []byte(DefaultAdminPassword)) != nil {
		t.Fatal("default password not seeded")
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer  abc ", "abc"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := TokenFromRequest(r); got != tt.want {
			t.Errorf("TokenFromRequest(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestRequire(t *testing.T) {
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	a, _ := newTestAuth(t, &now)
	sess, err := a.Login(context.Background(), "s3cret")
	if err != nil {
		t.Fatal(err)
	}

	h := a.Require(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			t.Error("session missing from context")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	call := func(token string) (int, string) {
		r := httptest.NewRequest(http.MethodDelete, "/api/deposits", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		w := httptest.NewRecorder()
		h(w, r)
		var body map[string]string
		_ = json.NewDecoder(w.Body).Decode(&body)
		return w.Code, body["error"]
	}

	if code, msg := call(""); code != http.StatusUnauthorized || msg != "unauthorized" {
		t.Fatalf("no token: %d %q", code, msg)
	}
	if code, _ := call(sess.Token); code != http.StatusNoContent {
		t.Fatalf("valid token: %d", code)
	}

	now = now.Add(2 * time.Hour)
	if code, msg := call(sess.Token); code != http.StatusUnauthorized || msg != "token expired" {
		t.Fatalf("expired token: %d %q", code, msg)
	}
}

func TestLogoutRevokes(t *testing.T) {
	now := time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC)
	a, _ := newTestAuth(t, &now)
	sess, _ := a.Login(context.Background(), "s3cret")

	r := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	r.Header.Set("Authorization", sess.Token)
	a.Logout(r)

	if _, err := a.sessions.Validate(sess.Token); !errors.Is(err, session.ErrUnauthorized) {
		t.Fatalf("token should be revoked, got %v", err)
	}
}
