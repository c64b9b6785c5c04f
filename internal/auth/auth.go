// Package auth verifies the admin password and gates admin routes behind a
// session token.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	applog "depositos/internal/log"
	"depositos/internal/session"
	"depositos/internal/store"
)

// DefaultAdminPassword is used when ADMIN_PASSWORD is not set.
const DefaultAdminPassword = "admin123"

const adminSubject = "admin"

var ErrInvalidPassword = errors.New("invalid password")

type ctxKey struct{}

// Authenticator checks passwords against the stored hash and hands out sessions.
type Authenticator struct {
	passwords store.PasswordStore
	sessions  *session.Store
	logger    *applog.Logger
}

func NewAuthenticator(passwords store.PasswordStore, sessions *session.Store, logger *applog.Logger) *Authenticator {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentAuth)
	}
	return &Authenticator{
		passwords: passwords,
		sessions:  sessions,
		logger:    logger.WithComponent(applog.ComponentAuth),
	}
}

// Login issues an admin session when password matches the stored hash.
func (a *Authenticator) Login(ctx context.Context, password string) (session.Session, error) {
	hash, ok, err := a.passwords.AdminPasswordHash(ctx)
	if err != nil {
		return session.Session{}, fmt.Errorf("read admin password: %w", err)
	}
	if !ok {
		return session.Session{}, ErrInvalidPassword
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(password)); err != nil {
		a.logger.WarnContext(ctx, "Admin login rejected", applog.FieldErrorType, applog.ErrorTypeAuth)
		return session.Session{}, ErrInvalidPassword
	}
	sess, err := a.sessions.Issue(adminSubject)
	if err != nil {
		return session.Session{}, fmt.Errorf("issue session: %w", err)
	}
	a.logger.InfoContext(ctx, "Admin logged in", "expires_at", sess.ExpiresAt)
	return sess, nil
}

// Logout revokes the token carried by r.
func (a *Authenticator) Logout(r *http.Request) {
	if token := TokenFromRequest(r); token != "" {
		a.sessions.Revoke(token)
	}
}

// Require wraps h so that only requests with a live session reach it.
func (a *Authenticator) Require(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := a.sessions.Validate(TokenFromRequest(r))
		if err != nil {
			a.logger.DebugContext(r.Context(), "Admin route rejected",
				applog.FieldPath, r.URL.Path,
				applog.FieldError, err.Error())
			writeUnauthorized(w, err)
			return
		}
		h.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, sess)))
	}
}

// SessionFromContext returns the session attached by Require.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(ctxKey{}).(session.Session)
	return sess, ok
}

// TokenFromRequest reads the Authorization header. Both "Bearer <token>" and
// a bare token are accepted.
func TokenFromRequest(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// EnsureAdminPassword stores the hash of plain unless a hash already exists.
func EnsureAdminPassword(ctx context.Context, passwords store.PasswordStore, plain string, logger *applog.Logger) error {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentAuth)
	}
	logger = logger.WithComponent(applog.ComponentAuth)

	_, ok, err := passwords.AdminPasswordHash(ctx)
	if err != nil {
		return fmt.Errorf("read admin password: %w", err)
	}
	if ok {
		return nil
	}
	if plain == "" {
		plain = DefaultAdminPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	if err := passwords.SetAdminPasswordHash(ctx, hash); err != nil {
		return fmt.Errorf("store admin password: %w", err)
	}
	if plain == DefaultAdminPassword {
		logger.WarnContext(ctx, "Admin password seeded with the default value, set ADMIN_PASSWORD")
	} else {
		logger.InfoContext(ctx, "Admin password seeded")
	}
	return nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	msg := session.ErrUnauthorized.Error()
	if errors.Is(err, session.ErrTokenExpired) {
		msg = session.ErrTokenExpired.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
