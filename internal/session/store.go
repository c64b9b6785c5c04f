// Package session keeps admin sessions as opaque tokens with a fixed lifetime.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	applog "depositos/internal/log"
)

// DefaultTTL is how long a token stays valid after it is issued.
const DefaultTTL = 24 * time.Hour

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
)

// Session is the context attached to a valid token.
type Session struct {
	Token     string    `json:"token"`
	Subject   string    `json:"subject"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is an in-process session registry. Expired entries are evicted when
// they are validated or by Sweep.
type Store struct {
	mu       sync.Mutex
	sessions map[string]Session
	ttl      time.Duration
	now      func() time.Time
	logger   *applog.Logger
}

type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets where sweep activity is reported.
func WithLogger(l *applog.Logger) Option {
	return func(s *Store) { s.logger = l.WithComponent(applog.ComponentSession) }
}

// NewStore creates a store issuing tokens valid for ttl (DefaultTTL when <= 0).
func NewStore(ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		sessions: make(map[string]Session),
		ttl:      ttl,
		now:      time.Now,
		logger:   applog.Wrap(nil, applog.ComponentSession),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Issue creates a new session for subject.
func (s *Store) Issue(subject string) (Session, error) {
	token, err := newToken()
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	sess := Session{
		Token:     token,
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()
	return sess, nil
}

// Validate returns the session for token. Unknown tokens yield ErrUnauthorized;
// expired ones are evicted and yield ErrTokenExpired.
func (s *Store) Validate(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrUnauthorized
	}
	if !s.now().Before(sess.ExpiresAt) {
		delete(s.sessions, token)
		return Session{}, ErrTokenExpired
	}
	return sess, nil
}

// Revoke forgets token. Unknown tokens are ignored.
func (s *Store) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Sweep evicts every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Active returns the number of tracked sessions, expired or not.
func (s *Store) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.DebugContext(ctx, "Expired sessions evicted", "count", n)
			}
		}
	}
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
