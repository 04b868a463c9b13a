package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Session holds an authenticated BO logon token. The token is opaque; its
// validity window is advisory (ValidFor is zero when the server reports
// none), so a session is trusted until a request using it is rejected.
type Session struct {
	Token      string
	ObtainedAt time.Time
	ValidFor   time.Duration
}

// expired reports whether the advisory validity window has elapsed. A zero
// window never expires locally.
func (s Session) expired(now time.Time) bool {
	return s.ValidFor > 0 && now.After(s.ObtainedAt.Add(s.ValidFor))
}

// sessionAPI is the slice of the gateway the session manager needs.
type sessionAPI interface {
	login(ctx context.Context) (Session, error)
	logout(ctx context.Context, token string) error
}

// SessionManager owns the logon token lifecycle: login on first use,
// transparent re-login after invalidation, best-effort logout. Concurrent
// acquirers share a single in-flight login.
type SessionManager struct {
	api sessionAPI

	mu      sync.Mutex
	current *Session

	group singleflight.Group
}

// NewSessionManager creates a session manager over the given login/logout
// implementation.
func NewSessionManager(api sessionAPI) *SessionManager {
	return &SessionManager{api: api}
}

// Acquire returns a valid session, logging in if none is held or the held
// one has passed its advisory validity window. Concurrent callers awaiting
// a login share one attempt.
func (m *SessionManager) Acquire(ctx context.Context) (Session, error) {
	if s, ok := m.held(); ok {
		return s, nil
	}

	v, err, _ := m.group.Do("login", func() (any, error) {
		// A concurrent winner may have logged in between the check above
		// and joining the flight.
		if s, ok := m.held(); ok {
			return s, nil
		}
		s, err := m.api.login(ctx)
		if err != nil {
			return Session{}, err
		}
		m.mu.Lock()
		m.current = &s
		m.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return Session{}, err
	}
	return v.(Session), nil
}

// held returns the current session if it is present and not locally
// expired.
func (m *SessionManager) held() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && !m.current.expired(time.Now()) {
		return *m.current, true
	}
	return Session{}, false
}

// Invalidate marks the session holding token as dead, forcing the next
// Acquire to re-login. The token comparison guards against a slow failure
// discarding a session acquired after it.
func (m *SessionManager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil && m.current.Token == token {
		m.current = nil
	}
}

// Release logs the current session out. Failures are logged, never
// surfaced: teardown must not block a caller's in-flight result.
func (m *SessionManager) Release(ctx context.Context) {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()

	if s == nil {
		return
	}
	if err := m.api.logout(ctx, s.Token); err != nil {
		slog.Warn("sapbo logout failed", "error", err)
	}
}
