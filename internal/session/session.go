// Package session tracks who is using the device right now.
//
// The UI shell hands tokens over as they change; the engine reads the
// current identity and the token-refreshed flag on every reconciliation
// pass. Until the shell has reported at least once, the session is not
// considered "truly anonymous" - the refreshed flag stays false so a page
// reload never looks like a logout.
package session

import (
	"log/slog"
	"sync"

	"github.com/readmarkapp/readmark-agent/internal/errors"
)

// User is an authenticated identity.
type User struct {
	ID    string
	Email string
}

// Provider exposes the current session to the reconciliation engine.
type Provider interface {
	// CurrentUser returns the authenticated user, or nil for anonymous.
	CurrentUser() *User
	// TokenRefreshed reports whether the shell has completed at least one
	// token handover (or explicit sign-out) since the agent started.
	TokenRefreshed() bool
}

// Manager is the Provider implementation backed by shell-reported tokens.
type Manager struct {
	verifier *TokenVerifier
	logger   *slog.Logger

	mu        sync.RWMutex
	user      *User
	refreshed bool
	onChange  func()
}

// NewManager creates a session manager. verifier may be nil, in which case
// every token handover is rejected and only anonymous sessions exist.
func NewManager(verifier *TokenVerifier, logger *slog.Logger) *Manager {
	return &Manager{verifier: verifier, logger: logger}
}

// OnChange registers the callback invoked after every accepted session
// change. The engine uses it to re-run reconciliation.
func (m *Manager) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// CurrentUser implements Provider.
func (m *Manager) CurrentUser() *User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.user
}

// TokenRefreshed implements Provider.
func (m *Manager) TokenRefreshed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshed
}

// SetToken verifies a shell-reported access token and switches the session
// to the token's user. An invalid token leaves the session untouched.
func (m *Manager) SetToken(token string) error {
	if m.verifier == nil {
		return errors.Unauthorized("no session key configured")
	}

	claims, err := m.verifier.Verify(token)
	if err != nil {
		m.logger.Warn("rejected session token", "error", err)
		return errors.ErrUnauthorized.WithCause(err)
	}

	m.mu.Lock()
	m.user = &User{ID: claims.UserID, Email: claims.Email}
	m.refreshed = true
	notify := m.onChange
	m.mu.Unlock()

	m.logger.Info("session established", "user_id", claims.UserID)
	if notify != nil {
		notify()
	}
	return nil
}

// Clear marks the session as signed out. This is an affirmative statement
// from the shell, so the refreshed flag is set: the engine may now trust
// "no user" as truly anonymous.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.user = nil
	m.refreshed = true
	notify := m.onChange
	m.mu.Unlock()

	m.logger.Info("session cleared")
	if notify != nil {
		notify()
	}
}
