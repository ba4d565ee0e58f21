// Package identity keeps the local participant authenticated against the
// RTC backend. A Manager is owned by the session service; it is not global.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// Identity is the authenticated local participant.
type Identity struct {
	ParticipantID string `json:"participantId"`
	Authenticated bool   `json:"authenticated"`
}

// CredentialProvider produces the login credential for a participant.
type CredentialProvider interface {
	Credential(participantID string) (string, error)
}

// CredentialFunc adapts a function to CredentialProvider.
type CredentialFunc func(participantID string) (string, error)

func (f CredentialFunc) Credential(participantID string) (string, error) { return f(participantID) }

const (
	// CodeInvalidParticipant is reported for an empty participant id.
	CodeInvalidParticipant = -1
	// CodeCredential is reported when no credential could be produced.
	CodeCredential = -2
	// CodeUnknown is reported for non-vendor login failures.
	CodeUnknown = -3
)

// AuthError is a login failure. Vendor code and message are kept verbatim.
type AuthError struct {
	Code    int
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed (%d): %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Err }

// ErrIdentityConflict means a different participant is already logged in.
var ErrIdentityConflict = errors.New("identity: another participant is logged in")

// Manager owns the single SessionIdentity of the process.
type Manager struct {
	auth  rtc.Authenticator
	creds CredentialProvider

	// loginMu serializes logins; mu guards identity.
	loginMu  sync.Mutex
	mu       sync.RWMutex
	identity *Identity
}

func NewManager(auth rtc.Authenticator, creds CredentialProvider) *Manager {
	return &Manager{auth: auth, creds: creds}
}

// EnsureLoggedIn authenticates participantID unless it already is. It never
// retries; retry policy belongs to the caller.
func (m *Manager) EnsureLoggedIn(ctx context.Context, participantID string) error {
	if participantID == "" {
		return &AuthError{Code: CodeInvalidParticipant, Message: "participant id is empty"}
	}

	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	if cur, ok := m.Identity(); ok {
		if cur.ParticipantID == participantID {
			return nil
		}
		log.Warn().Str("module", "identity").
			Str("current", cur.ParticipantID).
			Str("requested", participantID).
			Msg("refusing to switch identity without logout")
		return fmt.Errorf("%w: %s", ErrIdentityConflict, cur.ParticipantID)
	}

	cred, err := m.creds.Credential(participantID)
	if err != nil {
		return &AuthError{Code: CodeCredential, Message: err.Error(), Err: err}
	}

	if err := m.auth.Login(ctx, participantID, cred); err != nil {
		authErr := &AuthError{Code: CodeUnknown, Message: err.Error(), Err: err}
		if vendor, ok := rtc.AsError(err); ok {
			authErr.Code = vendor.Code
			authErr.Message = vendor.Message
		}
		log.Error().Str("module", "identity").Str("participant", participantID).
			Int("code", authErr.Code).Str("message", authErr.Message).Msg("login failed")
		return authErr
	}

	m.mu.Lock()
	m.identity = &Identity{ParticipantID: participantID, Authenticated: true}
	m.mu.Unlock()
	log.Info().Str("module", "identity").Str("participant", participantID).Msg("logged in")
	return nil
}

// Identity returns a copy of the current identity.
func (m *Manager) Identity() (Identity, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil || !m.identity.Authenticated {
		return Identity{}, false
	}
	return *m.identity, true
}

// Logout clears the identity and tells the backend. Safe when not logged in.
func (m *Manager) Logout(ctx context.Context) error {
	m.loginMu.Lock()
	defer m.loginMu.Unlock()

	m.mu.Lock()
	cur := m.identity
	m.identity = nil
	m.mu.Unlock()
	if cur == nil {
		return nil
	}

	if err := m.auth.Logout(ctx); err != nil {
		log.Warn().Err(err).Str("module", "identity").Str("participant", cur.ParticipantID).Msg("backend logout failed")
		return fmt.Errorf("logout %s: %w", cur.ParticipantID, err)
	}
	log.Info().Str("module", "identity").Str("participant", cur.ParticipantID).Msg("logged out")
	return nil
}

// Invalidate drops the identity after the transport reported an auth
// failure. No backend call is made.
func (m *Manager) Invalidate(reason string) {
	m.mu.Lock()
	cur := m.identity
	m.identity = nil
	m.mu.Unlock()
	if cur != nil {
		log.Warn().Str("module", "identity").Str("participant", cur.ParticipantID).Str("reason", reason).Msg("identity invalidated")
	}
}
