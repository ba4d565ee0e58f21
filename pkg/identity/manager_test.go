package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rescp17/tutorCall/pkg/rtc"
	"github.com/rescp17/tutorCall/pkg/rtc/rtctest"
)

func staticCreds() CredentialProvider {
	return CredentialFunc(func(participantID string) (string, error) {
		return "sig-" + participantID, nil
	})
}

func TestEnsureLoggedIn(t *testing.T) {
	ctx := context.Background()

	t.Run("first_login_stores_identity", func(t *testing.T) {
		tr := rtctest.New()
		var gotCred string
		tr.OnLogin(func(ctx context.Context, participantID, credential string) error {
			gotCred = credential
			return nil
		})
		m := NewManager(tr, staticCreds())

		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))

		id, ok := m.Identity()
		require.True(t, ok)
		assert.Equal(t, Identity{ParticipantID: "tutorA", Authenticated: true}, id)
		assert.Equal(t, "sig-tutorA", gotCred)
	})

	t.Run("same_participant_is_idempotent", func(t *testing.T) {
		tr := rtctest.New()
		m := NewManager(tr, staticCreds())

		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))
		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))
		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))

		assert.Equal(t, 1, tr.Count(rtctest.OpLogin))
	})

	t.Run("different_participant_is_rejected", func(t *testing.T) {
		tr := rtctest.New()
		m := NewManager(tr, staticCreds())
		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))

		err := m.EnsureLoggedIn(ctx, "tutorB")

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrIdentityConflict))
		id, _ := m.Identity()
		assert.Equal(t, "tutorA", id.ParticipantID)
		assert.Equal(t, 1, tr.Count(rtctest.OpLogin))
	})

	t.Run("empty_participant_never_reaches_transport", func(t *testing.T) {
		tr := rtctest.New()
		m := NewManager(tr, staticCreds())

		err := m.EnsureLoggedIn(ctx, "")

		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, CodeInvalidParticipant, authErr.Code)
		assert.Zero(t, tr.Count(rtctest.OpLogin))
	})

	t.Run("vendor_failure_is_surfaced_without_retry", func(t *testing.T) {
		tr := rtctest.New()
		tr.OnLogin(func(ctx context.Context, participantID, credential string) error {
			return &rtc.Error{Op: "login", Code: 70001, Message: "userSig expired"}
		})
		m := NewManager(tr, staticCreds())

		err := m.EnsureLoggedIn(ctx, "tutorA")

		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, 70001, authErr.Code)
		assert.Equal(t, "userSig expired", authErr.Message)
		assert.Equal(t, 1, tr.Count(rtctest.OpLogin))
		_, ok := m.Identity()
		assert.False(t, ok)
	})

	t.Run("credential_failure", func(t *testing.T) {
		tr := rtctest.New()
		m := NewManager(tr, CredentialFunc(func(string) (string, error) {
			return "", errors.New("no secret configured")
		}))

		err := m.EnsureLoggedIn(ctx, "tutorA")

		var authErr *AuthError
		require.True(t, errors.As(err, &authErr))
		assert.Equal(t, CodeCredential, authErr.Code)
		assert.Zero(t, tr.Count(rtctest.OpLogin))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("noop_when_not_authenticated", func(t *testing.T) {
		tr := rtctest.New()
		m := NewManager(tr, staticCreds())

		assert.NoError(t, m.Logout(ctx))
		assert.Zero(t, tr.Count(rtctest.OpLogout))
	})

	t.Run("clears_identity_and_allows_switch", func(t *testing.T) {
		tr := rtctest.New()
		m := NewManager(tr, staticCreds())
		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))

		require.NoError(t, m.Logout(ctx))
		_, ok := m.Identity()
		assert.False(t, ok)

		require.NoError(t, m.EnsureLoggedIn(ctx, "tutorB"))
		id, _ := m.Identity()
		assert.Equal(t, "tutorB", id.ParticipantID)
		assert.Equal(t, 1, tr.Count(rtctest.OpLogout))
	})
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	tr := rtctest.New()
	m := NewManager(tr, staticCreds())
	require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))

	m.Invalidate("kicked offline")

	_, ok := m.Identity()
	assert.False(t, ok)
	assert.Zero(t, tr.Count(rtctest.OpLogout))

	require.NoError(t, m.EnsureLoggedIn(ctx, "tutorA"))
	assert.Equal(t, 2, tr.Count(rtctest.OpLogin))
}
