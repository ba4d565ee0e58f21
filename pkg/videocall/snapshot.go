package videocall

import (
	"errors"
	"time"

	"github.com/rescp17/tutorCall/pkg/concurrency"
	"github.com/rescp17/tutorCall/pkg/identity"
	"github.com/rescp17/tutorCall/pkg/media"
	"github.com/rescp17/tutorCall/pkg/room"
)

// Snapshot is the read-only view of the session handed to UIs.
type Snapshot struct {
	State       room.State  `json:"state"`
	RoomID      string      `json:"roomId,omitempty"`
	QuestionID  string      `json:"questionId,omitempty"`
	Participant string      `json:"participant,omitempty"`
	Remote      string      `json:"remote,omitempty"`
	RemoteVideo bool        `json:"remoteVideo"`
	RemoteAudio bool        `json:"remoteAudio"`
	Media       media.State `json:"media"`
	// LastError is the most recent terminal failure, cleared by the next
	// successful start.
	LastError     string    `json:"lastError,omitempty"`
	LastErrorKind string    `json:"lastErrorKind,omitempty"`
	Since         time.Time `json:"since,omitempty"`
}

// InRoom reports whether the call is established.
func (s Snapshot) InRoom() bool { return s.State == room.StateInRoom }

// Elapsed is the time spent in the current state.
func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.Since.IsZero() {
		return 0
	}
	return now.Sub(s.Since)
}

// ErrorKind names the category of err for UIs and the control API.
func ErrorKind(err error) string {
	var authErr *identity.AuthError
	var mediaErr *media.MediaError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoSession):
		return "no_session"
	case errors.Is(err, concurrency.ErrBusy):
		return room.KindBusy.String()
	case errors.Is(err, identity.ErrIdentityConflict):
		return "identity_conflict"
	case errors.As(err, &authErr):
		if authErr.Code == identity.CodeInvalidParticipant {
			return "invalid_participant"
		}
		return "auth_failed"
	case errors.As(err, &mediaErr):
		return "media_" + string(mediaErr.Device)
	}
	if k := room.KindOf(err); k != room.KindUnknown {
		return k.String()
	}
	return "unknown"
}
