package room

import (
	"fmt"
	"time"

	"github.com/rescp17/tutorCall/pkg/identity"
)

// State is the lifecycle state of the room session.
type State int

const (
	StateIdle State = iota
	StateNormalizingID
	StateCreating
	StateJoining
	StateInRoom
	StateExiting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNormalizingID:
		return "normalizing_id"
	case StateCreating:
		return "creating"
	case StateJoining:
		return "joining"
	case StateInRoom:
		return "in_room"
	case StateExiting:
		return "exiting"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown room state %q", b)
}

// Busy reports whether a create/join or exit is in flight.
func (s State) Busy() bool {
	switch s {
	case StateNormalizingID, StateCreating, StateJoining, StateExiting:
		return true
	default:
		return false
	}
}

// Session is a snapshot of the room session. The zero value is Idle.
type Session struct {
	Descriptor Descriptor        `json:"descriptor"`
	Local      identity.Identity `json:"local"`
	State      State             `json:"state"`
	// RemoteID is empty until the remote participant joins.
	RemoteID string    `json:"remoteId,omitempty"`
	Since    time.Time `json:"since"`
}

// InRoom reports whether the session is established.
func (s Session) InRoom() bool { return s.State == StateInRoom }
