// Package presence tracks the one remote participant of a 1:1 room.
package presence

import (
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// State is the tracked remote participant. ParticipantID is empty when no one
// is present.
type State struct {
	ParticipantID string `json:"participantId,omitempty"`
	HasVideo      bool   `json:"hasVideo"`
	HasAudio      bool   `json:"hasAudio"`
}

func (s State) Present() bool { return s.ParticipantID != "" }

type Tracker struct {
	mu       sync.Mutex
	state    State
	onChange []func(State)
}

func NewTracker() *Tracker { return &Tracker{} }

// OnChange registers fn to run after every change. fn runs synchronously.
func (t *Tracker) OnChange(fn func(State)) {
	t.mu.Lock()
	t.onChange = append(t.onChange, fn)
	t.mu.Unlock()
}

// HandleEvent applies a transport event. Events it does not track are ignored.
func (t *Tracker) HandleEvent(ev rtc.Event) {
	t.mu.Lock()
	prev := t.state
	switch ev.Kind {
	case rtc.EventRemoteJoined:
		if prev.Present() && prev.ParticipantID != ev.ParticipantID {
			log.Warn().Str("module", "presence").
				Str("current", prev.ParticipantID).
				Str("joined", ev.ParticipantID).
				Msg("second remote participant joined, replacing")
		}
		if prev.ParticipantID != ev.ParticipantID {
			t.state = State{ParticipantID: ev.ParticipantID}
		}
	case rtc.EventRemoteLeft:
		if prev.ParticipantID != ev.ParticipantID {
			log.Debug().Str("module", "presence").
				Str("current", prev.ParticipantID).
				Str("left", ev.ParticipantID).
				Msg("ignoring stale leave")
			break
		}
		t.state = State{}
	case rtc.EventRemoteVideoChanged:
		if prev.Present() && prev.ParticipantID == ev.ParticipantID {
			t.state.HasVideo = ev.Available
		}
	case rtc.EventRemoteAudioChanged:
		if prev.Present() && prev.ParticipantID == ev.ParticipantID {
			t.state.HasAudio = ev.Available
		}
	}
	cur := t.state
	listeners := slices.Clone(t.onChange)
	t.mu.Unlock()

	if cur != prev {
		for _, fn := range listeners {
			fn(cur)
		}
	}
}

// Remote returns the current remote participant id.
func (t *Tracker) Remote() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.ParticipantID, t.state.Present()
}

func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reset forgets the remote participant, e.g. after leaving the room.
func (t *Tracker) Reset() {
	t.mu.Lock()
	changed := t.state != State{}
	t.state = State{}
	listeners := slices.Clone(t.onChange)
	t.mu.Unlock()
	if changed {
		for _, fn := range listeners {
			fn(State{})
		}
	}
}
