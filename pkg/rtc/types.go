package rtc

import (
	"errors"
	"fmt"
)

// RoomType mirrors the vendor room categories. Only conferences are used.
type RoomType int

const (
	RoomTypeConference RoomType = iota
	RoomTypeLive
)

func (t RoomType) String() string {
	switch t {
	case RoomTypeConference:
		return "conference"
	case RoomTypeLive:
		return "live"
	default:
		return "unknown"
	}
}

// SpeechMode controls who may publish audio/video in a room.
type SpeechMode int

const (
	SpeechModeFreeToSpeak SpeechMode = iota
	SpeechModeApplyToSpeak
)

func (m SpeechMode) String() string {
	switch m {
	case SpeechModeFreeToSpeak:
		return "free_to_speak"
	case SpeechModeApplyToSpeak:
		return "apply_to_speak"
	default:
		return "unknown"
	}
}

type VideoQuality int

const (
	VideoQuality360P VideoQuality = iota
	VideoQuality540P
	VideoQuality720P
	VideoQuality1080P
)

func (q VideoQuality) String() string {
	switch q {
	case VideoQuality360P:
		return "360p"
	case VideoQuality540P:
		return "540p"
	case VideoQuality720P:
		return "720p"
	case VideoQuality1080P:
		return "1080p"
	default:
		return "unknown"
	}
}

// ParseVideoQuality maps a config string to a quality, defaulting to 720p.
func ParseVideoQuality(s string) VideoQuality {
	switch s {
	case "360p":
		return VideoQuality360P
	case "540p":
		return VideoQuality540P
	case "1080p":
		return VideoQuality1080P
	default:
		return VideoQuality720P
	}
}

type AudioQuality int

const (
	AudioQualityDefault AudioQuality = iota
	AudioQualitySpeech
	AudioQualityMusic
)

// RoomInfo is what the backend knows about a room.
type RoomInfo struct {
	RoomID     string     `json:"roomId"`
	Name       string     `json:"name,omitempty"`
	Type       RoomType   `json:"roomType"`
	SpeechMode SpeechMode `json:"speechMode"`
	OwnerID    string     `json:"ownerId,omitempty"`
}

// EventKind discriminates transport events.
type EventKind int

const (
	EventRemoteJoined EventKind = iota
	EventRemoteLeft
	EventRemoteVideoChanged
	EventRemoteAudioChanged
	// EventAuthExpired covers both "kicked offline" and an expired signature.
	EventAuthExpired
)

func (k EventKind) String() string {
	switch k {
	case EventRemoteJoined:
		return "remote_joined"
	case EventRemoteLeft:
		return "remote_left"
	case EventRemoteVideoChanged:
		return "remote_video_changed"
	case EventRemoteAudioChanged:
		return "remote_audio_changed"
	case EventAuthExpired:
		return "auth_expired"
	default:
		return "unknown"
	}
}

// Event is a single asynchronous notification from the transport.
// Available is only meaningful for the video/audio state kinds.
type Event struct {
	Kind          EventKind
	ParticipantID string
	Available     bool
	Reason        string
}

// Error is a raw vendor failure. Code and Message are preserved verbatim so
// that classification can happen at the orchestrator boundary.
type Error struct {
	Op      string
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("rtc error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("rtc %s failed (%d): %s", e.Op, e.Code, e.Message)
}

var (
	ErrNotConnected = errors.New("rtc: transport not connected")
	ErrNotInRoom    = errors.New("rtc: not in a room")
	ErrClosed       = errors.New("rtc: transport closed")
)

// AsError extracts the vendor error from err, if any.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
