package room

import (
	"strings"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// MaxRoomIDLen is the longest room id the RTC backend accepts.
const MaxRoomIDLen = 64

// Normalize keeps only ASCII letters and digits of raw and truncates the
// result to MaxRoomIDLen. It is idempotent.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(min(len(raw), MaxRoomIDLen))
	for i := 0; i < len(raw) && b.Len() < MaxRoomIDLen; i++ {
		c := raw[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Descriptor describes the room a session targets.
type Descriptor struct {
	RawID        string         `json:"rawId"`
	NormalizedID string         `json:"normalizedId"`
	Type         rtc.RoomType   `json:"type"`
	SpeechMode   rtc.SpeechMode `json:"speechMode"`
}

// NewDescriptor normalizes rawID. An id without any alphanumeric character
// is a caller error and is never retried.
func NewDescriptor(rawID string) (Descriptor, error) {
	id := Normalize(rawID)
	if id == "" {
		return Descriptor{}, &Error{
			Kind:    KindInvalidRoomID,
			RoomID:  rawID,
			Message: "room id has no alphanumeric characters",
		}
	}
	return Descriptor{
		RawID:        rawID,
		NormalizedID: id,
		Type:         rtc.RoomTypeConference,
		SpeechMode:   rtc.SpeechModeFreeToSpeak,
	}, nil
}
