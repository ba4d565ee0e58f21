package room

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// Vendor code the RTC backend returns when the account has no room-creation
// entitlement.
const CodeEntitlement = 100007

// DefaultEntitlementCodes returns the vendor codes treated as entitlement denials.
func DefaultEntitlementCodes() []int { return []int{CodeEntitlement} }

// DefaultEntitlementMarkers returns the lowercase message fragments treated as
// entitlement denials.
func DefaultEntitlementMarkers() []string { return []string{"bill", "purchase", "100007"} }

// Classifier translates raw transport failures into the room taxonomy.
type Classifier struct {
	codes   map[int]struct{}
	markers []string
}

// NewClassifier builds a classifier. Nil slices fall back to the defaults.
func NewClassifier(codes []int, markers []string) *Classifier {
	if codes == nil {
		codes = DefaultEntitlementCodes()
	}
	if markers == nil {
		markers = DefaultEntitlementMarkers()
	}
	c := &Classifier{codes: make(map[int]struct{}, len(codes))}
	for _, code := range codes {
		c.codes[code] = struct{}{}
	}
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			c.markers = append(c.markers, m)
		}
	}
	return c
}

// IsEntitlement reports whether a vendor failure is a billing/permission
// refusal: its code is listed, or its message contains a marker.
func (c *Classifier) IsEntitlement(code int, message string) bool {
	if _, ok := c.codes[code]; ok {
		return true
	}
	msg := strings.ToLower(message)
	for _, m := range c.markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Classify maps a createRoom failure to its kind. Join and exit failures use
// ClassifyTransient since entitlement only gates creation.
func (c *Classifier) Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	code, msg := vendorPayload(err)
	if c.IsEntitlement(code, msg) {
		return KindEntitlementDenied
	}
	return KindTransientUnavailable
}

// ClassifyTransient maps a join/fetch/exit failure to its kind.
func (c *Classifier) ClassifyTransient(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindTransientUnavailable
}

// Wrap builds a classified Error for op carrying the vendor payload of err.
func (c *Classifier) Wrap(kind Kind, op, roomID string, err error) *Error {
	code, msg := vendorPayload(err)
	return &Error{Kind: kind, Op: op, RoomID: roomID, Code: code, Message: msg, Err: err}
}

// LogError logs a classified failure with its context.
func (c *Classifier) LogError(e *Error, next string) {
	ev := log.Warn()
	if e.Kind == KindEntitlementDenied || e.Kind == KindRoomUnavailable || e.Kind == KindInvalidRoomID {
		ev = log.Error()
	}
	ev = ev.Str("module", "room").
		Str("op", e.Op).
		Str("room", e.RoomID).
		Str("kind", e.Kind.String()).
		Int("code", e.Code).
		Str("message", e.Message).
		Str("next", next)
	if e.Retry != nil {
		ev = ev.Int("attempts", e.Retry.Attempts).Str("pattern", e.Retry.Pattern())
	}
	ev.Msg("room operation failed")
}

func vendorPayload(err error) (int, string) {
	if err == nil {
		return 0, ""
	}
	if vendor, ok := rtc.AsError(err); ok {
		return vendor.Code, vendor.Message
	}
	return 0, err.Error()
}
