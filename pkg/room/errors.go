package room

import (
	"errors"
	"fmt"
)

// Kind is the taxonomy every transport failure is translated into before it
// leaves the orchestrator.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidRoomID: empty id after normalization. Never retried.
	KindInvalidRoomID
	// KindEntitlementDenied: vendor refused creation for billing/permission reasons.
	KindEntitlementDenied
	// KindTransientUnavailable: any other create/join/exit failure.
	KindTransientUnavailable
	// KindRoomUnavailable: join retries exhausted.
	KindRoomUnavailable
	// KindBusy: another room is still being set up.
	KindBusy
	// KindCancelled: the attempt was stopped by Exit or its context.
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRoomID:
		return "invalid_room_id"
	case KindEntitlementDenied:
		return "entitlement_denied"
	case KindTransientUnavailable:
		return "transient_unavailable"
	case KindRoomUnavailable:
		return "room_unavailable"
	case KindBusy:
		return "busy"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is a classified room failure. Code and Message carry the raw vendor
// payload for diagnostics only.
type Error struct {
	Kind    Kind
	Op      string
	RoomID  string
	Code    int
	Message string
	Retry   *RetryContext
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidRoomID:
		return fmt.Sprintf("invalid room id %q: %s", e.RoomID, e.Message)
	case KindRoomUnavailable:
		return fmt.Sprintf("room %s unavailable after retries: %s", e.RoomID, e.Message)
	}
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.RoomID != "" {
		msg += " (room " + e.RoomID + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind so callers can use errors.Is(err, room.ErrRoomUnavailable).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrInvalidRoomID        = &Error{Kind: KindInvalidRoomID}
	ErrEntitlementDenied    = &Error{Kind: KindEntitlementDenied}
	ErrTransientUnavailable = &Error{Kind: KindTransientUnavailable}
	ErrRoomUnavailable      = &Error{Kind: KindRoomUnavailable}
	ErrBusy                 = &Error{Kind: KindBusy}
	ErrCancelled            = &Error{Kind: KindCancelled}
)

// KindOf returns the taxonomy kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTerminal reports whether err should be shown to the user with a retry
// affordance.
func IsTerminal(err error) bool {
	switch KindOf(err) {
	case KindInvalidRoomID, KindEntitlementDenied, KindRoomUnavailable, KindTransientUnavailable:
		return true
	default:
		return false
	}
}
