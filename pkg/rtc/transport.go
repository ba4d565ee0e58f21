// Package rtc defines the contract between the session core and a
// real-time-communication engine. Nothing in here assumes a vendor.
package rtc

import (
	"context"

	"github.com/pion/rtp"
)

// Authenticator logs a participant into the RTC backend.
type Authenticator interface {
	Login(ctx context.Context, participantID, credential string) error
	Logout(ctx context.Context) error
}

// RoomEngine covers the room primitives used by the orchestrator.
type RoomEngine interface {
	CreateRoom(ctx context.Context, info RoomInfo) error
	EnterRoom(ctx context.Context, roomID string) (RoomInfo, error)
	ExitRoom(ctx context.Context) error
	FetchRoomInfo(ctx context.Context, roomID string, roomType RoomType) (RoomInfo, error)
}

// Devices covers local capture devices. Closing never fails locally.
type Devices interface {
	OpenCamera(ctx context.Context, front bool, quality VideoQuality) error
	CloseCamera()
	OpenMicrophone(ctx context.Context, quality AudioQuality) error
	CloseMicrophone()
}

// Surfaces binds rendering targets. A nil surface unbinds.
type Surfaces interface {
	SetLocalVideoSurface(s VideoSurface)
	SetRemoteVideoSurface(participantID string, s VideoSurface)
}

// EventSource delivers asynchronous transport events. The returned cancel
// func must be called to release the subscription.
type EventSource interface {
	Subscribe() (<-chan Event, func())
}

// Transport is the full adapter surface.
type Transport interface {
	Authenticator
	RoomEngine
	Devices
	Surfaces
	EventSource
}

// VideoSurface is anything that can render RTP video packets.
type VideoSurface interface {
	WriteRTP(pkt *rtp.Packet) error
}
