package wsrtc

import (
	"github.com/pion/webrtc/v4"

	"github.com/rescp17/tutorCall/pkg/rtc"
)

// Request types.
const (
	TypeLogin         = "login"
	TypeLogout        = "logout"
	TypeCreateRoom    = "create_room"
	TypeEnterRoom     = "enter_room"
	TypeExitRoom      = "exit_room"
	TypeFetchRoomInfo = "fetch_room_info"
	TypePublish       = "publish"
	TypeUnpublish     = "unpublish"
)

// Frame types sent by the service.
const (
	TypeResponse        = "response"
	TypeRemoteUserEnter = "remote_user_enter"
	TypeRemoteUserLeave = "remote_user_leave"
	TypeUserVideoState  = "user_video_state"
	TypeUserAudioState  = "user_audio_state"
	TypeKickedOffline   = "kicked_offline"
	TypeUserSigExpired  = "user_sig_expired"
	TypeCandidate       = "candidate"
)

// Media kinds for publish/unpublish.
const (
	KindVideo = "video"
	KindAudio = "audio"
)

// Request is a client-to-service frame. Unused fields are omitted.
type Request struct {
	ID        string                     `json:"id"`
	Type      string                     `json:"type"`
	UserID    string                     `json:"userId,omitempty"`
	UserSig   string                     `json:"userSig,omitempty"`
	SDKAppID  int                        `json:"sdkAppId,omitempty"`
	Room      *rtc.RoomInfo              `json:"room,omitempty"`
	RoomID    string                     `json:"roomId,omitempty"`
	RoomType  *rtc.RoomType              `json:"roomType,omitempty"`
	Kind      string                     `json:"kind,omitempty"`
	Camera    string                     `json:"camera,omitempty"`
	Quality   string                     `json:"quality,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// Frame is a service-to-client message: either a response correlated by ID
// or an unsolicited event.
type Frame struct {
	ID        string                     `json:"id,omitempty"`
	Type      string                     `json:"type"`
	Code      int                        `json:"code"`
	Message   string                     `json:"message,omitempty"`
	Room      *rtc.RoomInfo              `json:"room,omitempty"`
	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	UserID    string                     `json:"userId,omitempty"`
	Available bool                       `json:"available,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// toEvent maps an event frame to a transport event.
func toEvent(f Frame) (rtc.Event, bool) {
	switch f.Type {
	case TypeRemoteUserEnter:
		return rtc.Event{Kind: rtc.EventRemoteJoined, ParticipantID: f.UserID}, true
	case TypeRemoteUserLeave:
		return rtc.Event{Kind: rtc.EventRemoteLeft, ParticipantID: f.UserID}, true
	case TypeUserVideoState:
		return rtc.Event{Kind: rtc.EventRemoteVideoChanged, ParticipantID: f.UserID, Available: f.Available}, true
	case TypeUserAudioState:
		return rtc.Event{Kind: rtc.EventRemoteAudioChanged, ParticipantID: f.UserID, Available: f.Available}, true
	case TypeKickedOffline, TypeUserSigExpired:
		return rtc.Event{Kind: rtc.EventAuthExpired, Reason: f.Type}, true
	default:
		return rtc.Event{}, false
	}
}
