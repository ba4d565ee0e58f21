package session

import (
	appevents "github.com/rescp17/tutorCall/internal/app_events"
)

// --- UI to App Events ---

// StartSessionEvent asks the App to log in and create-or-join RoomID.
type StartSessionEvent struct {
	appevents.Event
	RoomID        string
	ParticipantID string
	QuestionID    string
}

// EndSessionEvent asks the App to leave the current room.
type EndSessionEvent struct {
	appevents.Event
}

type ToggleCameraEvent struct {
	appevents.Event
}

type ToggleMicrophoneEvent struct {
	appevents.Event
}

var (
	_ appevents.AppEvent = StartSessionEvent{}
	_ appevents.AppEvent = EndSessionEvent{}
	_ appevents.AppEvent = ToggleCameraEvent{}
	_ appevents.AppEvent = ToggleMicrophoneEvent{}
)

// --- App to UI Messages ---

// SessionEndedMsg is sent once a session ended by the user is torn down.
type SessionEndedMsg struct {
	appevents.UIMessage
	RoomID string
}

// DeviceToggledMsg reports the new setting of a device after a toggle.
type DeviceToggledMsg struct {
	appevents.UIMessage
	Device string
	On     bool
}

var (
	_ appevents.AppUIMessage = SessionEndedMsg{}
	_ appevents.AppUIMessage = DeviceToggledMsg{}
)
