package appevents

// AppEvent is a marker interface for events sent from a UI to the App.
// Only types embedding Event satisfy it.
type AppEvent interface {
	isAppEvent()
}

// Event is embedded by every AppEvent.
type Event struct{}

func (Event) isAppEvent() {}

// AppUIMessage is a marker interface for messages sent from the App to a UI.
type AppUIMessage interface {
	isUIMessage()
}

// UIMessage is embedded by every AppUIMessage.
type UIMessage struct{}

func (UIMessage) isUIMessage() {}

// AppErrorMsg reports a failed command to the UI.
type AppErrorMsg struct {
	UIMessage
	Op  string
	Err error
}

var _ AppUIMessage = AppErrorMsg{}
