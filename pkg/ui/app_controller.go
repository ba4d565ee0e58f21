package ui

import (
	appevents "github.com/rescp17/tutorCall/internal/app_events"
	"github.com/rescp17/tutorCall/pkg/videocall"
)

// AppController defines the interface that the TUI uses to interact with the backend application logic.
type AppController interface {
	// UIMessages returns a read-only channel for receiving messages from the backend to the UI.
	UIMessages() <-chan appevents.AppUIMessage

	// AppEvents returns a write-only channel for the UI to send events to the backend.
	AppEvents() chan<- appevents.AppEvent

	// Subscribe returns the latest session snapshots until cancelled.
	Subscribe() (<-chan videocall.Snapshot, func())
}

var _ AppController = (*videocall.App)(nil)
