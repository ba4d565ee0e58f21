package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	appevents "github.com/rescp17/tutorCall/internal/app_events"
	sessionEvent "github.com/rescp17/tutorCall/internal/app_events/session"
	"github.com/rescp17/tutorCall/internal/style"
	"github.com/rescp17/tutorCall/internal/util"
	"github.com/rescp17/tutorCall/pkg/room"
	"github.com/rescp17/tutorCall/pkg/ui/components"
	"github.com/rescp17/tutorCall/pkg/videocall"
)

const (
	labelWidth  = 12
	remoteWidth = 24
	statusLines = 5
)

type KeyMap struct {
	Camera     key.Binding
	Microphone key.Binding
	End        key.Binding
	Retry      key.Binding
	Quit       key.Binding
}

// DefaultKeyMap provides sensible default keybindings.
var DefaultKeyMap = KeyMap{
	Camera:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "camera")),
	Microphone: key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "microphone")),
	End:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end call")),
	Retry:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
	Quit:       key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Camera, k.Microphone, k.End, k.Retry, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type snapshotMsg struct {
	snap videocall.Snapshot
	ok   bool
}

type tickMsg time.Time

// Model is the call screen.
type Model struct {
	ctrl    AppController
	req     videocall.StartRequest
	snaps   <-chan videocall.Snapshot
	cancel  func()
	snap    videocall.Snapshot
	spinner spinner.Model
	help    help.Model
	keys    KeyMap
	status  *components.StatusIndicator
	now     time.Time
}

// NewModel builds the call screen for req. The session is started from Init.
func NewModel(ctrl AppController, req videocall.StartRequest) Model {
	snaps, cancel := ctrl.Subscribe()
	return Model{
		ctrl:    ctrl,
		req:     req,
		snaps:   snaps,
		cancel:  cancel,
		spinner: style.NewSpinner(),
		help:    help.New(),
		keys:    DefaultKeyMap,
		status:  components.NewStatusIndicator(statusLines, true),
		now:     time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForSnapshot(),
		m.listenForAppMessages(),
		m.sendEvent(m.startEvent()),
		tick(),
	)
}

func (m Model) startEvent() sessionEvent.StartSessionEvent {
	return sessionEvent.StartSessionEvent{
		RoomID:        m.req.RoomID,
		ParticipantID: m.req.ParticipantID,
		QuestionID:    m.req.QuestionID,
	}
}

func (m Model) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		s, ok := <-m.snaps
		return snapshotMsg{snap: s, ok: ok}
	}
}

// listenForAppMessages is a command that listens for messages from the app controller.
func (m Model) listenForAppMessages() tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-m.ctrl.UIMessages()
		if !ok {
			return nil
		}
		return msg
	}
}

// sendEvent hands ev to the app without blocking Update.
func (m Model) sendEvent(ev appevents.AppEvent) tea.Cmd {
	events := m.ctrl.AppEvents()
	return func() tea.Msg {
		events <- ev
		return nil
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil
	case snapshotMsg:
		if !msg.ok {
			return m, nil
		}
		m.observe(msg.snap)
		return m, m.waitForSnapshot()
	case appevents.AppErrorMsg:
		m.status.Add(components.StatusError, "%s: %v", msg.Op, msg.Err)
		return m, m.listenForAppMessages()
	case sessionEvent.SessionEndedMsg:
		m.status.Add(components.StatusInfo, "left room %s", msg.RoomID)
		return m, m.listenForAppMessages()
	case sessionEvent.DeviceToggledMsg:
		m.status.Add(components.StatusInfo, "%s %s", msg.Device, onOff(msg.On))
		return m, m.listenForAppMessages()
	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancel()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Camera):
		if !m.snap.InRoom() {
			m.status.Add(components.StatusWarning, "no active call")
			return m, nil
		}
		return m, m.sendEvent(sessionEvent.ToggleCameraEvent{})
	case key.Matches(msg, m.keys.Microphone):
		if !m.snap.InRoom() {
			m.status.Add(components.StatusWarning, "no active call")
			return m, nil
		}
		return m, m.sendEvent(sessionEvent.ToggleMicrophoneEvent{})
	case key.Matches(msg, m.keys.End):
		if m.snap.State == room.StateIdle || m.snap.State == room.StateFailed {
			return m, nil
		}
		m.status.Add(components.StatusInfo, "ending call")
		return m, m.sendEvent(sessionEvent.EndSessionEvent{})
	case key.Matches(msg, m.keys.Retry):
		if !m.canRetry() {
			return m, nil
		}
		m.status.Add(components.StatusInfo, "joining %s", m.req.RoomID)
		return m, m.sendEvent(m.startEvent())
	}
	return m, nil
}

func (m Model) canRetry() bool {
	switch m.snap.State {
	case room.StateFailed:
		return true
	case room.StateIdle:
		return m.snap.LastError != ""
	default:
		return false
	}
}

// observe records state transitions worth showing in the log.
func (m *Model) observe(next videocall.Snapshot) {
	prev := m.snap
	m.snap = next
	if next.State != prev.State {
		switch next.State {
		case room.StateInRoom:
			m.status.Add(components.StatusSuccess, "in room %s", next.RoomID)
		case room.StateFailed:
			m.status.Add(components.StatusError, "call failed: %s", next.LastError)
		}
	}
	if next.Remote != prev.Remote {
		switch {
		case next.Remote != "":
			m.status.Add(components.StatusSuccess, "%s joined", next.Remote)
		case prev.Remote != "":
			m.status.Add(components.StatusWarning, "%s left", prev.Remote)
		}
	}
}

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(style.TitleStyle.Render("Tutor call"))
	b.WriteString("\n\n")

	stateLine := style.HighlightStyle.Render(m.snap.State.String())
	if m.snap.State.Busy() {
		stateLine = m.spinner.View() + " " + stateLine
	}
	rows := []struct{ label, value string }{
		{"state", stateLine},
		{"room", valueOr(m.snap.RoomID, m.req.RoomID)},
		{"participant", valueOr(m.snap.Participant, m.req.ParticipantID)},
		{"student", util.ParticipantLabel(m.snap.Remote, remoteWidth)},
		{"video/audio", fmt.Sprintf("%s / %s", style.Switch(m.snap.RemoteVideo), style.Switch(m.snap.RemoteAudio))},
		{"camera", style.Switch(m.snap.Media.CameraOn)},
		{"microphone", style.Switch(m.snap.Media.MicrophoneOn)},
	}
	if m.snap.InRoom() {
		rows = append(rows, struct{ label, value string }{"elapsed", util.FormatElapsed(m.snap.Elapsed(m.now))})
	}

	var panel strings.Builder
	for i, r := range rows {
		if i > 0 {
			panel.WriteString("\n")
		}
		panel.WriteString(style.LabelStyle.Render(util.PadRight(r.label, labelWidth)))
		panel.WriteString(" ")
		panel.WriteString(r.value)
	}
	b.WriteString(style.PanelStyle.Render(panel.String()))
	b.WriteString("\n")

	if m.snap.LastError != "" {
		b.WriteString("\n")
		b.WriteString(style.ErrorStyle.Render(fmt.Sprintf("%s: %s", m.snap.LastErrorKind, m.snap.LastError)))
		b.WriteString("\n")
	}
	if m.status.Len() > 0 {
		b.WriteString("\n")
		b.WriteString(m.status.Render())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(style.HelpStyle.Render(m.help.View(m.keys)))
	return style.DocStyle.Render(b.String())
}

func valueOr(v, fallback string) string {
	if v == "" {
		v = fallback
	}
	return style.ValueStyle.Render(v)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
