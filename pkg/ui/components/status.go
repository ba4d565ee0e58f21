package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/rescp17/tutorCall/internal/style"
)

// StatusLevel represents the severity level of a status
type StatusLevel int

const (
	StatusInfo StatusLevel = iota
	StatusSuccess
	StatusWarning
	StatusError
)

// StatusMessage is one line of the call log.
type StatusMessage struct {
	Level     StatusLevel
	Message   string
	Timestamp time.Time
}

// StatusIndicator keeps the most recent status messages of a call.
type StatusIndicator struct {
	messages    []StatusMessage
	maxMessages int
	showTime    bool
	now         func() time.Time
}

func NewStatusIndicator(maxMessages int, showTime bool) *StatusIndicator {
	if maxMessages < 1 {
		maxMessages = 1
	}
	return &StatusIndicator{
		maxMessages: maxMessages,
		showTime:    showTime,
		now:         time.Now,
	}
}

// Add appends a message, dropping the oldest beyond the limit.
func (si *StatusIndicator) Add(level StatusLevel, format string, args ...any) {
	si.messages = append(si.messages, StatusMessage{
		Level:     level,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: si.now(),
	})
	if len(si.messages) > si.maxMessages {
		si.messages = si.messages[len(si.messages)-si.maxMessages:]
	}
}

func (si *StatusIndicator) Clear() {
	si.messages = si.messages[:0]
}

// Latest returns the most recent message, if any.
func (si *StatusIndicator) Latest() (StatusMessage, bool) {
	if len(si.messages) == 0 {
		return StatusMessage{}, false
	}
	return si.messages[len(si.messages)-1], true
}

func (si *StatusIndicator) Len() int { return len(si.messages) }

// Render renders all messages, oldest first.
func (si *StatusIndicator) Render() string {
	var b strings.Builder
	for i, msg := range si.messages {
		if i > 0 {
			b.WriteString("\n")
		}
		if si.showTime {
			b.WriteString(style.LabelStyle.Render(msg.Timestamp.Format("15:04:05")))
			b.WriteString(" ")
		}
		b.WriteString(statusIcon(msg.Level))
		b.WriteString(" ")
		b.WriteString(statusStyle(msg.Level).Render(msg.Message))
	}
	return b.String()
}

func statusIcon(level StatusLevel) string {
	switch level {
	case StatusSuccess:
		return "+"
	case StatusWarning:
		return "!"
	case StatusError:
		return "x"
	default:
		return "-"
	}
}

func statusStyle(level StatusLevel) lipgloss.Style {
	switch level {
	case StatusSuccess:
		return style.SuccessStyle
	case StatusWarning:
		return style.WarningStyle
	case StatusError:
		return style.ErrorStyle
	default:
		return style.InfoStyle
	}
}
