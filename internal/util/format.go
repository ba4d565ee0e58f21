package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
)

// FormatElapsed renders a call duration as m:ss, or h:mm:ss from one hour on.
// Negative durations render as 0:00.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// PadRight pads or truncates str to exactly width terminal cells.
func PadRight(str string, width int) string {
	w := runewidth.StringWidth(str)
	if w > width {
		return runewidth.Truncate(str, width, "...")
	}
	return str + strings.Repeat(" ", width-w)
}

// ParticipantLabel is the display form of a participant id: a dash when
// nobody is there, otherwise the id cut to width cells.
func ParticipantLabel(id string, width int) string {
	if id == "" {
		return "-"
	}
	return runewidth.Truncate(id, width, "...")
}
