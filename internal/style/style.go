package style

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorBlue      = lipgloss.Color("39")
	colorGreen     = lipgloss.Color("42")
	colorOrange    = lipgloss.Color("214")
	colorRed       = lipgloss.Color("196")
)

// --- General Purpose Styles ---
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	WarningStyle = lipgloss.NewStyle().Foreground(colorOrange)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen)
	InfoStyle    = lipgloss.NewStyle().Foreground(colorBlue)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
)

// --- Call Screen Styles ---
var (
	DocStyle       = lipgloss.NewStyle().Margin(1, 2)
	TitleStyle     = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	PanelStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray).Padding(0, 1)
	LabelStyle     = lipgloss.NewStyle().Foreground(colorDarkGray)
	ValueStyle     = lipgloss.NewStyle().Foreground(colorLightGray)
	HighlightStyle = lipgloss.NewStyle().Foreground(colorCyan)
	OnStyle        = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	OffStyle       = lipgloss.NewStyle().Foreground(colorDarkGray)
)

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// Switch renders a device flag.
func Switch(on bool) string {
	if on {
		return OnStyle.Render("on")
	}
	return OffStyle.Render("off")
}
