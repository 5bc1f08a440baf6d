package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// StatusBarData holds the contextual information displayed in the status bar.
type StatusBarData struct {
	Devices  int
	Mounted  int
	Busy     int  // outstanding background operations
	Pending  int  // prompts queued behind the active one
	Agent    bool // polkit agent registered
	Quitting bool
}

// StatusBar is the top status bar component.
type StatusBar struct {
	width   int
	data    StatusBarData
	spinner *spinner.Model
}

// NewStatusBar creates a new StatusBar.
func NewStatusBar(spinner *spinner.Model) *StatusBar {
	return &StatusBar{spinner: spinner}
}

// SetSize sets the terminal width for the status bar.
func (s *StatusBar) SetSize(width int) {
	s.width = width
}

// SetData updates the status bar content.
func (s *StatusBar) SetData(data StatusBarData) {
	s.data = data
}

var statusBarStyle = lipgloss.NewStyle().
	Background(ColorSurface).
	Foreground(ColorText).
	Padding(0, 1)

var statusBarAppNameStyle = lipgloss.NewStyle().
	Foreground(ColorIris).
	Background(ColorSurface).
	Bold(true)

var statusBarSepStyle = lipgloss.NewStyle().
	Foreground(ColorOverlay).
	Background(ColorSurface)

var statusBarTextStyle = lipgloss.NewStyle().
	Foreground(ColorText).
	Background(ColorSurface)

var statusBarMutedStyle = lipgloss.NewStyle().
	Foreground(ColorSubtle).
	Background(ColorSurface)

var statusBarBusyStyle = lipgloss.NewStyle().
	Foreground(ColorGold).
	Background(ColorSurface)

const statusBarSep = " │ "

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func (s *StatusBar) String() string {
	if s.width < 10 {
		return ""
	}

	parts := make([]string, 0, 5)
	parts = append(parts, statusBarAppNameStyle.Render("mountie"))
	parts = append(parts, statusBarTextStyle.Render(
		fmt.Sprintf("%s, %d mounted", plural(s.data.Devices, "device"), s.data.Mounted)))

	if s.data.Busy > 0 {
		spin := ""
		if s.spinner != nil {
			spin = s.spinner.View() + " "
		}
		parts = append(parts, statusBarBusyStyle.Render(spin+plural(s.data.Busy, "operation")))
	}
	if s.data.Pending > 0 {
		parts = append(parts, statusBarBusyStyle.Render(fmt.Sprintf("%d queued", s.data.Pending)))
	}
	if s.data.Agent {
		parts = append(parts, statusBarMutedStyle.Render("polkit agent"))
	}
	if s.data.Quitting {
		parts = append(parts, statusBarBusyStyle.Render("exiting"))
	}

	sep := statusBarSepStyle.Render(statusBarSep)
	content := strings.Join(parts, sep)

	return statusBarStyle.Width(s.width).Render(ansi.Truncate(content, s.width-2, "…"))
}

var statusLineStyle = lipgloss.NewStyle().
	Foreground(ColorSubtle).
	Padding(0, 1)

var statusLineErrorStyle = lipgloss.NewStyle().
	Foreground(ColorLove).
	Padding(0, 1)

// StatusLine renders the session status text on one line.
func StatusLine(text string, isError bool, width int) string {
	style := statusLineStyle
	if isError {
		style = statusLineErrorStyle
	}
	if width > 2 {
		text = ansi.Truncate(text, width-2, "…")
	}
	return style.Width(width).Render(text)
}
