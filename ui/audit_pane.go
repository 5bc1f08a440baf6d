package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	zone "github.com/lrstanley/bubblezone"
)

// AuditEventDisplay is a pre-formatted event for rendering in the audit pane.
type AuditEventDisplay struct {
	Time    string         // formatted as "HH:MM"
	Kind    string         // event kind string (e.g. "device_mount")
	Icon    string         // single-char icon
	Message string         // human-readable message
	Color   lipgloss.Color // icon color
	Level   string         // "info", "warn", "error"
}

// AuditPane renders a scrollable list of recent audit events below the device list.
type AuditPane struct {
	events   []AuditEventDisplay
	viewport viewport.Model
	width    int
	height   int
	visible  bool
}

// NewAuditPane creates a new AuditPane (visible by default).
func NewAuditPane() *AuditPane {
	return &AuditPane{
		visible:  true,
		viewport: viewport.New(0, 0),
	}
}

// SetSize updates the pane dimensions and rebuilds the viewport content.
func (p *AuditPane) SetSize(w, h int) {
	p.width = w
	p.height = h
	// Reserve 1 line for the header.
	p.viewport.Width = w
	p.viewport.Height = max(h-1, 0)
	p.viewport.SetContent(p.renderBody())
}

// Height returns the height the pane was sized to.
func (p *AuditPane) Height() int {
	return p.height
}

// SetEvents replaces the event list and refreshes the viewport.
func (p *AuditPane) SetEvents(events []AuditEventDisplay) {
	p.events = events
	p.viewport.SetContent(p.renderBody())
	p.viewport.GotoTop()
}

// ScrollDown scrolls the viewport down by n lines.
func (p *AuditPane) ScrollDown(n int) {
	p.viewport.ScrollDown(n)
}

// ScrollUp scrolls the viewport up by n lines.
func (p *AuditPane) ScrollUp(n int) {
	p.viewport.ScrollUp(n)
}

// Visible returns whether the pane is currently shown.
func (p *AuditPane) Visible() bool {
	return p.visible
}

// ToggleVisible flips the visibility state.
func (p *AuditPane) ToggleVisible() {
	p.visible = !p.visible
}

var (
	auditHeaderStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	auditTimeStyle   = lipgloss.NewStyle().Foreground(ColorMuted)
	auditMsgStyle    = lipgloss.NewStyle().Foreground(ColorText)
	auditWarnStyle   = lipgloss.NewStyle().Foreground(ColorGold)
	auditErrorStyle  = lipgloss.NewStyle().Foreground(ColorLove)
	auditEmptyStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
)

// String renders the audit pane: a 1-line header + scrollable body.
func (p *AuditPane) String() string {
	return zone.Mark(ZoneAuditPane, lipgloss.JoinVertical(lipgloss.Left, p.renderHeader(), p.viewport.View()))
}

func (p *AuditPane) renderHeader() string {
	left := "── log "
	fill := p.width - lipgloss.Width(left)
	if fill < 0 {
		fill = 0
	}
	return auditHeaderStyle.Render(left + strings.Repeat("─", fill))
}

func (p *AuditPane) renderBody() string {
	if len(p.events) == 0 {
		return auditEmptyStyle.Render("· no events")
	}

	lines := make([]string, 0, len(p.events))
	for _, e := range p.events {
		msgStyle := auditMsgStyle
		switch e.Level {
		case "warn":
			msgStyle = auditWarnStyle
		case "error":
			msgStyle = auditErrorStyle
		}
		prefix := e.Time + " " + e.Icon + " "
		msg := e.Message
		if avail := p.width - lipgloss.Width(prefix); p.width > 0 && avail > 1 {
			msg = ansi.Truncate(msg, avail, "…")
		}
		icon := lipgloss.NewStyle().Foreground(e.Color).Render(e.Icon)
		lines = append(lines, auditTimeStyle.Render(e.Time)+" "+icon+" "+msgStyle.Render(msg))
	}
	return strings.Join(lines, "\n")
}

// EventKindIcon returns the icon and color for a given event kind string.
// Used by the app layer when building AuditEventDisplay values.
func EventKindIcon(kind string) (icon string, color lipgloss.Color) {
	switch kind {
	case "device_mount":
		return "▲", ColorFoam
	case "device_unmount":
		return "▽", ColorSubtle
	case "device_eject":
		return "⏏", ColorGold
	case "device_refresh":
		return "⟳", ColorMuted
	case "stale_result":
		return "~", ColorMuted
	case "agent_user_chosen":
		return "◆", ColorIris
	case "agent_password_requested":
		return "?", ColorGold
	case "agent_password_answered":
		return "✓", ColorFoam
	case "agent_password_cancelled":
		return "✕", ColorMuted
	case "operation_failed", "error":
		return "!", ColorLove
	default:
		return "·", ColorMuted
	}
}
