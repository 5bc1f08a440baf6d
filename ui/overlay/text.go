package overlay

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TextOverlay shows pre-rendered text until any key is pressed.
type TextOverlay struct {
	content   string
	OnDismiss func()
	Dismissed bool
}

func NewTextOverlay(content string) *TextOverlay {
	return &TextOverlay{content: content}
}

// HandleKeyPress dismisses the overlay. It always returns true.
func (t *TextOverlay) HandleKeyPress(msg tea.KeyMsg) bool {
	t.Dismissed = true
	if t.OnDismiss != nil {
		t.OnDismiss()
	}
	return true
}

func (t *TextOverlay) Render() string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2)
	return style.Render(t.content)
}
