package overlay

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

const (
	maskRune      = "•"
	minPromptW    = 44
	maxMaskedRune = 32
)

// PassphraseOverlay renders a masked secret prompt. It never holds the
// secret; the caller passes only the number of runes typed so far.
type PassphraseOverlay struct {
	Title  string
	Detail string
	Queued int // prompts waiting behind this one
	width  int
}

// NewPassphraseOverlay creates a prompt overlay with the given title.
func NewPassphraseOverlay(title, detail string) *PassphraseOverlay {
	return &PassphraseOverlay{Title: title, Detail: detail}
}

// SetWidth sets the available width; the overlay uses at most half of it.
func (p *PassphraseOverlay) SetWidth(width int) {
	p.width = width
}

// mask returns the masked input for n runes. Long input is capped so the
// box keeps its size.
func mask(n int) string {
	if n > maxMaskedRune {
		return strings.Repeat(maskRune, maxMaskedRune-1) + "…"
	}
	return strings.Repeat(maskRune, n)
}

// Render renders the prompt with n runes entered.
func (p *PassphraseOverlay) Render(n int) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2)

	titleStyle := lipgloss.NewStyle().
		Foreground(colorAccent).
		Bold(true).
		MarginBottom(1)

	detailStyle := lipgloss.NewStyle().Foreground(colorDim)

	fieldStyle := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(colorFrame).
		Foreground(colorOK)

	cursorStyle := lipgloss.NewStyle().Foreground(colorInk).Blink(true)
	hintStyle := lipgloss.NewStyle().Foreground(colorHint)

	w := max(p.width/2, minPromptW)
	inner := w - 6 // padding and borders

	title := p.Title
	if runewidth.StringWidth(title) > inner {
		title = runewidth.Truncate(title, inner, "…")
	}

	content := titleStyle.Render(title) + "\n"
	if p.Detail != "" {
		content += detailStyle.Width(inner).Render(p.Detail) + "\n\n"
	}
	content += fieldStyle.Width(inner).Render(mask(n)+cursorStyle.Render("▏")) + "\n\n"

	hint := "enter submit · esc cancel · ctrl+u clear"
	if p.Queued > 0 {
		hint += " · " + plural(p.Queued, "more prompt")
	}
	content += hintStyle.Render(hint)

	return style.Width(w).Render(content)
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}
