package overlay

import (
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// Palette shared by the overlays. Same values as ui/theme.go (Rosé Pine Moon).
var (
	colorBackdrop = lipgloss.Color("#232136")
	colorFrame    = lipgloss.Color("#393552")
	colorHint     = lipgloss.Color("#6e6a86")
	colorDim      = lipgloss.Color("#908caa")
	colorInk      = lipgloss.Color("#e0def4")

	colorDanger = lipgloss.Color("#eb6f92")
	colorOK     = lipgloss.Color("#9ccfd8")
	colorAccent = lipgloss.Color("#c4a7e7")
)

// styleFields applies the palette to one set of huh field styles.
func styleFields(f huh.FieldStyles) huh.FieldStyles {
	f.Base = f.Base.BorderForeground(colorAccent)
	f.Card = f.Base
	f.Title = f.Title.Foreground(colorAccent).Bold(true)
	f.NoteTitle = f.NoteTitle.Foreground(colorAccent).Bold(true).MarginBottom(1)
	f.Description = f.Description.Foreground(colorHint)
	f.ErrorIndicator = f.ErrorIndicator.Foreground(colorDanger)
	f.ErrorMessage = f.ErrorMessage.Foreground(colorDanger)

	// select fields: restart count
	f.SelectSelector = f.SelectSelector.Foreground(colorAccent).SetString("> ")
	f.Option = f.Option.Foreground(colorInk)
	f.SelectedOption = f.SelectedOption.Foreground(colorOK)

	// confirm fields: agent, audit and telemetry toggles
	f.FocusedButton = f.FocusedButton.Foreground(colorBackdrop).Background(colorAccent).Bold(true)
	f.BlurredButton = f.BlurredButton.Foreground(colorDim).Background(colorFrame)
	f.Next = f.FocusedButton

	f.TextInput.Cursor = f.TextInput.Cursor.Foreground(colorOK)
	f.TextInput.Placeholder = f.TextInput.Placeholder.Foreground(colorHint)
	f.TextInput.Prompt = f.TextInput.Prompt.Foreground(colorAccent)
	f.TextInput.Text = f.TextInput.Text.Foreground(colorInk)
	return f
}

// FormTheme is the huh theme for the setup form.
func FormTheme() *huh.Theme {
	t := huh.ThemeBase()
	t.Focused = styleFields(t.Focused)

	t.Blurred = t.Focused
	t.Blurred.Base = t.Blurred.Base.BorderStyle(lipgloss.HiddenBorder())
	t.Blurred.Card = t.Blurred.Base
	t.Blurred.Title = t.Blurred.Title.Foreground(colorDim).Bold(false)
	t.Blurred.NextIndicator = lipgloss.NewStyle()
	t.Blurred.PrevIndicator = lipgloss.NewStyle()

	t.Group.Title = t.Focused.Title
	t.Group.Description = t.Focused.Description
	return t
}
