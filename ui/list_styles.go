package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/kastheco/mountie/device"
)

const (
	mountedIcon   = "● "
	unlockedIcon  = "◐ "
	lockedIcon    = "◆ "
	unmountedIcon = "○ "
)

var rowStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Foreground(ColorText)

var evenRowStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Background(ColorSurface).
	Foreground(ColorText)

var selectedRowStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Background(ColorIris).
	Foreground(ColorBase)

// Active (unfocused) style, a muted version of selected. Used while a prompt
// owns the keyboard.
var activeRowStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Background(ColorOverlay).
	Foreground(ColorText)

var listHeaderStyle = lipgloss.NewStyle().
	Padding(0, 1).
	Foreground(ColorMuted)

var emptyListStyle = lipgloss.NewStyle().
	Padding(1, 1).
	Foreground(ColorMuted)

var mountPointStyle = lipgloss.NewStyle().
	Foreground(ColorSubtle)

// listBorderStyle wraps the device list in a subtle rounded border.
var listBorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorOverlay).
	Padding(0, 1)

// stateIcon returns the glyph and color for a device state.
func stateIcon(s device.State) (string, lipgloss.Color) {
	switch s {
	case device.StateMounted:
		return mountedIcon, ColorFoam
	case device.StateUnmountedUnlocked:
		return unlockedIcon, ColorRose
	case device.StateLocked:
		return lockedIcon, ColorGold
	default:
		return unmountedIcon, ColorMuted
	}
}
