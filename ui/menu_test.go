package ui

import (
	"testing"

	"github.com/charmbracelet/x/ansi"
	"github.com/kastheco/mountie/device"
	"github.com/stretchr/testify/assert"
)

func TestMenu_EmptyShowsSystemKeys(t *testing.T) {
	m := NewMenu()
	m.SetSize(140, 1)
	m.SetSelected(nil)

	out := ansi.Strip(m.String())
	assert.Contains(t, out, "r refresh")
	assert.Contains(t, out, "q quit")
	assert.NotContains(t, out, "m mount")
}

func TestMenu_UnmountedDeviceOffersMount(t *testing.T) {
	m := NewMenu()
	m.SetSize(140, 1)
	m.SetSelected(&device.Entry{State: device.StateLocked})

	out := ansi.Strip(m.String())
	assert.Contains(t, out, "m mount")
	assert.Contains(t, out, "M mount & exit")
	assert.Contains(t, out, "e eject")
	assert.NotContains(t, out, "copy path")
}

func TestMenu_MountedDeviceOffersCopy(t *testing.T) {
	m := NewMenu()
	m.SetSize(140, 1)
	m.SetSelected(&device.Entry{State: device.StateMounted})

	out := ansi.Strip(m.String())
	assert.Contains(t, out, "u unmount")
	assert.Contains(t, out, "y copy path")
	assert.NotContains(t, out, "M mount & exit")
}

func TestMenu_PromptStateSurvivesSelection(t *testing.T) {
	m := NewMenu()
	m.SetSize(140, 1)
	m.SetState(StatePrompt)
	m.SetSelected(&device.Entry{State: device.StateMounted})

	out := ansi.Strip(m.String())
	assert.Contains(t, out, "enter submit")
	assert.Contains(t, out, "esc cancel")
	assert.NotContains(t, out, "unmount")

	m.SetState(StateDefault)
	assert.Contains(t, ansi.Strip(m.String()), "u unmount")
}
