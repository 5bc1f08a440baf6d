package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/keys"
)

var keyStyle = lipgloss.NewStyle().Foreground(ColorSubtle)

var descStyle = lipgloss.NewStyle().Foreground(ColorMuted)

var sepStyle = lipgloss.NewStyle().Foreground(ColorOverlay)

var actionGroupStyle = lipgloss.NewStyle().Foreground(ColorRose)

var separator = " • "
var verticalSeparator = " │ "

var menuStyle = lipgloss.NewStyle().
	Foreground(ColorFoam)

// MenuState represents different states the menu can be in
type MenuState int

const (
	StateDefault MenuState = iota
	StateEmpty
	StatePrompt
)

type Menu struct {
	options       []keys.KeyName
	height, width int
	state         MenuState
	selected      *device.Entry

	// keyDown is the key which is pressed. The default is -1.
	keyDown keys.KeyName

	// systemGroupSize is the number of trailing items rendered without the
	// action color.
	systemGroupSize int
}

var emptyMenuOptions = []keys.KeyName{keys.KeyRefresh, keys.KeyToggleLog, keys.KeyHelp, keys.KeyQuit}
var systemMenuOptions = []keys.KeyName{keys.KeyRefresh, keys.KeyToggleLog, keys.KeyHelp, keys.KeyQuit}

func NewMenu() *Menu {
	m := &Menu{
		state:   StateEmpty,
		keyDown: -1,
	}
	m.updateOptions()
	return m
}

func (m *Menu) Keydown(name keys.KeyName) {
	m.keyDown = name
}

func (m *Menu) ClearKeydown() {
	m.keyDown = -1
}

// SetState updates the menu state and options accordingly
func (m *Menu) SetState(state MenuState) {
	m.state = state
	m.updateOptions()
}

// SetSelected updates the selected device and refreshes the options. A nil
// entry means the list is empty.
func (m *Menu) SetSelected(e *device.Entry) {
	m.selected = e
	if m.state != StatePrompt {
		if e != nil {
			m.state = StateDefault
		} else {
			m.state = StateEmpty
		}
	}
	m.updateOptions()
}

// updateOptions updates the menu options based on current state and device
func (m *Menu) updateOptions() {
	switch m.state {
	case StateEmpty:
		m.options = emptyMenuOptions
		m.systemGroupSize = len(emptyMenuOptions)
	case StatePrompt:
		m.options = keys.PromptKeys
		m.systemGroupSize = 0
	default:
		m.addDeviceOptions()
	}
}

// addDeviceOptions offers the operations that make sense for the selected
// device's state.
func (m *Menu) addDeviceOptions() {
	var actionGroup []keys.KeyName
	if m.selected != nil && m.selected.State == device.StateMounted {
		actionGroup = []keys.KeyName{keys.KeyUnmount, keys.KeyCopy, keys.KeyEject}
	} else {
		actionGroup = []keys.KeyName{keys.KeyMount, keys.KeyMountExit, keys.KeyUnmount, keys.KeyEject}
	}
	options := make([]keys.KeyName, 0, len(actionGroup)+len(systemMenuOptions))
	options = append(options, actionGroup...)
	options = append(options, systemMenuOptions...)
	m.options = options
	m.systemGroupSize = len(systemMenuOptions)
}

// SetSize sets the width of the window. The menu will be centered horizontally within this width.
func (m *Menu) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Menu) String() string {
	var s strings.Builder

	actionEnd := len(m.options) - m.systemGroupSize
	for i, k := range m.options {
		help := keys.GlobalkeyBindings[k].Help()

		var (
			localActionStyle = actionGroupStyle
			localKeyStyle    = keyStyle
			localDescStyle   = descStyle
		)
		if m.keyDown == k {
			localActionStyle = localActionStyle.Underline(true)
			localKeyStyle = localKeyStyle.Underline(true)
			localDescStyle = localDescStyle.Underline(true)
		}

		if i < actionEnd {
			s.WriteString(localActionStyle.Render(help.Key + " " + help.Desc))
		} else {
			s.WriteString(localKeyStyle.Render(help.Key))
			s.WriteString(descStyle.Render(" "))
			s.WriteString(localDescStyle.Render(help.Desc))
		}

		if i != len(m.options)-1 {
			if i == actionEnd-1 {
				s.WriteString(sepStyle.Render(verticalSeparator))
			} else {
				s.WriteString(sepStyle.Render(separator))
			}
		}
	}

	centeredMenuText := menuStyle.Render(s.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, centeredMenuText)
}
