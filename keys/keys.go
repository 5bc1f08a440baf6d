package keys

import (
	"github.com/charmbracelet/bubbles/key"
)

type KeyName int

const (
	KeyUp KeyName = iota
	KeyDown
	KeyFirst
	KeyLast
	KeyEnter
	KeyMount
	KeyMountExit // Mount the selected device and exit once it is mounted
	KeyUnmount
	KeyEject
	KeyRefresh
	KeyCopy      // Copy the selected mount point to the clipboard
	KeyToggleLog // Show or hide the audit log pane
	KeyHelp
	KeyQuit

	// -- Prompt keybindings, only looked up while a passphrase prompt is open --

	KeySubmit
	KeyCancel
	KeyClearInput
	KeyBackspace

	KeyInterrupt // ctrl+c, always quits
)

// GlobalKeyStringsMap is a global, immutable map string to keybinding.
var GlobalKeyStringsMap = map[string]KeyName{
	"up":     KeyUp,
	"k":      KeyUp,
	"down":   KeyDown,
	"j":      KeyDown,
	"g":      KeyFirst,
	"home":   KeyFirst,
	"G":      KeyLast,
	"end":    KeyLast,
	"enter":  KeyEnter,
	"m":      KeyMount,
	"M":      KeyMountExit,
	"u":      KeyUnmount,
	"e":      KeyEject,
	"r":      KeyRefresh,
	"y":      KeyCopy,
	"l":      KeyToggleLog,
	"?":      KeyHelp,
	"q":      KeyQuit,
	"ctrl+c": KeyInterrupt,
}

// PromptKeyStringsMap maps keys while a prompt owns the keyboard. Anything
// else with runes is typed into the prompt.
var PromptKeyStringsMap = map[string]KeyName{
	"enter":     KeySubmit,
	"esc":       KeyCancel,
	"ctrl+u":    KeyClearInput,
	"backspace": KeyBackspace,
	"ctrl+h":    KeyBackspace,
	"ctrl+c":    KeyInterrupt,
}

// GlobalkeyBindings is a global, immutable map of KeyName tot keybinding.
var GlobalkeyBindings = map[KeyName]key.Binding{
	KeyUp: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	KeyDown: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	KeyFirst: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "first"),
	),
	KeyLast: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "last"),
	),
	KeyEnter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("↵", "mount"),
	),
	KeyMount: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "mount"),
	),
	KeyMountExit: key.NewBinding(
		key.WithKeys("M"),
		key.WithHelp("M", "mount & exit"),
	),
	KeyUnmount: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "unmount"),
	),
	KeyEject: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "eject"),
	),
	KeyRefresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	KeyCopy: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "copy path"),
	),
	KeyToggleLog: key.NewBinding(
		key.WithKeys("l"),
		key.WithHelp("l", "log"),
	),
	KeyHelp: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	KeyQuit: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),

	// -- Special keybindings --

	KeySubmit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	KeyCancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "cancel"),
	),
	KeyClearInput: key.NewBinding(
		key.WithKeys("ctrl+u"),
		key.WithHelp("ctrl+u", "clear"),
	),
	KeyBackspace: key.NewBinding(
		key.WithKeys("backspace", "ctrl+h"),
		key.WithHelp("⌫", "delete"),
	),
	KeyInterrupt: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// StatusBarKeys are the bindings shown in the bottom menu, in order.
var StatusBarKeys = []KeyName{KeyMount, KeyMountExit, KeyUnmount, KeyEject, KeyRefresh, KeyHelp, KeyQuit}

// PromptKeys are the bindings shown while a prompt is open.
var PromptKeys = []KeyName{KeySubmit, KeyCancel, KeyClearInput}
