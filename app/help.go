package app

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/kastheco/mountie/log"
)

const helpMarkdown = `# mountie

Mount, unlock and eject removable drives. While it runs, mountie also answers
polkit authentication requests for this session.

## devices

| key | action |
| --- | --- |
| ↑/k ↓/j | move the selection |
| g / G | first / last device |
| ↵ or m | mount (asks for the passphrase of a locked device) |
| M | mount, then exit and print the mount point |
| u | unmount (locks an encrypted device) |
| e | eject the drive |
| y | copy the mount point |
| r | reload the device list |

## prompts

| key | action |
| --- | --- |
| enter | submit |
| esc | cancel |
| ctrl+u | clear input |

## other

| key | action |
| --- | --- |
| l | show or hide the log |
| ? | this help |
| q | quit once running operations finish |

Press any key to close.
`

// renderHelp renders the help screen for a terminal of the given width.
// Plain markdown is returned if rendering fails.
func renderHelp(termWidth int) string {
	wordWrap := min(max(termWidth*6/10, 40), 80)
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		log.WarningLog.Printf("could not create markdown renderer: %v", err)
		return helpMarkdown
	}
	rendered, err := renderer.Render(helpMarkdown)
	if err != nil {
		log.WarningLog.Printf("could not render help: %v", err)
		return helpMarkdown
	}
	return strings.Trim(rendered, "\n")
}
