package app

import (
	"errors"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	zone "github.com/lrstanley/bubblezone"

	"github.com/kastheco/mountie/keys"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/session"
	"github.com/kastheco/mountie/ui"
	"github.com/kastheco/mountie/ui/overlay"
)

func writeClipboard(s string) error {
	return clipboard.WriteAll(s)
}

// inPrompt reports whether a passphrase or password prompt is active.
func (m *home) inPrompt() bool {
	switch m.session.Active().(type) {
	case *session.ReadingPassphrase, *session.ReadingAgentPassword:
		return true
	}
	return false
}

func (m *home) handleMenuHighlighting(msg tea.KeyMsg) (cmd tea.Cmd, returnEarly bool) {
	// Handle menu highlighting when you press a button. We intercept it here and immediately return to
	// update the ui while re-sending the keypress. Then, on the next call to this, we actually handle the keypress.
	if m.keySent {
		m.keySent = false
		return nil, false
	}
	if m.state == stateHelp || m.inPrompt() {
		return nil, false
	}
	name, ok := keys.GlobalKeyStringsMap[msg.String()]
	if !ok {
		return nil, false
	}
	// Navigation is not in the menu.
	switch name {
	case keys.KeyUp, keys.KeyDown, keys.KeyFirst, keys.KeyLast, keys.KeyInterrupt:
		return nil, false
	}
	if name == keys.KeyEnter {
		name = keys.KeyMount
	}
	m.keySent = true
	return tea.Batch(
		func() tea.Msg { return msg },
		m.keydownCallback(name)), true
}

// keydownCallback clears the menu option highlighting after 500ms.
func (m *home) keydownCallback(name keys.KeyName) tea.Cmd {
	m.menu.Keydown(name)
	return func() tea.Msg {
		select {
		case <-m.ctx.Done():
		case <-time.After(500 * time.Millisecond):
		}

		return keyupMsg{}
	}
}

func (m *home) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cmd, returnEarly := m.handleMenuHighlighting(msg)
	if returnEarly {
		return m, cmd
	}

	if m.state == stateHelp {
		return m.handleHelpState(msg)
	}
	if m.inPrompt() {
		return m.handlePromptKey(msg)
	}

	name, ok := keys.GlobalKeyStringsMap[msg.String()]
	if !ok {
		return m, nil
	}

	switch name {
	case keys.KeyUp:
		m.session.Prev()
	case keys.KeyDown:
		m.session.Next()
	case keys.KeyFirst:
		m.session.First()
	case keys.KeyLast:
		m.session.Last()
	case keys.KeyEnter, keys.KeyMount:
		m.session.Mount()
	case keys.KeyMountExit:
		m.session.MountAndExit()
	case keys.KeyUnmount:
		m.session.Unmount()
	case keys.KeyEject:
		m.session.Eject()
	case keys.KeyRefresh:
		m.session.Refresh()
	case keys.KeyCopy:
		cmd = m.copyMountPoint()
	case keys.KeyToggleLog:
		m.auditPane.ToggleVisible()
		m.relayout()
		cmd = m.loadAuditCmd()
	case keys.KeyHelp:
		m.showHelp()
	case keys.KeyQuit, keys.KeyInterrupt:
		return m.handleQuit()
	}
	m.syncView()
	return m, cmd
}

// handlePromptKey edits the active prompt. Printable runes are never looked
// up in a key map so typed secrets cannot trigger commands.
func (m *home) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyRunes:
		if msg.Alt {
			return m, nil
		}
		for _, r := range msg.Runes {
			m.session.TypeRune(r)
		}
		return m, nil
	case tea.KeySpace:
		m.session.TypeRune(' ')
		return m, nil
	}

	name, ok := keys.PromptKeyStringsMap[msg.String()]
	if !ok {
		return m, nil
	}
	switch name {
	case keys.KeySubmit:
		if err := m.session.Submit(); err != nil {
			log.ErrorLog.Printf("submit: %v", err)
			m.fatal = err
			return m, tea.Quit
		}
	case keys.KeyCancel:
		m.session.Cancel()
	case keys.KeyClearInput:
		m.session.ClearInput()
	case keys.KeyBackspace:
		m.session.Backspace()
	case keys.KeyInterrupt:
		m.session.Cancel()
		return m.handleQuit()
	}
	m.syncView()
	return m, nil
}

func (m *home) handleHelpState(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.textOverlay == nil || m.textOverlay.HandleKeyPress(msg) {
		m.state = stateDefault
		m.textOverlay = nil
		m.syncView()
	}
	return m, nil
}

// handleQuit asks the session to end. Outstanding operations keep the
// program alive until they finish.
func (m *home) handleQuit() (tea.Model, tea.Cmd) {
	m.session.Quit()
	if m.session.ShouldExit() {
		return m, tea.Quit
	}
	m.syncView()
	return m, nil
}

var errNoMountPoint = errors.New("selected device is not mounted")

func (m *home) copyMountPoint() tea.Cmd {
	e, ok := m.list.GetSelectedEntry()
	if !ok || e.Info.MountPoint == "" {
		return m.handleError(errNoMountPoint)
	}
	if err := m.copyToClipboard(e.Info.MountPoint); err != nil {
		return m.handleError(err)
	}
	m.toastManager.Success("Copied " + e.Info.MountPoint)
	return m.toastTickCmd()
}

func (m *home) showHelp() {
	m.state = stateHelp
	m.textOverlay = overlay.NewTextOverlay(renderHelp(m.termWidth))
	m.list.SetFocused(false)
}

// handleMouse processes mouse events for click and scroll interactions.
func (m *home) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || m.state == stateHelp || m.inPrompt() {
		return m, nil
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp, tea.MouseButtonWheelDown:
		if m.auditPane.Visible() && zone.Get(ui.ZoneAuditPane).InBounds(msg) {
			if msg.Button == tea.MouseButtonWheelUp {
				m.auditPane.ScrollUp(1)
			} else {
				m.auditPane.ScrollDown(1)
			}
			return m, nil
		}
		if msg.Button == tea.MouseButtonWheelUp {
			m.session.Prev()
		} else {
			m.session.Next()
		}
	case tea.MouseButtonLeft:
		for i := 0; i < m.list.NumDevices(); i++ {
			if zone.Get(ui.DeviceRowZoneID(i)).InBounds(msg) {
				m.session.Select(i)
				break
			}
		}
	default:
		return m, nil
	}
	m.syncView()
	return m, nil
}
