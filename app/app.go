package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/config"
	"github.com/kastheco/mountie/config/auditlog"
	"github.com/kastheco/mountie/internal/sentry"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/session"
	"github.com/kastheco/mountie/ui"
	"github.com/kastheco/mountie/ui/overlay"
)

// shutdownTimeout bounds the authentication agent handshake on exit.
const shutdownTimeout = 5 * time.Second

// Options configures Run.
type Options struct {
	Config  *config.Config
	Devices session.DeviceManager
	// Bridge connects the polkit agent. nil when no agent runs.
	Bridge *agent.Bridge
	Audit  auditlog.Logger
	// Output receives the interface. Defaults to os.Stderr so stdout stays
	// free for the mount point.
	Output io.Writer
}

// Run is the main entrypoint into the application. It returns the mount
// point of a device mounted with mount-and-exit, or "" otherwise.
func Run(ctx context.Context, opts Options) (string, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	audit := opts.Audit
	if audit == nil {
		audit = auditlog.NopLogger()
	}

	// Every ANSI reset and unstyled cell falls back to the theme base color.
	restore := ui.SetTerminalBackground(out, ui.BaseHex)
	defer restore()

	zone.NewGlobal()
	defer zone.Close()

	sess := session.New(ctx, opts.Devices, opts.Bridge, session.Options{
		PreferredUser: cfg.PreferredUser,
		Audit:         audit,
	})

	runErr := runProgram(ctx, sess, cfg, audit, opts.Bridge != nil, out)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := sess.Shutdown(shutdownCtx); err != nil {
		log.ErrorLog.Printf("shutdown: %v", err)
		if runErr == nil {
			runErr = err
		}
	}
	if runErr != nil {
		return "", runErr
	}
	mountPoint, _ := sess.ExitMountPoint()
	return mountPoint, nil
}

// runProgram runs the interactive loop, restarting it with the same session
// when it ended in a panic.
func runProgram(ctx context.Context, sess *session.Session, cfg *config.Config, audit auditlog.Logger, agentEnabled bool, out io.Writer) error {
	restarts := 0
	for {
		h := newHome(ctx, sess, cfg, audit, agentEnabled)
		p := tea.NewProgram(h,
			tea.WithContext(ctx),
			tea.WithOutput(out),
			tea.WithAltScreen(),
			tea.WithMouseCellMotion(),
		)
		model, err := p.Run()
		if fm, ok := model.(*home); ok && fm.fatal != nil {
			return fm.fatal
		}

		shouldRestart := errors.Is(err, tea.ErrProgramPanic) && restarts < cfg.MaxRestarts
		if !shouldRestart {
			if err != nil {
				return fmt.Errorf("interface: %w", err)
			}
			return nil
		}
		restarts++
		log.ErrorLog.Printf("interface crashed, restarting (%d/%d): %v", restarts, cfg.MaxRestarts, err)
		sentry.CaptureError(err)
		audit.Emit(auditlog.NewEvent(auditlog.EventError,
			fmt.Sprintf("Interface restarted after a crash (%d/%d)", restarts, cfg.MaxRestarts),
			auditlog.WithLevel("error")))
	}
}

type state int

const (
	stateDefault state = iota
	// stateHelp is the state when the help screen is displayed.
	stateHelp
)

type home struct {
	ctx context.Context

	// -- Session and Configuration --

	session      *session.Session
	appConfig    *config.Config
	audit        auditlog.Logger
	agentEnabled bool

	// -- State --

	state state
	// keySent is used to manage underlining menu items
	keySent bool
	// fatal ends the program without restart.
	fatal error
	// toastTicking is set while a toast tick is scheduled.
	toastTicking bool

	// -- UI Components --

	// global spinner instance. we plumb this down to where it's needed
	spinner      spinner.Model
	list         *ui.List
	menu         *ui.Menu
	statusBar    *ui.StatusBar
	auditPane    *ui.AuditPane
	toastManager *overlay.ToastManager
	// prompt renders the active passphrase or password prompt.
	prompt *overlay.PassphraseOverlay
	// textOverlay displays the help screen
	textOverlay *overlay.TextOverlay

	termWidth, termHeight int

	// copyToClipboard is swapped out in tests.
	copyToClipboard func(string) error
}

func newHome(ctx context.Context, sess *session.Session, cfg *config.Config, audit auditlog.Logger, agentEnabled bool) *home {
	h := &home{
		ctx:             ctx,
		session:         sess,
		appConfig:       cfg,
		audit:           audit,
		agentEnabled:    agentEnabled,
		state:           stateDefault,
		spinner:         spinner.New(spinner.WithSpinner(spinner.Dot)),
		menu:            ui.NewMenu(),
		auditPane:       ui.NewAuditPane(),
		toastManager:    overlay.NewToastManager(),
		copyToClipboard: writeClipboard,
	}
	h.list = ui.NewList(&h.spinner)
	h.statusBar = ui.NewStatusBar(&h.spinner)
	if !cfg.AuditEnabled {
		h.auditPane.ToggleVisible()
	}
	h.syncView()
	return h
}

// tickMsg drives the session: each one applies queued agent requests,
// finished operations and pending prompts.
type tickMsg struct{}

type keyupMsg struct{}

// auditEventsMsg delivers recent audit events loaded off the update loop.
type auditEventsMsg struct {
	events []ui.AuditEventDisplay
}

func (m *home) tickCmd() tea.Cmd {
	return tea.Tick(m.appConfig.TickInterval(), func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func (m *home) toastTickCmd() tea.Cmd {
	if m.toastTicking {
		return nil
	}
	m.toastTicking = true
	return func() tea.Msg {
		time.Sleep(50 * time.Millisecond)
		return overlay.ToastTickMsg{}
	}
}

// auditPaneLimit is the number of events loaded into the log pane.
const auditPaneLimit = 50

// loadAuditCmd queries recent audit events off the update loop.
func (m *home) loadAuditCmd() tea.Cmd {
	if !m.auditPane.Visible() {
		return nil
	}
	audit := m.audit
	return func() tea.Msg {
		events, err := audit.Query(auditlog.QueryFilter{Limit: auditPaneLimit})
		if err != nil {
			log.WarningLog.Printf("query audit log: %v", err)
			return nil
		}
		return auditEventsMsg{events: toDisplay(events)}
	}
}

// toDisplay converts audit events, newest first, into pane rows.
func toDisplay(events []auditlog.Event) []ui.AuditEventDisplay {
	out := make([]ui.AuditEventDisplay, 0, len(events))
	for _, e := range events {
		icon, color := ui.EventKindIcon(e.Kind.String())
		level := e.Level
		if level == "" {
			level = "info"
		}
		out = append(out, ui.AuditEventDisplay{
			Time:    e.Timestamp.Local().Format("15:04"),
			Kind:    e.Kind.String(),
			Icon:    icon,
			Message: e.Message,
			Color:   color,
			Level:   level,
		})
	}
	return out
}

func (m *home) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.tickCmd(),
		m.loadAuditCmd(),
	)
}

func (m *home) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		return m.handleTick()
	case overlay.ToastTickMsg:
		m.toastTicking = false
		m.toastManager.Tick()
		if m.toastManager.HasActiveToasts() {
			return m, m.toastTickCmd()
		}
		return m, nil
	case auditEventsMsg:
		m.auditPane.SetEvents(msg.events)
		return m, nil
	case keyupMsg:
		m.menu.ClearKeydown()
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.WindowSizeMsg:
		m.updateHandleWindowSizeEvent(msg)
		return m, nil
	case tea.MouseMsg:
		return m.handleMouse(msg)
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}
	return m, nil
}

// handleTick advances the session and turns its notices into toasts.
func (m *home) handleTick() (tea.Model, tea.Cmd) {
	if err := m.session.Tick(); err != nil {
		log.ErrorLog.Printf("session: %v", err)
		m.fatal = err
		return m, tea.Quit
	}
	if m.session.ShouldExit() {
		return m, tea.Quit
	}

	cmds := []tea.Cmd{m.tickCmd()}
	if notices := m.session.TakeNotices(); len(notices) > 0 {
		for _, n := range notices {
			if n.Error {
				m.toastManager.Error(n.Text)
			} else {
				m.toastManager.Info(n.Text)
			}
		}
		cmds = append(cmds, m.toastTickCmd(), m.loadAuditCmd())
	}
	m.syncView()
	return m, tea.Batch(cmds...)
}

// syncView mirrors the session into the view components.
func (m *home) syncView() {
	entries := m.session.Entries()
	m.list.SetItems(entries, m.session.Selected())
	m.list.SetLoading(len(entries) == 0 && m.session.Busy() > 0)

	mounted := 0
	for _, e := range entries {
		if e.Info.MountPoint != "" {
			mounted++
		}
	}
	m.statusBar.SetData(ui.StatusBarData{
		Devices:  len(entries),
		Mounted:  mounted,
		Busy:     m.session.Busy(),
		Pending:  m.session.Pending(),
		Agent:    m.agentEnabled,
		Quitting: m.session.Quitting(),
	})

	switch s := m.session.Active().(type) {
	case *session.ReadingPassphrase:
		m.showPrompt("Unlock "+s.Name, "Enter the passphrase for "+s.Name+".")
	case *session.ReadingAgentPassword:
		m.showPrompt("Authentication required", "Password for "+s.Name+":")
	default:
		m.prompt = nil
		m.list.SetFocused(m.state == stateDefault)
		m.menu.SetState(ui.StateDefault)
		if e, ok := m.list.GetSelectedEntry(); ok {
			m.menu.SetSelected(&e)
		} else {
			m.menu.SetSelected(nil)
		}
		return
	}
	m.prompt.Queued = m.session.Pending()
	m.prompt.SetWidth(m.termWidth)
	m.list.SetFocused(false)
	m.menu.SetState(ui.StatePrompt)
}

func (m *home) showPrompt(title, detail string) {
	if m.prompt == nil || m.prompt.Title != title || m.prompt.Detail != detail {
		m.prompt = overlay.NewPassphraseOverlay(title, detail)
	}
}

// promptRunes returns the length of the active prompt's input.
func (m *home) promptRunes() int {
	switch s := m.session.Active().(type) {
	case *session.ReadingPassphrase:
		return s.Buffer.RuneCount()
	case *session.ReadingAgentPassword:
		return s.Buffer.RuneCount()
	}
	return 0
}

func (m *home) updateHandleWindowSizeEvent(msg tea.WindowSizeMsg) {
	m.termWidth = msg.Width
	m.termHeight = msg.Height
	m.toastManager.SetSize(msg.Width, msg.Height)
	m.statusBar.SetSize(msg.Width)

	// status bar, status line and menu take one row each.
	menuHeight := 1
	contentHeight := max(msg.Height-2-menuHeight, 3)

	auditHeight := 0
	if m.auditPane.Visible() {
		auditHeight = contentHeight / 3
		if auditHeight < 4 || contentHeight-auditHeight < 5 {
			auditHeight = 0
		}
	}
	m.auditPane.SetSize(msg.Width, auditHeight)
	m.list.SetSize(msg.Width, contentHeight-auditHeight)
	m.menu.SetSize(msg.Width, menuHeight)
	if m.prompt != nil {
		m.prompt.SetWidth(msg.Width)
	}
}

// relayout reapplies the last window size after the layout changed.
func (m *home) relayout() {
	m.updateHandleWindowSizeEvent(tea.WindowSizeMsg{Width: m.termWidth, Height: m.termHeight})
}

func (m *home) View() string {
	parts := []string{m.statusBar.String(), m.list.String()}
	if m.auditPane.Visible() && m.auditPane.Height() > 0 {
		parts = append(parts, m.auditPane.String())
	}
	status := m.session.Status()
	parts = append(parts,
		ui.StatusLine(status, strings.HasPrefix(status, "Error:"), m.termWidth),
		m.menu.String(),
	)
	mainView := lipgloss.JoinVertical(lipgloss.Left, parts...)

	var result string
	switch {
	case m.prompt != nil:
		result = overlay.PlaceOverlay(0, 0, m.prompt.Render(m.promptRunes()), mainView, true, true)
	case m.state == stateHelp:
		if m.textOverlay == nil {
			log.ErrorLog.Printf("text overlay is nil")
			result = mainView
			break
		}
		result = overlay.PlaceOverlay(0, 0, m.textOverlay.Render(), mainView, true, true)
	default:
		result = mainView
	}

	if toastView := m.toastManager.View(); toastView != "" {
		x, y := m.toastManager.GetPosition()
		result = overlay.PlaceOverlay(x, y, toastView, result, false, false)
	}

	// Process bubblezone markers before rendering is complete
	// (zone markers inflate lipgloss.Width if left in place).
	result = zone.Scan(result)

	// Height-fill so the alt-screen renderer repaints every row.
	return ui.FillBackground(result, m.termHeight)
}

func (m *home) handleError(err error) tea.Cmd {
	log.ErrorLog.Printf("%v", err)
	m.toastManager.Error(err.Error())
	return m.toastTickCmd()
}
