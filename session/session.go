// Package session coordinates the interactive device session: the device
// registry, background operations, modal prompts and requests coming from the
// authentication agent. A Session is owned by one goroutine; background work
// only reaches it through Tick.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/config/auditlog"
	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/secret"
)

// maxAttributeReaders bounds concurrent attribute reads during a refresh.
const maxAttributeReaders = 8

// DeviceManager is the device-management service the session drives.
// Implementations must be safe for concurrent use.
type DeviceManager interface {
	ListDevices(ctx context.Context) ([]device.Descriptor, error)
	ReadAttributes(ctx context.Context, d device.Descriptor) (device.Attributes, error)
	// Mount mounts d, unlocking it first with pass when d is encrypted. pass
	// may be nil; the implementation does not retain it.
	Mount(ctx context.Context, d device.Descriptor, pass *secret.Secret) (device.Result, error)
	Unmount(ctx context.Context, d device.Descriptor) (device.Result, error)
	Eject(ctx context.Context, d device.Descriptor) (device.Result, error)
}

// Options configures a Session.
type Options struct {
	// PreferredUser is chosen when the agent offers it as a candidate.
	PreferredUser string
	Audit         auditlog.Logger
}

// Notice is a user-facing message produced while applying results.
type Notice struct {
	Text  string
	Error bool
}

// Session is the interactive session state.
type Session struct {
	devices  DeviceManager
	bridge   *agent.Bridge
	registry *device.Registry
	machine  *Machine
	pool     *Pool
	audit    auditlog.Logger

	preferredUser string

	selected int
	status   string
	notices  []Notice

	quit                bool
	exitRequested       bool
	exitAfterPassphrase bool
	printOnExit         bool
	exitMountPoint      string
	shuttingDown        bool
}

// New creates a session and starts loading the device list. bridge may be nil
// when no authentication agent runs.
func New(ctx context.Context, devices DeviceManager, bridge *agent.Bridge, opts Options) *Session {
	audit := opts.Audit
	if audit == nil {
		audit = auditlog.NopLogger()
	}
	s := &Session{
		devices:       devices,
		bridge:        bridge,
		registry:      device.NewRegistry(),
		machine:       NewMachine(),
		pool:          NewPool(ctx),
		audit:         audit,
		preferredUser: opts.PreferredUser,
	}
	s.spawnLoad()
	return s
}

// Entries returns the devices in display order.
func (s *Session) Entries() []device.Entry { return s.registry.Entries() }

// Selected returns the index of the selected device.
func (s *Session) Selected() int { return s.selected }

// Active returns the active modal state.
func (s *Session) Active() State { return s.machine.Active() }

// Pending returns the number of queued modal states.
func (s *Session) Pending() int { return s.machine.Pending() }

// Status returns the status line text.
func (s *Session) Status() string { return s.status }

// Busy returns the number of outstanding background operations.
func (s *Session) Busy() int { return s.pool.Len() }

// TakeNotices returns and clears the notices produced since the last call.
func (s *Session) TakeNotices() []Notice {
	n := s.notices
	s.notices = nil
	return n
}

// ExitMountPoint returns the mount point to print after the terminal is
// restored. ok is false unless the session was ended by mount-and-exit.
func (s *Session) ExitMountPoint() (mountPoint string, ok bool) {
	if !s.printOnExit || s.exitMountPoint == "" {
		return "", false
	}
	return s.exitMountPoint, true
}

// ShouldExit reports whether the interactive loop should stop.
func (s *Session) ShouldExit() bool {
	return (s.quit || s.exitRequested) && s.pool.Len() == 0
}

// Quitting reports whether an exit was requested, even if operations are
// still outstanding.
func (s *Session) Quitting() bool {
	return s.quit || s.exitRequested
}

// Quit requests the session to end once outstanding operations finish.
func (s *Session) Quit() {
	s.quit = true
}

// Tick applies everything that happened since the previous tick: at most one
// agent request, every finished background task and at most one pending
// prompt. A non-nil error is fatal.
func (s *Session) Tick() error {
	if err := s.receiveAgentRequest(); err != nil {
		return err
	}
	s.discardAbandoned()
	for _, r := range s.pool.Poll() {
		s.apply(r)
	}
	s.machine.Promote()
	return nil
}

// discardAbandoned removes password prompts the authentication side stopped
// waiting for.
func (s *Session) discardAbandoned() {
	gone := s.machine.Discard(func(st State) bool {
		ap, ok := st.(*ReadingAgentPassword)
		return ok && ap.Responder != nil && ap.Responder.Abandoned()
	})
	for _, st := range gone {
		ap := st.(*ReadingAgentPassword)
		log.InfoLog.Printf("password request %s for %s withdrawn by the agent", ap.RequestID, ap.Name)
		s.auditAgentPassword(ap, false)
	}
}

// Shutdown waits for every outstanding operation, releases all prompts and
// stops the authentication agent.
func (s *Session) Shutdown(ctx context.Context) error {
	if n := s.pool.Len(); n > 0 {
		log.InfoLog.Printf("waiting for %d device operation(s) to finish", n)
	}
	s.shuttingDown = true
	for s.pool.Len() > 0 {
		for _, r := range s.pool.Drain() {
			s.apply(r)
		}
	}
	s.machine.Close()
	if s.bridge == nil {
		return nil
	}
	if err := s.bridge.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop authentication agent: %w", err)
	}
	return nil
}

func (s *Session) receiveAgentRequest() error {
	if s.bridge == nil {
		return nil
	}
	req, err := s.bridge.TryRecv()
	if err != nil {
		return fmt.Errorf("receive agent request: %w", err)
	}
	switch req := req.(type) {
	case nil:
		return nil
	case *agent.ChooseUser:
		choice, ok := agent.Choose(req.Users, s.preferredUser)
		if !ok {
			log.WarningLog.Printf("agent request %s offered no identities", req.ID)
			req.Drop()
			return nil
		}
		if err := req.Responder.Send(choice); err != nil {
			return fmt.Errorf("answer user choice %s: %w", req.ID, err)
		}
		s.audit.Emit(auditlog.NewEvent(auditlog.EventAgentUserChosen,
			fmt.Sprintf("Authenticating as %s", choice.Name),
			auditlog.WithRequest(req.ID, choice.Name)))
	case *agent.RequestPassword:
		s.machine.AddNext(&ReadingAgentPassword{
			RequestID: req.ID,
			Name:      req.Name,
			Buffer:    secret.New(),
			Responder: req.Responder,
		})
		s.audit.Emit(auditlog.NewEvent(auditlog.EventAgentPasswordRequested,
			fmt.Sprintf("Password requested for %s", req.Name),
			auditlog.WithRequest(req.ID, req.Name)))
	default:
		req.Drop()
		return fmt.Errorf("unknown agent request %T", req)
	}
	return nil
}

func (s *Session) setStatus(text string) {
	s.status = text
	s.notices = append(s.notices, Notice{Text: text})
}

func (s *Session) setError(err error) {
	s.status = "Error: " + err.Error()
	s.notices = append(s.notices, Notice{Text: s.status, Error: true})
}

var errNoDevice = errors.New("no device selected")

// current returns a reference to the selected device.
func (s *Session) current() (device.Ref, device.Entry, error) {
	ref, ok := s.registry.Ref(s.selected)
	if !ok {
		return device.Ref{}, device.Entry{}, errNoDevice
	}
	e, _ := s.registry.At(s.selected)
	return ref, e, nil
}
