package session

import (
	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/secret"
)

// State is the modal state the session presents to the user.
type State interface {
	isState()
}

// DisksList is the idle state: the device list accepts commands.
type DisksList struct{}

// ReadingPassphrase collects the passphrase for unlocking the device at Ref.
type ReadingPassphrase struct {
	Ref    device.Ref
	Name   string
	Buffer *secret.Secret
}

// ReadingAgentPassword collects a password for the authentication agent.
// Responder must be answered or dropped exactly once.
type ReadingAgentPassword struct {
	RequestID string
	Name      string
	Buffer    *secret.Secret
	Responder *agent.Responder[*secret.Secret]
}

func (DisksList) isState()             {}
func (*ReadingPassphrase) isState()    {}
func (*ReadingAgentPassword) isState() {}

// promptBuffer returns the input buffer of a prompt state.
func promptBuffer(s State) *secret.Secret {
	switch s := s.(type) {
	case *ReadingPassphrase:
		return s.Buffer
	case *ReadingAgentPassword:
		return s.Buffer
	}
	return nil
}

// release wipes the state's buffer and drops a responder that was not
// answered.
func release(s State) {
	promptBuffer(s).Wipe()
	if ap, ok := s.(*ReadingAgentPassword); ok && ap.Responder != nil {
		ap.Responder.Drop()
	}
}

// Machine holds the active modal state and the FIFO of states waiting for
// it. The pending queue is only non-empty while a prompt is active, except
// transiently between resolving a prompt and the next Promote.
type Machine struct {
	active  State
	pending []State
}

func NewMachine() *Machine {
	return &Machine{active: DisksList{}}
}

// Active returns the active state.
func (m *Machine) Active() State {
	return m.active
}

// Idle reports whether the device list is active.
func (m *Machine) Idle() bool {
	_, ok := m.active.(DisksList)
	return ok
}

// Pending returns the number of queued states.
func (m *Machine) Pending() int {
	return len(m.pending)
}

// AddNext installs s, or queues it behind the active prompt. When idle with a
// non-empty queue, the head is shown first and s goes to the tail.
func (m *Machine) AddNext(s State) {
	if !m.Idle() {
		m.pending = append(m.pending, s)
		return
	}
	if len(m.pending) > 0 {
		m.active = m.pending[0]
		m.pending = append(m.pending[1:], s)
		return
	}
	m.active = s
}

// Promote activates the head of the queue if the device list is active. At
// most one state is promoted per call.
func (m *Machine) Promote() bool {
	if !m.Idle() || len(m.pending) == 0 {
		return false
	}
	m.active = m.pending[0]
	m.pending[0] = nil
	m.pending = m.pending[1:]
	return true
}

// Resolve ends the active prompt and returns to the device list. The prompt's
// buffer is wiped and an unanswered responder is dropped.
func (m *Machine) Resolve() State {
	prev := m.active
	release(prev)
	m.active = DisksList{}
	return prev
}

// Discard releases every state for which gone reports true, active or
// pending, and returns them in queue order starting with the active one.
func (m *Machine) Discard(gone func(State) bool) []State {
	var out []State
	if !m.Idle() && gone(m.active) {
		out = append(out, m.Resolve())
	}
	kept := m.pending[:0]
	for _, st := range m.pending {
		if gone(st) {
			release(st)
			out = append(out, st)
			continue
		}
		kept = append(kept, st)
	}
	clear(m.pending[len(kept):])
	m.pending = kept
	return out
}

// Close releases the active and all pending states.
func (m *Machine) Close() {
	release(m.active)
	for _, s := range m.pending {
		release(s)
	}
	m.active = DisksList{}
	m.pending = nil
}
