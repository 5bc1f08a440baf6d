package session

import (
	"fmt"

	"github.com/kastheco/mountie/config/auditlog"
	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/secret"
)

// apply applies a finished task to the registry and the modal state.
func (s *Session) apply(r Result) {
	if r.Err != nil {
		log.WarningLog.Printf("%s failed: %v", r.Label, r.Err)
		s.setError(r.Err)
		s.cancelExit()
		s.audit.Emit(auditlog.NewEvent(auditlog.EventOperationFailed, r.Err.Error(),
			auditlog.WithDetail(r.Label),
			auditlog.WithLevel("warn")))
		return
	}

	switch msg := r.Msg.(type) {
	case device.Loaded:
		s.registry.Replace(msg.Entries)
		if s.selected >= len(msg.Entries) {
			s.selected = max(len(msg.Entries)-1, 0)
		}
		s.exitMountPoint = ""
		log.InfoLog.Printf("loaded %d device(s)", len(msg.Entries))
		s.audit.Emit(auditlog.NewEvent(auditlog.EventDeviceRefresh,
			fmt.Sprintf("Loaded %d devices", len(msg.Entries))))
	case device.Ejected:
		s.setStatus(fmt.Sprintf("Ejected %s", msg.Name))
		s.audit.Emit(auditlog.NewEvent(auditlog.EventDeviceEject, s.status,
			auditlog.WithDevice(msg.Name, ""),
			auditlog.WithOutcome(device.OutcomeEjected.String())))
		if !s.shuttingDown {
			s.spawnLoad()
		}
	case device.Completion:
		s.applyCompletion(msg)
	default:
		log.ErrorLog.Printf("%s returned unexpected message %T", r.Label, r.Msg)
	}
}

// cancelExit abandons a pending mount-and-exit.
func (s *Session) cancelExit() {
	s.exitRequested = false
	s.exitAfterPassphrase = false
	s.printOnExit = false
}

func (s *Session) applyCompletion(c device.Completion) {
	e, err := s.registry.Apply(c)
	if err != nil {
		s.cancelExit()
		s.setStatus(fmt.Sprintf("Ignored %s result for %s: device list changed", c.Outcome, c.Name))
		s.audit.Emit(auditlog.NewEvent(auditlog.EventStaleResult, err.Error(),
			auditlog.WithDevice(c.Name, ""),
			auditlog.WithOutcome(c.Outcome.String()),
			auditlog.WithLevel("warn")))
		return
	}

	name := e.Info.Name
	kind := auditlog.EventDeviceUnmount
	switch c.Outcome {
	case device.OutcomePassphraseRequired:
		s.selected = c.Ref.Index
		s.machine.AddNext(&ReadingPassphrase{Ref: c.Ref, Name: name, Buffer: secret.New()})
		if s.exitRequested {
			s.exitAfterPassphrase = true
		}
		s.exitRequested = false
		return
	case device.OutcomeMounted:
		kind = auditlog.EventDeviceMount
		s.setStatus(fmt.Sprintf("Mounted %s at %s", name, c.MountPoint))
		s.exitMountPoint = c.MountPoint
	case device.OutcomeAlreadyMounted:
		kind = auditlog.EventDeviceMount
		s.setStatus(fmt.Sprintf("Already mounted %s at %s", name, c.MountPoint))
		s.exitMountPoint = c.MountPoint
	case device.OutcomeUnlockedAndMounted:
		kind = auditlog.EventDeviceMount
		s.setStatus(fmt.Sprintf("Unlocked and mounted %s at %s", name, c.MountPoint))
		s.exitMountPoint = c.MountPoint
	case device.OutcomeUnmounted:
		s.setStatus(fmt.Sprintf("Unmounted %s", name))
	case device.OutcomeAlreadyUnmounted:
		s.setStatus(fmt.Sprintf("Already unmounted %s", name))
	case device.OutcomeLocked:
		s.setStatus(fmt.Sprintf("Locked %s", name))
	case device.OutcomeUnmountedAndLocked:
		s.setStatus(fmt.Sprintf("Unmounted and locked %s", name))
	case device.OutcomeAlreadyLocked:
		s.setStatus(fmt.Sprintf("Already unmounted and locked %s", name))
	case device.OutcomeEjected:
		kind = auditlog.EventDeviceEject
		s.setStatus(fmt.Sprintf("Ejected %s", c.Name))
	}
	log.InfoLog.Printf("%s: %s", name, c.Outcome)
	s.audit.Emit(auditlog.NewEvent(kind, s.status,
		auditlog.WithDevice(name, e.Info.Label),
		auditlog.WithOutcome(c.Outcome.String()),
		auditlog.WithMountPoint(c.MountPoint)))
}

func (s *Session) auditAgentPassword(st *ReadingAgentPassword, answered bool) {
	kind, msg := auditlog.EventAgentPasswordAnswered, "Password supplied for %s"
	if !answered {
		kind, msg = auditlog.EventAgentPasswordCancelled, "Password request for %s cancelled"
	}
	s.audit.Emit(auditlog.NewEvent(kind, fmt.Sprintf(msg, st.Name),
		auditlog.WithRequest(st.RequestID, st.Name)))
}
