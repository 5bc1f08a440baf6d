package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/log"
	"github.com/kastheco/mountie/secret"
)

// Next selects the next device.
func (s *Session) Next() {
	if s.selected < s.registry.Len()-1 {
		s.selected++
	}
}

// Prev selects the previous device.
func (s *Session) Prev() {
	if s.selected > 0 {
		s.selected--
	}
}

// First selects the first device.
func (s *Session) First() {
	s.selected = 0
}

// Last selects the last device.
func (s *Session) Last() {
	if n := s.registry.Len(); n > 0 {
		s.selected = n - 1
	}
}

// Select selects the device at index i if it exists.
func (s *Session) Select(i int) {
	if i >= 0 && i < s.registry.Len() {
		s.selected = i
	}
}

// Mount mounts the selected device. Encrypted devices ask for a passphrase
// once the service reports one is required.
func (s *Session) Mount() {
	if !s.machine.Idle() {
		return
	}
	ref, e, err := s.current()
	if err != nil {
		return
	}
	s.spawnMount(ref, e, nil)
}

// MountAndExit mounts the selected device and ends the session once the
// mount completes, printing its mount point.
func (s *Session) MountAndExit() {
	if !s.machine.Idle() {
		return
	}
	if _, _, err := s.current(); err != nil {
		return
	}
	s.exitRequested = true
	s.printOnExit = true
	s.Mount()
}

// Unmount unmounts the selected device, locking it if it is encrypted.
func (s *Session) Unmount() {
	if !s.machine.Idle() {
		return
	}
	ref, e, err := s.current()
	if err != nil {
		return
	}
	d, name := e.Descriptor, e.Info.Name
	s.pool.Spawn(ref, "unmount "+name, func(ctx context.Context) (device.Message, error) {
		res, err := s.devices.Unmount(ctx, d)
		if err != nil {
			return nil, err
		}
		return completion(ref, name, res), nil
	})
	s.setStatus(fmt.Sprintf("Unmounting %s...", name))
}

// Eject ejects the drive holding the selected device.
func (s *Session) Eject() {
	if !s.machine.Idle() {
		return
	}
	ref, e, err := s.current()
	if err != nil {
		return
	}
	d, name := e.Descriptor, e.Info.Name
	s.pool.Spawn(ref, "eject "+name, func(ctx context.Context) (device.Message, error) {
		if _, err := s.devices.Eject(ctx, d); err != nil {
			return nil, err
		}
		return device.Ejected{Ref: ref, Name: name}, nil
	})
	s.setStatus(fmt.Sprintf("Ejecting %s...", name))
}

// Refresh reloads the device list. Prompts and queued requests are left
// alone; results of operations started before the refresh are discarded.
func (s *Session) Refresh() {
	s.spawnLoad()
	s.setStatus("Refreshing devices...")
}

// TypeRune appends r to the active prompt.
func (s *Session) TypeRune(r rune) {
	if b := promptBuffer(s.machine.Active()); b != nil {
		b.AppendRune(r)
	}
}

// Backspace removes the last rune of the active prompt.
func (s *Session) Backspace() {
	if b := promptBuffer(s.machine.Active()); b != nil {
		b.Backspace()
	}
}

// ClearInput empties the active prompt.
func (s *Session) ClearInput() {
	if b := promptBuffer(s.machine.Active()); b != nil {
		b.Reset()
	}
}

// Submit answers the active prompt. An error is fatal.
func (s *Session) Submit() error {
	switch st := s.machine.Active().(type) {
	case *ReadingPassphrase:
		pass := st.Buffer.Clone()
		s.machine.Resolve()
		e, ok := s.registry.Resolve(st.Ref)
		if !ok {
			pass.Wipe()
			s.cancelExit()
			s.setError(fmt.Errorf("device list changed, select %s again", st.Name))
			return nil
		}
		if s.exitAfterPassphrase {
			s.exitAfterPassphrase = false
			s.exitRequested = true
		}
		s.spawnMount(st.Ref, e, pass)
	case *ReadingAgentPassword:
		pass := st.Buffer.Clone()
		err := st.Responder.Send(pass)
		if errors.Is(err, agent.ErrAbandoned) {
			pass.Wipe()
			s.machine.Resolve()
			s.auditAgentPassword(st, false)
			s.setStatus(fmt.Sprintf("Password request for %s was withdrawn", st.Name))
			return nil
		}
		if err != nil {
			pass.Wipe()
			s.machine.Resolve()
			return fmt.Errorf("answer password request %s: %w", st.RequestID, err)
		}
		s.machine.Resolve()
		s.auditAgentPassword(st, true)
	}
	return nil
}

// Cancel abandons the active prompt. A pending authentication is told no
// answer will come.
func (s *Session) Cancel() {
	switch st := s.machine.Active().(type) {
	case *ReadingPassphrase:
		s.machine.Resolve()
		s.cancelExit()
		s.setStatus(fmt.Sprintf("Cancelled unlocking %s", st.Name))
	case *ReadingAgentPassword:
		s.machine.Resolve()
		s.auditAgentPassword(st, false)
		log.InfoLog.Printf("password request %s for %s cancelled", st.RequestID, st.Name)
	}
}

// spawnMount starts a mount. pass is owned by the task and wiped after use.
func (s *Session) spawnMount(ref device.Ref, e device.Entry, pass *secret.Secret) {
	d, name := e.Descriptor, e.Info.Name
	s.pool.Spawn(ref, "mount "+name, func(ctx context.Context) (device.Message, error) {
		defer pass.Wipe()
		res, err := s.devices.Mount(ctx, d, pass)
		if err != nil {
			return nil, err
		}
		return completion(ref, name, res), nil
	})
	s.setStatus(fmt.Sprintf("Mounting %s...", name))
}

func (s *Session) spawnLoad() {
	s.pool.Spawn(device.Ref{Index: -1}, "refresh", func(ctx context.Context) (device.Message, error) {
		entries, err := LoadEntries(ctx, s.devices)
		if err != nil {
			return nil, err
		}
		return device.Loaded{Entries: entries}, nil
	})
}

func completion(ref device.Ref, name string, res device.Result) device.Completion {
	return device.Completion{
		Ref:        ref,
		Name:       name,
		Outcome:    res.Outcome,
		MountPoint: res.MountPoint,
		Info:       res.Info,
	}
}
