package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kastheco/mountie/agent"
	"github.com/kastheco/mountie/config/auditlog"
	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/udisks/udiskstest"
)

func vault() udiskstest.Device {
	return udiskstest.Device{
		Handle:        "/org/freedesktop/UDisks2/block_devices/sdb1",
		Kind:          device.KindEncrypted,
		State:         device.StateLocked,
		Name:          "/dev/sdb1",
		CleartextName: "/dev/dm-0",
		Label:         "vault",
		Size:          "16 GB",
		Passphrase:    "secret",
		Drive:         "usb-stick",
	}
}

func stick() udiskstest.Device {
	return udiskstest.Device{
		Handle:     "/org/freedesktop/UDisks2/block_devices/sdc1",
		Kind:       device.KindFilesystem,
		State:      device.StateMounted,
		Name:       "/dev/sdc1",
		Label:      "x",
		Size:       "8.0 GB",
		MountPoint: "/media/x",
		Drive:      "sd-card",
	}
}

func plain() udiskstest.Device {
	return udiskstest.Device{
		Handle: "/org/freedesktop/UDisks2/block_devices/sdd1",
		Kind:   device.KindFilesystem,
		State:  device.StateUnmounted,
		Name:   "/dev/sdd1",
		Label:  "usb",
		Size:   "32 GB",
	}
}

// tickUntil drives the session like the event loop does until cond holds.
func tickUntil(t *testing.T, s *Session, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		require.NoError(t, s.Tick())
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached; status %q, active %T", s.Status(), s.Active())
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func idle(s *Session) func() bool {
	return func() bool { return s.Busy() == 0 }
}

func newTestSession(t *testing.T, fake *udiskstest.Fake, bridge *agent.Bridge, opts Options) *Session {
	t.Helper()
	s := New(context.Background(), fake, bridge, opts)
	tickUntil(t, s, idle(s))
	return s
}

func typeString(s *Session, text string) {
	for _, r := range text {
		s.TypeRune(r)
	}
}

func TestSession_LoadsDevices(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault(), stick()), nil, Options{})
	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "/dev/sdb1", entries[0].Info.Name)
	assert.Equal(t, device.StateLocked, entries[0].State)
	assert.Equal(t, "/media/x", entries[1].Info.MountPoint)
	_, ok := s.Active().(DisksList)
	assert.True(t, ok)
}

func TestSession_MountEncryptedAsksForPassphrase(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault(), stick()), nil, Options{})

	s.Mount()
	assert.Equal(t, "Mounting /dev/sdb1...", s.Status())
	tickUntil(t, s, func() bool {
		_, ok := s.Active().(*ReadingPassphrase)
		return ok
	})

	st := s.Active().(*ReadingPassphrase)
	assert.Equal(t, 0, st.Buffer.Len())
	assert.Equal(t, 0, st.Ref.Index)
	assert.Equal(t, 0, s.Selected())
	assert.Equal(t, device.StateLocked, s.Entries()[0].State)
}

func TestSession_UnlockAndMount(t *testing.T) {
	fake := udiskstest.New(vault(), stick())
	s := newTestSession(t, fake, nil, Options{})

	s.Mount()
	tickUntil(t, s, func() bool {
		_, ok := s.Active().(*ReadingPassphrase)
		return ok
	})
	st := s.Active().(*ReadingPassphrase)
	typeString(s, "secret")
	assert.Equal(t, 6, st.Buffer.Len())

	require.NoError(t, s.Submit())
	assert.Equal(t, 0, st.Buffer.Len(), "prompt buffer is wiped on submit")
	_, ok := s.Active().(DisksList)
	assert.True(t, ok)

	tickUntil(t, s, idle(s))
	e := s.Entries()[0]
	assert.Equal(t, device.StateMounted, e.State)
	assert.Equal(t, "/media/vault", e.Info.MountPoint)
	assert.Equal(t, "/dev/dm-0", e.Info.Name)
	assert.Equal(t, "Unlocked and mounted /dev/dm-0 at /media/vault", s.Status())
}

func TestSession_WrongPassphraseIsTransient(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault()), nil, Options{})

	s.Mount()
	tickUntil(t, s, func() bool {
		_, ok := s.Active().(*ReadingPassphrase)
		return ok
	})
	typeString(s, "wrong")
	s.Backspace()
	require.NoError(t, s.Submit())
	tickUntil(t, s, idle(s))

	assert.Equal(t, "Error: "+udiskstest.ErrWrongPassphrase.Error(), s.Status())
	assert.Equal(t, device.StateLocked, s.Entries()[0].State)
	_, ok := s.Active().(DisksList)
	assert.True(t, ok)
}

func TestSession_AlreadyMounted(t *testing.T) {
	s := newTestSession(t, udiskstest.New(stick()), nil, Options{})

	s.Mount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Already mounted /dev/sdc1 at /media/x", s.Status())
	assert.Contains(t, s.Status(), "/media/x")
	e := s.Entries()[0]
	assert.Equal(t, device.StateMounted, e.State)
	assert.Equal(t, "/media/x", e.Info.MountPoint)
}

func TestSession_UnmountIdempotent(t *testing.T) {
	s := newTestSession(t, udiskstest.New(stick()), nil, Options{})

	s.Unmount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Unmounted /dev/sdc1", s.Status())
	assert.Equal(t, device.StateUnmounted, s.Entries()[0].State)
	assert.Empty(t, s.Entries()[0].Info.MountPoint)

	s.Unmount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Already unmounted /dev/sdc1", s.Status())
	assert.Equal(t, device.StateUnmounted, s.Entries()[0].State)
}

func TestSession_UnmountLockedIsIdempotent(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault()), nil, Options{})

	s.Unmount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Already unmounted and locked /dev/sdb1", s.Status())
	assert.Equal(t, device.StateLocked, s.Entries()[0].State)
}

func TestSession_UnmountEncryptedLocks(t *testing.T) {
	v := vault()
	v.State = device.StateMounted
	s := newTestSession(t, udiskstest.New(v), nil, Options{})
	assert.Equal(t, "/dev/dm-0", s.Entries()[0].Info.Name)

	s.Unmount()
	tickUntil(t, s, idle(s))
	e := s.Entries()[0]
	assert.Equal(t, device.StateLocked, e.State)
	assert.Equal(t, "/dev/sdb1", e.Info.Name)
	assert.Equal(t, "Unmounted and locked /dev/sdb1", s.Status())
}

func TestSession_OperationErrorLeavesState(t *testing.T) {
	fake := udiskstest.New(plain())
	fake.Fail(device.OpMount, errors.New("Not authorized to perform operation"))
	s := newTestSession(t, fake, nil, Options{})

	s.Mount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Error: Not authorized to perform operation", s.Status())
	assert.Equal(t, device.StateUnmounted, s.Entries()[0].State)

	notices := s.TakeNotices()
	require.NotEmpty(t, notices)
	assert.True(t, notices[len(notices)-1].Error)
	assert.Empty(t, s.TakeNotices())

	// the user may retry
	fake.Fail(device.OpMount, nil)
	s.Mount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Mounted /dev/sdd1 at /media/usb", s.Status())
}

func TestSession_EjectRefreshes(t *testing.T) {
	fake := udiskstest.New(stick(), plain())
	s := newTestSession(t, fake, nil, Options{})
	s.Select(1)

	s.Eject()
	assert.Equal(t, "Ejecting /dev/sdd1...", s.Status())
	tickUntil(t, s, func() bool { return s.Status() == "Ejected /dev/sdd1" })
	assert.Equal(t, 1, s.Busy(), "a full refresh is spawned after the eject")
	assert.Len(t, s.Entries(), 2, "registry is unchanged until the refresh completes")

	tickUntil(t, s, idle(s))
	require.Len(t, s.Entries(), 1)
	assert.Equal(t, "/dev/sdc1", s.Entries()[0].Info.Name)
	assert.Equal(t, 0, s.Selected())
	assert.Equal(t, "Ejected /dev/sdd1", s.Status())
}

func TestSession_StaleResultIsNotApplied(t *testing.T) {
	fake := udiskstest.New(plain(), stick())
	s := newTestSession(t, fake, nil, Options{})

	fake.Hold()
	s.Mount()
	s.Refresh()
	tickUntil(t, s, func() bool { return s.Busy() == 1 })

	fake.Release()
	tickUntil(t, s, idle(s))
	assert.Contains(t, s.Status(), "device list changed")
	assert.Equal(t, device.StateUnmounted, s.Entries()[0].State)
}

func TestSession_Navigation(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault(), stick(), plain()), nil, Options{})

	s.Prev()
	assert.Equal(t, 0, s.Selected())
	s.Next()
	s.Next()
	s.Next()
	assert.Equal(t, 2, s.Selected())
	s.First()
	assert.Equal(t, 0, s.Selected())
	s.Last()
	assert.Equal(t, 2, s.Selected())
	s.Select(7)
	assert.Equal(t, 2, s.Selected())
	s.Select(1)
	assert.Equal(t, 1, s.Selected())
}

func TestSession_CommandsIgnoredWithoutDevices(t *testing.T) {
	s := newTestSession(t, udiskstest.New(), nil, Options{})
	s.Mount()
	s.Unmount()
	s.Eject()
	s.MountAndExit()
	assert.Equal(t, 0, s.Busy())
	assert.False(t, s.ShouldExit())
	s.Last()
	assert.Equal(t, 0, s.Selected())
}

func TestSession_MountAndExit(t *testing.T) {
	s := newTestSession(t, udiskstest.New(plain()), nil, Options{})

	s.MountAndExit()
	assert.False(t, s.ShouldExit(), "waits for the mount")
	assert.True(t, s.Quitting())
	tickUntil(t, s, s.ShouldExit)

	mp, ok := s.ExitMountPoint()
	require.True(t, ok)
	assert.Equal(t, "/media/usb", mp)
}

func TestSession_MountAndExitAfterPassphrase(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault()), nil, Options{})

	s.MountAndExit()
	tickUntil(t, s, func() bool {
		_, ok := s.Active().(*ReadingPassphrase)
		return ok
	})
	assert.False(t, s.ShouldExit(), "exit is deferred while the passphrase is read")

	typeString(s, "secret")
	require.NoError(t, s.Submit())
	tickUntil(t, s, s.ShouldExit)
	mp, ok := s.ExitMountPoint()
	require.True(t, ok)
	assert.Equal(t, "/media/vault", mp)
}

func TestSession_MountAndExitCancelled(t *testing.T) {
	s := newTestSession(t, udiskstest.New(vault()), nil, Options{})

	s.MountAndExit()
	tickUntil(t, s, func() bool {
		_, ok := s.Active().(*ReadingPassphrase)
		return ok
	})
	s.Cancel()
	tickUntil(t, s, idle(s))
	assert.False(t, s.ShouldExit())
	_, ok := s.ExitMountPoint()
	assert.False(t, ok)
	assert.Equal(t, "Cancelled unlocking /dev/sdb1", s.Status())
}

func TestSession_MountAndExitError(t *testing.T) {
	fake := udiskstest.New(plain())
	fake.Fail(device.OpMount, errors.New("busy"))
	s := newTestSession(t, fake, nil, Options{})

	s.MountAndExit()
	tickUntil(t, s, idle(s))
	assert.False(t, s.ShouldExit())
	assert.False(t, s.Quitting())

	// a later plain mount does not inherit the cancelled exit
	fake.Fail(device.OpMount, nil)
	s.Mount()
	tickUntil(t, s, idle(s))
	assert.Equal(t, "Mounted /dev/sdd1 at /media/usb", s.Status())
	s.Quit()
	assert.True(t, s.ShouldExit())
	_, ok := s.ExitMountPoint()
	assert.False(t, ok)
}

func TestSession_MountAndExitStaleDoesNotPrint(t *testing.T) {
	fake := udiskstest.New(plain(), stick())
	s := newTestSession(t, fake, nil, Options{})

	fake.Hold()
	s.MountAndExit()
	s.Refresh()
	tickUntil(t, s, func() bool { return s.Busy() == 1 })
	fake.Release()
	tickUntil(t, s, idle(s))
	assert.Contains(t, s.Status(), "device list changed")
	assert.False(t, s.Quitting())

	s.Mount()
	tickUntil(t, s, idle(s))
	s.Quit()
	_, ok := s.ExitMountPoint()
	assert.False(t, ok)
}

func TestSession_PlainMountDoesNotPrint(t *testing.T) {
	s := newTestSession(t, udiskstest.New(plain()), nil, Options{})
	s.Mount()
	tickUntil(t, s, idle(s))
	s.Quit()
	assert.True(t, s.ShouldExit())
	_, ok := s.ExitMountPoint()
	assert.False(t, ok)
}

func TestSession_QuitWaitsForOperations(t *testing.T) {
	fake := udiskstest.New(plain())
	s := newTestSession(t, fake, nil, Options{})

	fake.Hold()
	s.Mount()
	s.Quit()
	require.NoError(t, s.Tick())
	assert.False(t, s.ShouldExit())

	fake.Release()
	tickUntil(t, s, s.ShouldExit)
	assert.Equal(t, device.StateMounted, s.Entries()[0].State)
}

func TestSession_AuditTrail(t *testing.T) {
	audit, err := auditlog.NewSQLiteLogger(":memory:")
	require.NoError(t, err)
	defer audit.Close()

	fake := udiskstest.New(plain())
	s := newTestSession(t, fake, nil, Options{Audit: audit})
	s.Mount()
	tickUntil(t, s, idle(s))
	fake.Fail(device.OpUnmount, errors.New("target is busy"))
	s.Unmount()
	tickUntil(t, s, idle(s))

	events, err := audit.Query(auditlog.QueryFilter{Kinds: []auditlog.EventKind{auditlog.EventDeviceMount}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "/dev/sdd1", events[0].Device)
	assert.Equal(t, "mounted", events[0].Outcome)
	assert.Equal(t, "/media/usb", events[0].MountPoint)

	events, err = audit.Query(auditlog.QueryFilter{Kinds: []auditlog.EventKind{auditlog.EventOperationFailed}})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "target is busy", events[0].Message)
	assert.Equal(t, "warn", events[0].Level)
}
