// Package udiskstest provides an in-memory device manager for tests.
package udiskstest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync"

	"github.com/kastheco/mountie/device"
	"github.com/kastheco/mountie/secret"
)

// ErrWrongPassphrase is returned when unlocking with the wrong passphrase.
var ErrWrongPassphrase = errors.New("wrong passphrase")

// Device is a fake block device.
type Device struct {
	Handle string
	Kind   device.Kind
	State  device.State
	Name   string
	Label  string
	Size   string
	// MountPoint defaults to /media/<label> when mounted.
	MountPoint string
	// Passphrase unlocks an encrypted device.
	Passphrase string
	// CleartextName is the name shown while an encrypted device is unlocked.
	CleartextName string
	// Drive groups devices removed together by an eject.
	Drive string
}

// Fake implements the session's device manager on in-memory devices, using
// the same transition table as the real client.
type Fake struct {
	mu      sync.Mutex
	devices []*Device
	calls   []string
	fail    map[device.Op]error
	hold    chan struct{}
}

func New(devices ...Device) *Fake {
	f := &Fake{fail: make(map[device.Op]error)}
	for i := range devices {
		d := devices[i]
		f.devices = append(f.devices, &d)
	}
	return f
}

// Fail makes every call of op return err. A nil err clears it.
func (f *Fake) Fail(op device.Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, op)
		return
	}
	f.fail[op] = err
}

// Hold blocks mount, unmount and eject calls until Release.
func (f *Fake) Hold() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold == nil {
		f.hold = make(chan struct{})
	}
}

// Release unblocks held calls.
func (f *Fake) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold != nil {
		close(f.hold)
		f.hold = nil
	}
}

// Calls returns the operations performed so far, as "op handle".
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Device returns a copy of the device with the given handle.
func (f *Fake) Device(handle string) (Device, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.find(handle)
	if d == nil {
		return Device{}, false
	}
	return *d, true
}

func (f *Fake) ListDevices(_ context.Context) ([]device.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]device.Descriptor, 0, len(f.devices))
	for _, d := range f.devices {
		out = append(out, device.Descriptor{Handle: d.Handle, Kind: d.Kind})
	}
	return out, nil
}

func (f *Fake) ReadAttributes(_ context.Context, desc device.Descriptor) (device.Attributes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.find(desc.Handle)
	if d == nil {
		return device.Attributes{}, fmt.Errorf("no such device %s", desc.Handle)
	}
	return device.Attributes{Info: d.info(), Kind: d.Kind, State: d.State}, nil
}

func (f *Fake) Mount(ctx context.Context, desc device.Descriptor, pass *secret.Secret) (device.Result, error) {
	return f.operate(ctx, device.OpMount, desc, pass)
}

func (f *Fake) Unmount(ctx context.Context, desc device.Descriptor) (device.Result, error) {
	return f.operate(ctx, device.OpUnmount, desc, nil)
}

func (f *Fake) Eject(ctx context.Context, desc device.Descriptor) (device.Result, error) {
	return f.operate(ctx, device.OpEject, desc, nil)
}

func (f *Fake) operate(ctx context.Context, op device.Op, desc device.Descriptor, pass *secret.Secret) (device.Result, error) {
	f.mu.Lock()
	hold := f.hold
	f.mu.Unlock()
	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return device.Result{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op.String()+" "+desc.Handle)
	if err := f.fail[op]; err != nil {
		return device.Result{}, err
	}
	d := f.find(desc.Handle)
	if d == nil {
		return device.Result{}, fmt.Errorf("no such device %s", desc.Handle)
	}

	tr, err := device.Plan(d.Kind, d.State, op, pass.Len() > 0)
	if err != nil {
		return device.Result{}, err
	}
	if tr.Outcome == device.OutcomeUnlockedAndMounted && !bytes.Equal(pass.Bytes(), []byte(d.Passphrase)) {
		return device.Result{}, ErrWrongPassphrase
	}
	if op == device.OpEject {
		f.eject(d)
		return device.Result{Outcome: tr.Outcome}, nil
	}

	wasUnlocked := d.State == device.StateMounted || d.State == device.StateUnmountedUnlocked
	d.State = tr.Next
	res := device.Result{Outcome: tr.Outcome}
	if d.State == device.StateMounted {
		res.MountPoint = d.mountPoint()
	}
	switch tr.Outcome {
	case device.OutcomeUnlockedAndMounted:
		info := d.info()
		res.Info = &info
	case device.OutcomeUnmountedAndLocked, device.OutcomeLocked:
		if wasUnlocked {
			info := d.info()
			res.Info = &info
		}
	}
	return res, nil
}

func (f *Fake) eject(target *Device) {
	kept := f.devices[:0]
	for _, d := range f.devices {
		if d == target || (target.Drive != "" && d.Drive == target.Drive) {
			continue
		}
		kept = append(kept, d)
	}
	f.devices = kept
}

func (f *Fake) find(handle string) *Device {
	for _, d := range f.devices {
		if d.Handle == handle {
			return d
		}
	}
	return nil
}

func (d *Device) mountPoint() string {
	if d.MountPoint != "" {
		return d.MountPoint
	}
	label := d.Label
	if label == "" {
		label = path.Base(d.Handle)
	}
	return "/media/" + label
}

func (d *Device) info() device.Info {
	name := d.Name
	if d.Kind == device.KindEncrypted && d.CleartextName != "" &&
		(d.State == device.StateMounted || d.State == device.StateUnmountedUnlocked) {
		name = d.CleartextName
	}
	info := device.Info{Name: name, Label: d.Label, Size: d.Size}
	if d.State == device.StateMounted {
		info.MountPoint = d.mountPoint()
	}
	return info
}
