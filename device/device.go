// Package device models the storage devices managed by a session: their
// descriptors, display attributes, per-device state machine and the registry
// that holds them.
package device

import "fmt"

// Kind is the kind of block device.
type Kind int

const (
	// KindFilesystem is a block device carrying a mountable filesystem.
	KindFilesystem Kind = iota
	// KindEncrypted is an encrypted container that must be unlocked before
	// its cleartext filesystem can be mounted.
	KindEncrypted
)

func (k Kind) String() string {
	switch k {
	case KindFilesystem:
		return "filesystem"
	case KindEncrypted:
		return "encrypted"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// State is the observable state of a device.
type State int

const (
	StateLocked State = iota
	StateUnmountedUnlocked
	StateMounted
	StateUnmounted
)

func (s State) String() string {
	switch s {
	case StateLocked:
		return "locked"
	case StateUnmountedUnlocked:
		return "unlocked"
	case StateMounted:
		return "mounted"
	case StateUnmounted:
		return "unmounted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Descriptor identifies a device to the device-management service. Handle is
// opaque outside the service client. Descriptors are values; background work
// receives a copy, never a pointer into the registry.
type Descriptor struct {
	Handle string
	Kind   Kind
}

// Info holds the display attributes of a device. MountPoint is empty when the
// device is not mounted.
type Info struct {
	Name       string
	Label      string
	Size       string
	MountPoint string
}

// Attributes is everything read about a device when the registry is loaded.
type Attributes struct {
	Info
	Kind  Kind
	State State
}

// Entry is one row of the registry.
type Entry struct {
	Descriptor Descriptor
	Info       Info
	State      State
}

// Ref addresses a registry entry across asynchronous boundaries. A Ref is
// only valid for the registry generation it was taken from.
type Ref struct {
	Index      int
	Generation uint64
}

func (r Ref) String() string {
	return fmt.Sprintf("%d@%d", r.Index, r.Generation)
}
