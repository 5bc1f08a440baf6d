package device

import (
	"errors"
	"fmt"
)

// ErrStaleRef is returned when a Ref was taken from an earlier generation of
// the registry or no longer points at an entry.
var ErrStaleRef = errors.New("stale device reference")

// Registry is the ordered list of known devices and their last-known state.
// It is owned by the interactive loop and mutated only by applying messages.
type Registry struct {
	entries    []Entry
	generation uint64
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of devices.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Generation is bumped by every Replace.
func (r *Registry) Generation() uint64 {
	return r.generation
}

// At returns a copy of the entry at index i.
func (r *Registry) At(i int) (Entry, bool) {
	if i < 0 || i >= len(r.entries) {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns a copy of all entries, in order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Ref returns a generation-tagged reference to index i.
func (r *Registry) Ref(i int) (Ref, bool) {
	if i < 0 || i >= len(r.entries) {
		return Ref{}, false
	}
	return Ref{Index: i, Generation: r.generation}, true
}

// Resolve returns the entry ref points at, if ref is current.
func (r *Registry) Resolve(ref Ref) (Entry, bool) {
	if ref.Generation != r.generation {
		return Entry{}, false
	}
	return r.At(ref.Index)
}

// Replace installs a new device list and starts a new generation. Every Ref
// handed out before is stale afterwards.
func (r *Registry) Replace(entries []Entry) {
	r.entries = make([]Entry, len(entries))
	copy(r.entries, entries)
	r.generation++
}

// Apply updates the entry addressed by c.Ref according to c.Outcome and
// returns the updated entry.
func (r *Registry) Apply(c Completion) (Entry, error) {
	if c.Ref.Generation != r.generation || c.Ref.Index < 0 || c.Ref.Index >= len(r.entries) {
		return Entry{}, fmt.Errorf("apply %s to device %s: %w", c.Outcome, c.Ref, ErrStaleRef)
	}
	e := &r.entries[c.Ref.Index]
	if c.Info != nil {
		e.Info = *c.Info
	}
	if next, ok := c.Outcome.ResultState(); ok {
		e.State = next
		if next == StateMounted {
			e.Info.MountPoint = c.MountPoint
		} else {
			e.Info.MountPoint = ""
		}
	}
	return *e, nil
}
