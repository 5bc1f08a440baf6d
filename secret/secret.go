// Package secret holds passphrases in a wipeable byte buffer. Secret material
// typed by the user stays in bytes from the first keystroke until it is handed
// to the device or authentication call; Wipe zeroes it afterwards.
package secret

import (
	"unicode/utf8"

	"golang.org/x/sys/unix"
)

// initialCap covers typical passphrases without reallocating.
const initialCap = 256

// Secret is a growable, mlock'ed byte buffer. The zero value is not usable;
// construct with New or FromBytes. Secret is not safe for concurrent use.
type Secret struct {
	buf    []byte
	locked bool
}

// New returns an empty secret.
func New() *Secret {
	s := &Secret{buf: make([]byte, 0, initialCap)}
	s.lock()
	return s
}

// FromBytes copies b into a new secret. The caller remains responsible for
// clearing b.
func FromBytes(b []byte) *Secret {
	s := New()
	s.grow(len(b))
	s.buf = append(s.buf, b...)
	return s
}

// lock pins the backing array in memory so it is never swapped out. Failure
// (e.g. RLIMIT_MEMLOCK) is tolerated.
func (s *Secret) lock() {
	if cap(s.buf) == 0 {
		return
	}
	s.locked = unix.Mlock(s.buf[:cap(s.buf)]) == nil
}

func (s *Secret) unlock() {
	if s.locked && cap(s.buf) > 0 {
		_ = unix.Munlock(s.buf[:cap(s.buf)])
	}
	s.locked = false
}

// grow makes room for n more bytes, wiping the old backing array if a new
// one has to be allocated.
func (s *Secret) grow(n int) {
	if len(s.buf)+n <= cap(s.buf) {
		return
	}
	next := make([]byte, len(s.buf), 2*cap(s.buf)+n)
	copy(next, s.buf)
	clear(s.buf[:cap(s.buf)])
	s.unlock()
	s.buf = next
	s.lock()
}

// AppendRune adds r to the end of the secret.
func (s *Secret) AppendRune(r rune) {
	var tmp [utf8.UTFMax]byte
	n := utf8.EncodeRune(tmp[:], r)
	s.grow(n)
	s.buf = append(s.buf, tmp[:n]...)
	clear(tmp[:])
}

// Backspace removes the last rune. It is a no-op on an empty secret.
func (s *Secret) Backspace() {
	if len(s.buf) == 0 {
		return
	}
	_, size := utf8.DecodeLastRune(s.buf)
	clear(s.buf[len(s.buf)-size:])
	s.buf = s.buf[:len(s.buf)-size]
}

// Reset clears the content but keeps the buffer usable.
func (s *Secret) Reset() {
	clear(s.buf[:cap(s.buf)])
	s.buf = s.buf[:0]
}

// Len returns the number of bytes held.
func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.buf)
}

// RuneCount returns the number of runes held, used for masked rendering.
func (s *Secret) RuneCount() int {
	if s == nil {
		return 0
	}
	return utf8.RuneCount(s.buf)
}

// Bytes exposes the underlying bytes. The slice is only valid until the next
// mutation or Wipe and must not be retained.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.buf
}

// Clone returns an independent copy.
func (s *Secret) Clone() *Secret {
	return FromBytes(s.Bytes())
}

// Wipe zeroes the buffer and releases the memory lock. The secret is empty
// afterwards. Wipe is idempotent and safe on a nil secret.
func (s *Secret) Wipe() {
	if s == nil {
		return
	}
	clear(s.buf[:cap(s.buf)])
	s.unlock()
	s.buf = s.buf[:0]
}

// String never reveals the content.
func (s *Secret) String() string {
	return "[REDACTED]"
}

// GoString keeps %#v from dumping the buffer.
func (s *Secret) GoString() string {
	return "secret.Secret{[REDACTED]}"
}
