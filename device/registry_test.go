package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []Entry {
	return []Entry{
		{
			Descriptor: Descriptor{Handle: "/dev/sdb1", Kind: KindEncrypted},
			Info:       Info{Name: "/dev/sdb1", Label: "vault", Size: "16 GB"},
			State:      StateLocked,
		},
		{
			Descriptor: Descriptor{Handle: "/dev/sdc1", Kind: KindFilesystem},
			Info:       Info{Name: "/dev/sdc1", Label: "usb", Size: "8.0 GB", MountPoint: "/media/x"},
			State:      StateMounted,
		},
	}
}

func TestRegistry_ReplaceBumpsGeneration(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, uint64(0), r.Generation())

	r.Replace(testEntries())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, uint64(1), r.Generation())

	ref, ok := r.Ref(1)
	require.True(t, ok)
	e, ok := r.Resolve(ref)
	require.True(t, ok)
	assert.Equal(t, "usb", e.Info.Label)

	r.Replace(testEntries())
	_, ok = r.Resolve(ref)
	assert.False(t, ok, "ref from previous generation must not resolve")
}

func TestRegistry_RefOutOfRange(t *testing.T) {
	r := NewRegistry()
	r.Replace(testEntries())
	_, ok := r.Ref(2)
	assert.False(t, ok)
	_, ok = r.Ref(-1)
	assert.False(t, ok)
	_, ok = r.At(5)
	assert.False(t, ok)
}

func TestRegistry_EntriesIsCopy(t *testing.T) {
	r := NewRegistry()
	src := testEntries()
	r.Replace(src)
	src[0].Info.Label = "changed"
	got := r.Entries()
	got[1].State = StateUnmounted

	e, _ := r.At(0)
	assert.Equal(t, "vault", e.Info.Label)
	e, _ = r.At(1)
	assert.Equal(t, StateMounted, e.State)
}

func TestRegistry_Apply(t *testing.T) {
	cleartext := &Info{Name: "/dev/dm-0", Label: "vault", Size: "16 GB"}

	cases := []struct {
		name      string
		index     int
		c         Completion
		wantState State
		wantMount string
		wantName  string
	}{
		{
			name:      "unlocked and mounted replaces info",
			index:     0,
			c:         Completion{Outcome: OutcomeUnlockedAndMounted, MountPoint: "/media/vault", Info: cleartext},
			wantState: StateMounted,
			wantMount: "/media/vault",
			wantName:  "/dev/dm-0",
		},
		{
			name:      "passphrase required leaves entry",
			index:     0,
			c:         Completion{Outcome: OutcomePassphraseRequired},
			wantState: StateLocked,
			wantName:  "/dev/sdb1",
		},
		{
			name:      "already mounted keeps mount point",
			index:     1,
			c:         Completion{Outcome: OutcomeAlreadyMounted, MountPoint: "/media/x"},
			wantState: StateMounted,
			wantMount: "/media/x",
			wantName:  "/dev/sdc1",
		},
		{
			name:      "unmounted clears mount point",
			index:     1,
			c:         Completion{Outcome: OutcomeUnmounted},
			wantState: StateUnmounted,
			wantName:  "/dev/sdc1",
		},
		{
			name:      "eject leaves entry",
			index:     1,
			c:         Completion{Outcome: OutcomeEjected},
			wantState: StateMounted,
			wantMount: "/media/x",
			wantName:  "/dev/sdc1",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewRegistry()
			r.Replace(testEntries())
			ref, ok := r.Ref(tc.index)
			require.True(t, ok)
			tc.c.Ref = ref

			e, err := r.Apply(tc.c)
			require.NoError(t, err)
			assert.Equal(t, tc.wantState, e.State)
			assert.Equal(t, tc.wantMount, e.Info.MountPoint)
			assert.Equal(t, tc.wantName, e.Info.Name)

			stored, _ := r.At(tc.index)
			assert.Equal(t, e, stored)
		})
	}
}

func TestRegistry_ApplyStale(t *testing.T) {
	r := NewRegistry()
	r.Replace(testEntries())
	ref, _ := r.Ref(1)
	r.Replace(testEntries()[:1])

	_, err := r.Apply(Completion{Ref: ref, Outcome: OutcomeUnmounted})
	assert.ErrorIs(t, err, ErrStaleRef)

	_, err = r.Apply(Completion{Ref: Ref{Index: 3, Generation: r.Generation()}, Outcome: OutcomeUnmounted})
	assert.ErrorIs(t, err, ErrStaleRef)
}
