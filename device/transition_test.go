package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	allKinds  = []Kind{KindFilesystem, KindEncrypted}
	allStates = []State{StateLocked, StateUnmountedUnlocked, StateMounted, StateUnmounted}
	allOps    = []Op{OpMount, OpUnmount, OpEject}
)

func TestPlan_Table(t *testing.T) {
	cases := []struct {
		kind   Kind
		state  State
		op     Op
		secret bool
		want   Transition
	}{
		{KindFilesystem, StateUnmounted, OpMount, false, Transition{StateMounted, OutcomeMounted}},
		{KindFilesystem, StateMounted, OpMount, false, Transition{StateMounted, OutcomeAlreadyMounted}},
		{KindFilesystem, StateMounted, OpUnmount, false, Transition{StateUnmounted, OutcomeUnmounted}},
		{KindFilesystem, StateUnmounted, OpUnmount, false, Transition{StateUnmounted, OutcomeAlreadyUnmounted}},
		{KindEncrypted, StateLocked, OpMount, false, Transition{StateLocked, OutcomePassphraseRequired}},
		{KindEncrypted, StateLocked, OpMount, true, Transition{StateMounted, OutcomeUnlockedAndMounted}},
		{KindEncrypted, StateUnmountedUnlocked, OpMount, false, Transition{StateMounted, OutcomeMounted}},
		{KindEncrypted, StateMounted, OpMount, false, Transition{StateMounted, OutcomeAlreadyMounted}},
		{KindEncrypted, StateMounted, OpUnmount, false, Transition{StateLocked, OutcomeUnmountedAndLocked}},
		{KindEncrypted, StateUnmountedUnlocked, OpUnmount, false, Transition{StateLocked, OutcomeLocked}},
		{KindEncrypted, StateLocked, OpUnmount, false, Transition{StateLocked, OutcomeAlreadyLocked}},
		{KindFilesystem, StateLocked, OpMount, false, Transition{StateMounted, OutcomeMounted}},
		{KindEncrypted, StateUnmounted, OpUnmount, false, Transition{StateLocked, OutcomeAlreadyLocked}},
		{KindEncrypted, StateMounted, OpEject, false, Transition{StateMounted, OutcomeEjected}},
		{KindFilesystem, StateUnmounted, OpEject, false, Transition{StateUnmounted, OutcomeEjected}},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String()+"_"+tc.state.String()+"_"+tc.op.String(), func(t *testing.T) {
			got, err := Plan(tc.kind, tc.state, tc.op, tc.secret)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPlan_Exhaustive(t *testing.T) {
	for _, k := range allKinds {
		for _, s := range allStates {
			for _, op := range allOps {
				for _, secret := range []bool{false, true} {
					first, err := Plan(k, s, op, secret)
					require.NoError(t, err, "%s %s %s secret=%v", k, s, op, secret)
					second, err := Plan(k, s, op, secret)
					require.NoError(t, err)
					assert.Equal(t, first, second, "plan must be deterministic")
				}
			}
		}
	}
}

func TestPlan_Idempotent(t *testing.T) {
	for _, k := range allKinds {
		got, err := Plan(k, StateMounted, OpMount, false)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyMounted, got.Outcome)
		assert.Equal(t, StateMounted, got.Next)
	}

	got, err := Plan(KindFilesystem, StateUnmounted, OpUnmount, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyUnmounted, got.Outcome)
	assert.Equal(t, StateUnmounted, got.Next)

	got, err = Plan(KindEncrypted, StateLocked, OpUnmount, false)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyLocked, got.Outcome)
	assert.Equal(t, StateLocked, got.Next)
}

func TestPlan_NextMatchesResultState(t *testing.T) {
	for _, k := range allKinds {
		for _, s := range allStates {
			for _, op := range []Op{OpMount, OpUnmount} {
				tr, err := Plan(k, s, op, true)
				require.NoError(t, err)
				next, ok := tr.Outcome.ResultState()
				if ok {
					assert.Equal(t, tr.Next, next, "%s %s %s", k, s, op)
				}
			}
		}
	}
}

func TestPlan_UnknownKind(t *testing.T) {
	_, err := Plan(Kind(42), StateMounted, OpMount, false)
	assert.Error(t, err)
	_, err = Plan(KindFilesystem, State(42), OpEject, false)
	assert.Error(t, err)
	_, err = Plan(KindFilesystem, StateMounted, Op(42), false)
	assert.Error(t, err)
}

func TestOutcome_ResultState(t *testing.T) {
	_, ok := OutcomePassphraseRequired.ResultState()
	assert.False(t, ok)
	_, ok = OutcomeEjected.ResultState()
	assert.False(t, ok)

	s, ok := OutcomeUnmountedAndLocked.ResultState()
	assert.True(t, ok)
	assert.Equal(t, StateLocked, s)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "unlocked_and_mounted", OutcomeUnlockedAndMounted.String())
	assert.Equal(t, "outcome(99)", Outcome(99).String())
}
