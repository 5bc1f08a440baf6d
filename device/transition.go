package device

import "fmt"

// Op is an operation requested on a device.
type Op int

const (
	OpMount Op = iota
	OpUnmount
	OpEject
)

func (o Op) String() string {
	switch o {
	case OpMount:
		return "mount"
	case OpUnmount:
		return "unmount"
	case OpEject:
		return "eject"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Outcome is the completion reported for an operation.
type Outcome int

const (
	OutcomeMounted Outcome = iota
	OutcomeAlreadyMounted
	OutcomeUnlockedAndMounted
	OutcomePassphraseRequired
	OutcomeUnmounted
	OutcomeAlreadyUnmounted
	OutcomeUnmountedAndLocked
	OutcomeLocked
	OutcomeAlreadyLocked
	OutcomeEjected
)

var outcomeNames = map[Outcome]string{
	OutcomeMounted:            "mounted",
	OutcomeAlreadyMounted:     "already_mounted",
	OutcomeUnlockedAndMounted: "unlocked_and_mounted",
	OutcomePassphraseRequired: "passphrase_required",
	OutcomeUnmounted:          "unmounted",
	OutcomeAlreadyUnmounted:   "already_unmounted",
	OutcomeUnmountedAndLocked: "unmounted_and_locked",
	OutcomeLocked:             "locked",
	OutcomeAlreadyLocked:      "already_locked",
	OutcomeEjected:            "ejected",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// ResultState returns the state a device is in after an operation reported o.
// ok is false for outcomes that leave the state untouched.
func (o Outcome) ResultState() (s State, ok bool) {
	switch o {
	case OutcomeMounted, OutcomeAlreadyMounted, OutcomeUnlockedAndMounted:
		return StateMounted, true
	case OutcomeUnmounted, OutcomeAlreadyUnmounted:
		return StateUnmounted, true
	case OutcomeUnmountedAndLocked, OutcomeLocked, OutcomeAlreadyLocked:
		return StateLocked, true
	default:
		return 0, false
	}
}

// Transition is the planned effect of an operation.
type Transition struct {
	Next    State
	Outcome Outcome
}

type rule struct {
	plain Transition
	// unlock, when set, applies instead of plain if a secret is supplied.
	unlock *Transition
}

// transitionTable defines every (kind, state, op) triple except eject, which
// is uniform. Filesystems have no lock layer, so Locked and UnmountedUnlocked
// behave like Unmounted; an encrypted Unmounted device behaves like Locked.
var transitionTable = map[Kind]map[State]map[Op]rule{
	KindFilesystem: {
		StateUnmounted: {
			OpMount:   {plain: Transition{StateMounted, OutcomeMounted}},
			OpUnmount: {plain: Transition{StateUnmounted, OutcomeAlreadyUnmounted}},
		},
		StateMounted: {
			OpMount:   {plain: Transition{StateMounted, OutcomeAlreadyMounted}},
			OpUnmount: {plain: Transition{StateUnmounted, OutcomeUnmounted}},
		},
		StateLocked: {
			OpMount:   {plain: Transition{StateMounted, OutcomeMounted}},
			OpUnmount: {plain: Transition{StateUnmounted, OutcomeAlreadyUnmounted}},
		},
		StateUnmountedUnlocked: {
			OpMount:   {plain: Transition{StateMounted, OutcomeMounted}},
			OpUnmount: {plain: Transition{StateUnmounted, OutcomeAlreadyUnmounted}},
		},
	},
	KindEncrypted: {
		StateLocked: {
			OpMount: {
				plain:  Transition{StateLocked, OutcomePassphraseRequired},
				unlock: &Transition{StateMounted, OutcomeUnlockedAndMounted},
			},
			OpUnmount: {plain: Transition{StateLocked, OutcomeAlreadyLocked}},
		},
		StateUnmountedUnlocked: {
			OpMount:   {plain: Transition{StateMounted, OutcomeMounted}},
			OpUnmount: {plain: Transition{StateLocked, OutcomeLocked}},
		},
		StateMounted: {
			OpMount:   {plain: Transition{StateMounted, OutcomeAlreadyMounted}},
			OpUnmount: {plain: Transition{StateLocked, OutcomeUnmountedAndLocked}},
		},
		StateUnmounted: {
			OpMount: {
				plain:  Transition{StateLocked, OutcomePassphraseRequired},
				unlock: &Transition{StateMounted, OutcomeUnlockedAndMounted},
			},
			OpUnmount: {plain: Transition{StateLocked, OutcomeAlreadyLocked}},
		},
	},
}

// Plan returns the transition for op on a device of the given kind in the
// given state. secretSupplied only matters when unlocking.
func Plan(kind Kind, state State, op Op, secretSupplied bool) (Transition, error) {
	if op == OpEject {
		if _, ok := transitionTable[kind][state]; !ok {
			return Transition{}, fmt.Errorf("no transitions defined for %s device in state %s", kind, state)
		}
		return Transition{Next: state, Outcome: OutcomeEjected}, nil
	}
	states, ok := transitionTable[kind]
	if !ok {
		return Transition{}, fmt.Errorf("no transitions defined for kind %s", kind)
	}
	ops, ok := states[state]
	if !ok {
		return Transition{}, fmt.Errorf("no transitions defined for %s device in state %s", kind, state)
	}
	r, ok := ops[op]
	if !ok {
		return Transition{}, fmt.Errorf("invalid transition: %s %s + %s", kind, state, op)
	}
	if secretSupplied && r.unlock != nil {
		return *r.unlock, nil
	}
	return r.plain, nil
}
