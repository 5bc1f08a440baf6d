package device

// Message is the result of a completed background device operation. It is
// applied to the registry and session on the interactive loop only.
type Message interface {
	isMessage()
}

// Loaded carries a freshly read device list. Applying it replaces the
// registry and starts a new generation.
type Loaded struct {
	Entries []Entry
}

// Completion reports the outcome of an operation on the device at Ref.
// Info, when set, replaces the entry's display attributes (an unlock or lock
// switches between the container and its cleartext device). Name is the
// display name of the device when the operation was issued.
type Completion struct {
	Ref        Ref
	Name       string
	Outcome    Outcome
	MountPoint string
	Info       *Info
}

// Ejected reports that the device named Name was ejected. Applying it starts
// a full refresh, since ejecting can remove several block devices at once.
type Ejected struct {
	Ref  Ref
	Name string
}

func (Loaded) isMessage()     {}
func (Completion) isMessage() {}
func (Ejected) isMessage()    {}

// Result is what the device-management service reports for an operation.
type Result struct {
	Outcome    Outcome
	MountPoint string
	Info       *Info
}
