package auditlog

import "time"

// EventKind identifies the type of audit event.
type EventKind string

// String returns the string representation of the EventKind.
func (k EventKind) String() string {
	return string(k)
}

// Device events.
const (
	EventDeviceMount   EventKind = "device_mount"
	EventDeviceUnmount EventKind = "device_unmount"
	EventDeviceEject   EventKind = "device_eject"
	EventDeviceRefresh EventKind = "device_refresh"
	EventStaleResult   EventKind = "stale_result"
)

// Authentication agent events.
const (
	EventAgentUserChosen        EventKind = "agent_user_chosen"
	EventAgentPasswordRequested EventKind = "agent_password_requested"
	EventAgentPasswordAnswered  EventKind = "agent_password_answered"
	EventAgentPasswordCancelled EventKind = "agent_password_cancelled"
)

// Operational events.
const (
	EventOperationFailed EventKind = "operation_failed"
	EventError           EventKind = "error"
)

// Event is a single audit log entry. Secrets are never recorded.
type Event struct {
	ID         int64
	Kind       EventKind
	Timestamp  time.Time
	Device     string
	Label      string
	Outcome    string
	MountPoint string
	RequestID  string
	User       string
	Message    string
	Detail     string // JSON-encoded extra data
	Level      string // info, warn, error
}
