package auditlog

import "time"

// QueryFilter specifies criteria for querying audit events.
type QueryFilter struct {
	Device    string
	RequestID string
	Kinds     []EventKind
	Limit     int
	Before    time.Time
	After     time.Time
}

// Logger is the interface for emitting and querying audit events.
type Logger interface {
	Emit(event Event)
	Query(filter QueryFilter) ([]Event, error)
	Close() error
}

// EventOption is a functional option for configuring optional Event fields.
type EventOption func(*Event)

// WithDevice sets the Device and Label fields on the event.
func WithDevice(name, label string) EventOption {
	return func(e *Event) {
		e.Device = name
		e.Label = label
	}
}

// WithOutcome sets the Outcome field on the event.
func WithOutcome(outcome string) EventOption {
	return func(e *Event) { e.Outcome = outcome }
}

// WithMountPoint sets the MountPoint field on the event.
func WithMountPoint(mountPoint string) EventOption {
	return func(e *Event) { e.MountPoint = mountPoint }
}

// WithRequest sets the RequestID and User fields on the event.
func WithRequest(id, user string) EventOption {
	return func(e *Event) {
		e.RequestID = id
		e.User = user
	}
}

// WithDetail sets the Detail field on the event (JSON-encoded extra data).
func WithDetail(detail string) EventOption {
	return func(e *Event) { e.Detail = detail }
}

// WithLevel sets the Level field on the event (info, warn, error).
func WithLevel(level string) EventOption {
	return func(e *Event) { e.Level = level }
}

// NewEvent builds an event of the given kind.
func NewEvent(kind EventKind, message string, opts ...EventOption) Event {
	e := Event{Kind: kind, Message: message}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// nopLogger is a no-op Logger used when auditing is disabled.
type nopLogger struct{}

// NopLogger returns a Logger that discards all events.
func NopLogger() Logger {
	return &nopLogger{}
}

func (n *nopLogger) Emit(_ Event) {}

func (n *nopLogger) Query(_ QueryFilter) ([]Event, error) {
	return nil, nil
}

func (n *nopLogger) Close() error {
	return nil
}
