package udisks

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/kastheco/mountie/device"
)

// OperationError is returned when UDisks2 rejects or fails an operation.
type OperationError struct {
	Op     device.Op
	Device string
	Err    error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Device, describe(e.Err))
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// describe prefers the message UDisks2 attaches to a D-Bus error over the
// wrapped error chain.
func describe(err error) string {
	var derr dbus.Error
	if errors.As(err, &derr) {
		return derr.Error()
	}
	var perr *dbus.Error
	if errors.As(err, &perr) && perr != nil {
		return perr.Error()
	}
	return err.Error()
}

func opError(op device.Op, d device.Descriptor, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Op: op, Device: d.Handle, Err: err}
}
