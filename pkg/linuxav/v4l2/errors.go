//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"syscall"
)

var (
	// ErrInvalidState is returned when a camera operation is not allowed in
	// the handle's current state (for example Grab before Start).
	ErrInvalidState = errors.New("invalid camera state")

	// ErrDeviceNotFound is returned when no device matches a stable ID.
	ErrDeviceNotFound = errors.New("device not found")

	// ErrUnknownControl is returned for control IDs outside the supported set.
	ErrUnknownControl = errors.New("unknown control")

	// ErrTimeout is returned by Grab when no frame arrives within the grab timeout.
	ErrTimeout = errors.New("timed out waiting for frame")

	// ErrNoFormat is returned by AutoSetFormat when the device offers no
	// decodable format.
	ErrNoFormat = errors.New("no supported format")

	// ErrEventsNotSupported is returned when the device doesn't support V4L2 events.
	ErrEventsNotSupported = syscall.ENOTSUP
)

// DeviceError reports a failed driver call. The errno is preserved, so
// errors.Is(err, syscall.EINVAL) works through it.
type DeviceError struct {
	Op   string
	Path string
	Err  error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

func deviceError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &DeviceError{Op: op, Path: path, Err: err}
}

func stateError(op string, s State) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidState, op, s)
}
