package ggdevice

import (
	"errors"

	"github.com/gogpu/ggdevice/device"
)

// Package errors.
var (
	// ErrDeviceLost matches every *DeviceLostError via errors.Is.
	ErrDeviceLost = errors.New("ggdevice: device lost")

	// ErrMultipleAsyncOperations is returned by TrackAsyncAction when an
	// operation is already being tracked.
	ErrMultipleAsyncOperations = errors.New("ggdevice: only one asynchronous create-resources operation can be tracked at a time")

	// ErrInconsistentDeviceLost is returned when an error carries a
	// device-lost code but the device reports that it is not lost.
	ErrInconsistentDeviceLost = errors.New("ggdevice: error reports device lost but the device is not lost")

	// ErrTrackOutsideCallback is returned by TrackAsyncAction once the
	// create-resources callback that received the args has returned.
	ErrTrackOutsideCallback = errors.New("ggdevice: TrackAsyncAction called outside its create-resources callback")

	// ErrActionCanceled may be returned by an AsyncAction to report that it
	// was cancelled. context.Canceled is treated the same way.
	ErrActionCanceled = errors.New("ggdevice: action canceled")

	// ErrManagerClosed is returned by RunWithDevice after Close.
	ErrManagerClosed = errors.New("ggdevice: manager is closed")

	// ErrNilFactory is returned by NewManager when the factory is nil.
	ErrNilFactory = errors.New("ggdevice: nil device factory")

	// ErrNilHandler is returned when a nil callback or action is passed.
	ErrNilHandler = errors.New("ggdevice: nil handler")
)

// DeviceLostError is returned by the RunWithDevice call that detected a
// device loss. The manager has already scheduled recovery; callers should
// not treat it as fatal.
type DeviceLostError struct {
	Device device.Device
	Err    error
}

func (e *DeviceLostError) Error() string {
	return "ggdevice: device lost: " + e.Err.Error()
}

func (e *DeviceLostError) Unwrap() error { return e.Err }

// Is reports true for ErrDeviceLost.
func (e *DeviceLostError) Is(target error) bool {
	return target == ErrDeviceLost
}

// IsDeviceLost reports whether err is (or wraps) a *DeviceLostError.
func IsDeviceLost(err error) bool {
	return errors.Is(err, ErrDeviceLost)
}
