package ggdevice

import (
	"fmt"

	"github.com/gogpu/ggdevice/device"
)

// ErrorClass is the result of classifying an error raised while creating
// resources or rendering.
type ErrorClass uint8

const (
	// ErrorOrdinary errors are returned to the caller unchanged.
	ErrorOrdinary ErrorClass = iota

	// ErrorDeviceLost errors mean the device must be discarded and rebuilt.
	ErrorDeviceLost

	// ErrorInconsistent errors carry a device-lost code, but the device
	// reports that it is not lost. They are surfaced to the caller as
	// ErrInconsistentDeviceLost.
	ErrorInconsistent
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorOrdinary:
		return "Ordinary"
	case ErrorDeviceLost:
		return "DeviceLost"
	case ErrorInconsistent:
		return "Inconsistent"
	default:
		return fmt.Sprintf("ErrorClass(%d)", uint8(c))
	}
}

// Classify decides whether err means dev was lost. An error is a device-lost
// error only if the factory recognizes its code and a direct query of dev
// confirms the loss. A *DeviceLostError gets no special treatment: its cause
// is classified like any other error.
func Classify(f device.Factory, dev device.Device, err error) ErrorClass {
	if err == nil {
		return ErrorOrdinary
	}
	if !f.IsDeviceLostError(err) {
		return ErrorOrdinary
	}
	if dev != nil && f.IsDeviceLost(dev) {
		return ErrorDeviceLost
	}
	return ErrorInconsistent
}
