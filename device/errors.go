package device

import (
	"errors"
	"fmt"
)

// Package errors.
var (
	// ErrDeviceLost is returned by operations on a device that has been lost.
	ErrDeviceLost = errors.New("device: GPU device lost")

	// ErrCreateFailed is returned when a factory cannot create a device.
	ErrCreateFailed = errors.New("device: device creation failed")

	// ErrDeviceClosed is returned by operations on a closed device.
	ErrDeviceClosed = errors.New("device: device is closed")
)

// Code is a status code reported by a device.
type Code uint32

// Status codes. The lost codes mirror the driver conditions under which a
// device must be discarded and recreated.
const (
	CodeDeviceRemoved Code = 0x887A0005
	CodeDeviceHung    Code = 0x887A0006
	CodeDeviceReset   Code = 0x887A0007
	CodeInvalidCall   Code = 0x887A0001
)

// String returns a readable name for the code.
func (c Code) String() string {
	switch c {
	case CodeDeviceRemoved:
		return "DeviceRemoved"
	case CodeDeviceHung:
		return "DeviceHung"
	case CodeDeviceReset:
		return "DeviceReset"
	case CodeInvalidCall:
		return "InvalidCall"
	default:
		return fmt.Sprintf("Code(%#x)", uint32(c))
	}
}

// IsLostCode reports whether c is one of the device-lost codes.
func (c Code) IsLostCode() bool {
	switch c {
	case CodeDeviceRemoved, CodeDeviceHung, CodeDeviceReset:
		return true
	}
	return false
}

// DeviceError is an error carrying a device status code.
type DeviceError struct {
	Code Code
	Op   string
}

func (e *DeviceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("device: %s", e.Code)
	}
	return fmt.Sprintf("device: %s: %s", e.Op, e.Code)
}

// Is lets errors.Is(err, ErrDeviceLost) match lost codes.
func (e *DeviceError) Is(target error) bool {
	return target == ErrDeviceLost && e.Code.IsLostCode()
}

// IsLostCodeError reports whether err carries a device-lost code, either as
// ErrDeviceLost or as a DeviceError with a lost code. It is the predicate
// the software factories use for Factory.IsDeviceLostError.
func IsLostCodeError(err error) bool {
	if err == nil {
		return false
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return de.Code.IsLostCode()
	}
	return errors.Is(err, ErrDeviceLost)
}
