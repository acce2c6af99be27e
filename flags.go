package ggdevice

import (
	"fmt"
	"strings"
)

// RunWithDeviceFlags describe what happened during a RunWithDevice call.
// They are recomputed on every call and passed to the render function.
type RunWithDeviceFlags uint32

const (
	// NewlyCreatedDevice is set on the call that created the current device.
	NewlyCreatedDevice RunWithDeviceFlags = 1 << iota

	// ResourcesNotCreated is set when the create-resources cycle has not
	// completed. The render function is never called with this flag.
	ResourcesNotCreated
)

// Has reports whether every bit in flag is set.
func (f RunWithDeviceFlags) Has(flag RunWithDeviceFlags) bool {
	return f&flag == flag
}

func (f RunWithDeviceFlags) String() string {
	if f == 0 {
		return "None"
	}
	var parts []string
	if f.Has(NewlyCreatedDevice) {
		parts = append(parts, "NewlyCreatedDevice")
	}
	if f.Has(ResourcesNotCreated) {
		parts = append(parts, "ResourcesNotCreated")
	}
	if rest := f &^ (NewlyCreatedDevice | ResourcesNotCreated); rest != 0 {
		parts = append(parts, fmt.Sprintf("%#x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ChangeReason is passed to the changed callback to explain why the owner
// should schedule another RunWithDevice call.
type ChangeReason uint8

const (
	// ChangeReasonOther covers new resources becoming ready, a pending DPI
	// change, and an async operation retiring.
	ChangeReasonOther ChangeReason = iota

	// ChangeReasonDeviceLost reports that the device was lost. It is not an
	// error: recovery happens on the next RunWithDevice call.
	ChangeReasonDeviceLost
)

func (r ChangeReason) String() string {
	switch r {
	case ChangeReasonOther:
		return "Other"
	case ChangeReasonDeviceLost:
		return "DeviceLost"
	default:
		return fmt.Sprintf("ChangeReason(%d)", uint8(r))
	}
}

// CreateResourcesReason tells a create-resources callback why it is running.
type CreateResourcesReason uint8

const (
	// ReasonFirstTime is used for the first device, and for callbacks added
	// while a device already exists.
	ReasonFirstTime CreateResourcesReason = iota

	// ReasonNewDevice is used after recovering from a lost device.
	ReasonNewDevice

	// ReasonDpiChanged is used when the DPI changed on a ready device.
	ReasonDpiChanged
)

func (r CreateResourcesReason) String() string {
	switch r {
	case ReasonFirstTime:
		return "FirstTime"
	case ReasonNewDevice:
		return "NewDevice"
	case ReasonDpiChanged:
		return "DpiChanged"
	default:
		return fmt.Sprintf("CreateResourcesReason(%d)", uint8(r))
	}
}
