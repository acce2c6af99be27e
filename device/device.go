// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device defines the collaborators the device manager consumes:
// a Device handle that can report its own loss, and a Factory that creates
// devices and classifies errors.
//
// Device embeds gpucontext.DeviceProvider, so any handle produced here can be
// handed to gg renderers and other gpucontext consumers directly.
//
// The package also ships software implementations (SoftwareFactory,
// SoftwareDevice) used by tests and by the devicedemo command, and a
// SharedFactory that lets several managers share one device.
package device

import (
	"fmt"

	"github.com/gogpu/gpucontext"
)

// LostToken identifies a lost-callback registration on a Device.
type LostToken uint64

// Device is a handle to a created graphics device.
//
// Handles are shared: every holder keeps the device usable for its own work
// independently of what the manager does with its slot.
type Device interface {
	gpucontext.DeviceProvider

	// RegisterLost registers fn to be called once the device is lost.
	// fn may be called on any goroutine, but never from within RegisterLost.
	RegisterLost(fn func(Device)) LostToken

	// UnregisterLost removes a registration. Unknown tokens are ignored.
	UnregisterLost(token LostToken)
}

// Factory creates devices and interprets the errors they produce.
type Factory interface {
	// Create returns a new (or shared) device for the given options.
	Create(opts CreationOptions) (Device, error)

	// IsDeviceLostError reports whether err carries a device-lost code.
	IsDeviceLostError(err error) bool

	// IsDeviceLost asks the device itself whether it has actually been lost.
	IsDeviceLost(dev Device) bool
}

// Sharing selects between the process-wide shared device and a private one.
type Sharing uint8

const (
	// SharingShared reuses a device shared with other callers.
	SharingShared Sharing = iota

	// SharingExclusive always creates a private device.
	SharingExclusive
)

// String returns the configuration name of the sharing mode.
func (s Sharing) String() string {
	switch s {
	case SharingShared:
		return "shared"
	case SharingExclusive:
		return "exclusive"
	default:
		return fmt.Sprintf("Sharing(%d)", uint8(s))
	}
}

// ParseSharing converts a configuration name to a Sharing value.
func ParseSharing(s string) (Sharing, error) {
	switch s {
	case "", "shared":
		return SharingShared, nil
	case "exclusive":
		return SharingExclusive, nil
	default:
		return 0, fmt.Errorf("device: unknown sharing mode %q", s)
	}
}

// CreationOptions are passed by the owning control on every RunWithDevice call.
type CreationOptions struct {
	Sharing Sharing

	// ForceSoftware requests a software rasterizer device even when hardware
	// is available.
	ForceSoftware bool
}

// DebugLevel controls the amount of validation a factory enables on the
// devices it creates.
type DebugLevel uint8

const (
	DebugNone DebugLevel = iota
	DebugError
	DebugWarning
	DebugInformation
)

// String returns the configuration name of the debug level.
func (l DebugLevel) String() string {
	switch l {
	case DebugNone:
		return "none"
	case DebugError:
		return "error"
	case DebugWarning:
		return "warning"
	case DebugInformation:
		return "information"
	default:
		return fmt.Sprintf("DebugLevel(%d)", uint8(l))
	}
}

// ParseDebugLevel converts a configuration name to a DebugLevel.
func ParseDebugLevel(s string) (DebugLevel, error) {
	switch s {
	case "", "none":
		return DebugNone, nil
	case "error":
		return DebugError, nil
	case "warning":
		return DebugWarning, nil
	case "information":
		return DebugInformation, nil
	default:
		return 0, fmt.Errorf("device: unknown debug level %q", s)
	}
}
