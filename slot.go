package ggdevice

import "github.com/gogpu/ggdevice/device"

// deviceSlot owns the manager's current device and its lost-callback
// registration. A registration exists exactly when handle is non-nil.
//
// lost marks a device that must be replaced. The handle stays visible through
// GetDevice until a replacement has been created, so in-flight work holding
// the old device keeps a valid reference.
//
// deviceSlot is guarded by the manager's lock. Device handles must be
// comparable (pointer types in practice).
type deviceSlot struct {
	handle device.Device
	token  device.LostToken
	lost   bool
}

// live reports whether the slot holds a device that is not lost.
func (s *deviceSlot) live() bool {
	return s.handle != nil && !s.lost
}

// isLive reports whether d is the slot's current, not-lost device.
func (s *deviceSlot) isLive(d device.Device) bool {
	return s.live() && s.handle == d
}

// install replaces the current device with d and registers onLost on it.
func (s *deviceSlot) install(d device.Device, onLost func(device.Device)) {
	s.clear()
	s.handle = d
	s.token = d.RegisterLost(onLost)
	s.lost = false
}

// markLost flags d as lost. It returns true only for the call that performed
// the transition, which makes loss detection idempotent across racing paths.
func (s *deviceSlot) markLost(d device.Device) bool {
	if !s.isLive(d) {
		return false
	}
	s.lost = true
	return true
}

// clear unregisters the lost callback and drops the handle.
func (s *deviceSlot) clear() {
	if s.handle != nil {
		s.handle.UnregisterLost(s.token)
	}
	s.handle = nil
	s.token = 0
	s.lost = false
}
