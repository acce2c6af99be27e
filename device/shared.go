package device

import (
	"sync"

	"github.com/gogpu/ggdevice/internal/logging"
)

// SharedFactory wraps a Factory so that SharingShared requests reuse one
// device per ForceSoftware setting for as long as that device is not lost.
// SharingExclusive requests always go to the wrapped factory.
//
// A SharedFactory is the explicit replacement for a process-wide shared
// device: inject the same instance into every manager that should share.
type SharedFactory struct {
	inner Factory

	mu      sync.Mutex
	devices map[bool]Device // keyed by ForceSoftware
}

var _ Factory = (*SharedFactory)(nil)

// NewSharedFactory creates a SharedFactory over inner.
func NewSharedFactory(inner Factory) *SharedFactory {
	return &SharedFactory{
		inner:   inner,
		devices: make(map[bool]Device),
	}
}

// Create returns the cached shared device or creates a new one.
func (f *SharedFactory) Create(opts CreationOptions) (Device, error) {
	if opts.Sharing == SharingExclusive {
		return f.inner.Create(opts)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if d, ok := f.devices[opts.ForceSoftware]; ok {
		if !f.inner.IsDeviceLost(d) {
			return d, nil
		}
		delete(f.devices, opts.ForceSoftware)
		logging.Logger().Info("device: dropping lost shared device", "forceSoftware", opts.ForceSoftware)
	}

	d, err := f.inner.Create(opts)
	if err != nil {
		return nil, err
	}
	f.devices[opts.ForceSoftware] = d
	return d, nil
}

// IsDeviceLostError delegates to the wrapped factory.
func (f *SharedFactory) IsDeviceLostError(err error) bool {
	return f.inner.IsDeviceLostError(err)
}

// IsDeviceLost delegates to the wrapped factory.
func (f *SharedFactory) IsDeviceLost(dev Device) bool {
	return f.inner.IsDeviceLost(dev)
}

// Reset forgets every cached device.
func (f *SharedFactory) Reset() {
	f.mu.Lock()
	clear(f.devices)
	f.mu.Unlock()
}
