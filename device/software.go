// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"
	"image"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggdevice/ctxpool"
	"github.com/gogpu/ggdevice/internal/logging"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// FactoryOption configures a SoftwareFactory.
type FactoryOption func(*SoftwareFactory)

// WithDebugLevel sets the debug level recorded on created devices.
func WithDebugLevel(l DebugLevel) FactoryOption {
	return func(f *SoftwareFactory) {
		f.debug = l
	}
}

// WithPoolCapacity bounds the context pool of each created device.
func WithPoolCapacity(n int) FactoryOption {
	return func(f *SoftwareFactory) {
		f.poolCapacity = n
	}
}

// SoftwareFactory creates CPU-backed devices. It has no hardware
// requirements, which makes it the factory of choice for tests, headless
// runs, and ForceSoftware requests.
//
// SoftwareFactory is safe for concurrent use.
type SoftwareFactory struct {
	debug        DebugLevel
	poolCapacity int

	nextID  atomic.Uint64
	created atomic.Int64

	mu       sync.Mutex
	failNext []error
}

// NewSoftwareFactory creates a software device factory.
func NewSoftwareFactory(opts ...FactoryOption) *SoftwareFactory {
	f := &SoftwareFactory{}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FailNextCreate makes the next Create call fail with err. Calls queue up,
// so FailNextCreate(a); FailNextCreate(b) fails the next two creations.
func (f *SoftwareFactory) FailNextCreate(err error) {
	f.mu.Lock()
	f.failNext = append(f.failNext, err)
	f.mu.Unlock()
}

// Created returns the number of devices successfully created so far.
func (f *SoftwareFactory) Created() int {
	return int(f.created.Load())
}

// Create returns a new SoftwareDevice. Sharing is ignored; wrap the factory
// in a SharedFactory to share devices.
func (f *SoftwareFactory) Create(opts CreationOptions) (Device, error) {
	f.mu.Lock()
	if len(f.failNext) > 0 {
		err := f.failNext[0]
		f.failNext = f.failNext[1:]
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrCreateFailed, err)
	}
	f.mu.Unlock()

	d := &SoftwareDevice{
		id:        f.nextID.Add(1),
		debug:     f.debug,
		software:  opts.ForceSoftware,
		callbacks: make(map[LostToken]func(Device)),
	}
	d.pool = ctxpool.New[*SoftwareContext](d, ctxpool.WithCapacity(f.poolCapacity))
	f.created.Add(1)

	logging.Logger().Debug("device: software device created",
		"id", d.id, "debug", f.debug.String(), "forceSoftware", opts.ForceSoftware)
	return d, nil
}

// IsDeviceLostError reports whether err carries a device-lost code.
func (f *SoftwareFactory) IsDeviceLostError(err error) bool {
	return IsLostCodeError(err)
}

// IsDeviceLost queries the device directly.
func (f *SoftwareFactory) IsDeviceLost(dev Device) bool {
	sd, ok := dev.(*SoftwareDevice)
	return ok && sd.IsLost()
}

// SoftwareDevice is a CPU-backed Device. Its gpucontext accessors return nil,
// like render.NullDeviceHandle in gg, because no GPU objects back it.
type SoftwareDevice struct {
	id       uint64
	debug    DebugLevel
	software bool
	pool     *ctxpool.Pool[*SoftwareContext]

	mu        sync.Mutex
	lost      bool
	lostCode  Code
	closed    bool
	nextToken LostToken
	callbacks map[LostToken]func(Device)
}

var _ Device = (*SoftwareDevice)(nil)

// ID returns a process-unique identifier for the device.
func (d *SoftwareDevice) ID() uint64 { return d.id }

// DebugLevel returns the debug level the device was created with.
func (d *SoftwareDevice) DebugLevel() DebugLevel { return d.debug }

// ForcedSoftware reports whether the device was created with ForceSoftware.
func (d *SoftwareDevice) ForcedSoftware() bool { return d.software }

// Device returns nil: there is no GPU device behind a software device.
func (d *SoftwareDevice) Device() gpucontext.Device { return nil }

// Queue returns nil.
func (d *SoftwareDevice) Queue() gpucontext.Queue { return nil }

// Adapter returns nil.
func (d *SoftwareDevice) Adapter() gpucontext.Adapter { return nil }

// AdapterInfo reports a software adapter, which steers consumers toward
// their CPU rasterizer.
func (d *SoftwareDevice) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "ggdevice software", Type: gpucontext.AdapterTypeSoftware}
}

// SurfaceFormat returns the pixel format of software surfaces.
func (d *SoftwareDevice) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatRGBA8Unorm
}

// RegisterLost registers fn for the device-lost notification. If the device
// is already lost, fn is called on a new goroutine.
func (d *SoftwareDevice) RegisterLost(fn func(Device)) LostToken {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextToken++
	token := d.nextToken
	if d.lost {
		go fn(d)
		return token
	}
	d.callbacks[token] = fn
	return token
}

// UnregisterLost removes a registration.
func (d *SoftwareDevice) UnregisterLost(token LostToken) {
	d.mu.Lock()
	delete(d.callbacks, token)
	d.mu.Unlock()
}

// Lose marks the device as lost with the given code and fires the lost
// callbacks on the calling goroutine. Subsequent calls are no-ops.
func (d *SoftwareDevice) Lose(code Code) {
	d.mu.Lock()
	if d.lost {
		d.mu.Unlock()
		return
	}
	d.lost = true
	d.lostCode = code
	fns := make([]func(Device), 0, len(d.callbacks))
	for _, fn := range d.callbacks {
		fns = append(fns, fn)
	}
	clear(d.callbacks)
	d.mu.Unlock()

	d.pool.Close()
	logging.Logger().Warn("device: software device lost", "id", d.id, "code", code.String())

	for _, fn := range fns {
		fn(d)
	}
}

// IsLost reports whether Lose has been called.
func (d *SoftwareDevice) IsLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

// Check returns the error a driver would report for op on this device:
// a DeviceError with the lost code once the device is lost, nil otherwise.
func (d *SoftwareDevice) Check(op string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch {
	case d.lost:
		return &DeviceError{Code: d.lostCode, Op: op}
	case d.closed:
		return ErrDeviceClosed
	}
	return nil
}

// CreateContext creates a drawing context. It implements
// ctxpool.Creator[*SoftwareContext].
func (d *SoftwareDevice) CreateContext() (*SoftwareContext, error) {
	if err := d.Check("CreateContext"); err != nil {
		return nil, err
	}
	return &SoftwareContext{device: d}, nil
}

// Lease borrows a drawing context from the device's pool.
func (d *SoftwareDevice) Lease() (*ctxpool.Lease[*SoftwareContext], error) {
	if err := d.Check("Lease"); err != nil {
		return nil, err
	}
	return d.pool.TakeLease()
}

// Pool returns the device's context pool.
func (d *SoftwareDevice) Pool() *ctxpool.Pool[*SoftwareContext] {
	return d.pool
}

// Close releases the device's pooled contexts. Close does not fire lost
// callbacks.
func (d *SoftwareDevice) Close() {
	d.mu.Lock()
	d.closed = true
	clear(d.callbacks)
	d.mu.Unlock()
	d.pool.Close()
}

// SoftwareContext is a drawing context with a reusable RGBA target.
type SoftwareContext struct {
	device *SoftwareDevice
	target *image.RGBA
	closed bool
}

// Device returns the device that created the context.
func (c *SoftwareContext) Device() *SoftwareDevice { return c.device }

// Target returns a cleared w×h RGBA image, reusing the previous allocation
// when it is large enough.
func (c *SoftwareContext) Target(w, h int) *image.RGBA {
	r := image.Rect(0, 0, w, h)
	if c.target != nil && cap(c.target.Pix) >= 4*w*h {
		c.target.Pix = c.target.Pix[:4*w*h]
		clear(c.target.Pix)
		c.target.Stride = 4 * w
		c.target.Rect = r
		return c.target
	}
	c.target = image.NewRGBA(r)
	return c.target
}

// Closed reports whether the context has been closed.
func (c *SoftwareContext) Closed() bool { return c.closed }

// Close drops the context's target.
func (c *SoftwareContext) Close() error {
	c.closed = true
	c.target = nil
	return nil
}
