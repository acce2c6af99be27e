package ggdevice

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gogpu/ggdevice/device"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/stretchr/testify/require"
)

// fakeDevice lets tests decide separately whether the device reports itself
// lost and whether its lost callbacks fire.
type fakeDevice struct {
	id int

	mu        sync.Mutex
	lost      bool
	next      device.LostToken
	callbacks map[device.LostToken]func(device.Device)
}

var _ device.Device = (*fakeDevice)(nil)

func (d *fakeDevice) Device() gpucontext.Device   { return nil }
func (d *fakeDevice) Queue() gpucontext.Queue     { return nil }
func (d *fakeDevice) Adapter() gpucontext.Adapter { return nil }
func (d *fakeDevice) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Type: gpucontext.AdapterTypeUnknown}
}
func (d *fakeDevice) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}

func (d *fakeDevice) RegisterLost(fn func(device.Device)) device.LostToken {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.next++
	d.callbacks[d.next] = fn
	return d.next
}

func (d *fakeDevice) UnregisterLost(token device.LostToken) {
	d.mu.Lock()
	delete(d.callbacks, token)
	d.mu.Unlock()
}

// setLost makes IsDeviceLost report true without firing callbacks.
func (d *fakeDevice) setLost() {
	d.mu.Lock()
	d.lost = true
	d.mu.Unlock()
}

// fireLost marks the device lost and fires its lost callbacks.
func (d *fakeDevice) fireLost() {
	d.mu.Lock()
	d.lost = true
	fns := make([]func(device.Device), 0, len(d.callbacks))
	for _, fn := range d.callbacks {
		fns = append(fns, fn)
	}
	d.mu.Unlock()
	for _, fn := range fns {
		fn(d)
	}
}

func (d *fakeDevice) isLost() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lost
}

func (d *fakeDevice) registrations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.callbacks)
}

type fakeFactory struct {
	mu         sync.Mutex
	devices    []*fakeDevice
	createErrs []error
	lastOpts   device.CreationOptions
}

var _ device.Factory = (*fakeFactory)(nil)

func (f *fakeFactory) Create(opts device.CreationOptions) (device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastOpts = opts
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		return nil, err
	}
	d := &fakeDevice{id: len(f.devices) + 1, callbacks: make(map[device.LostToken]func(device.Device))}
	f.devices = append(f.devices, d)
	return d, nil
}

func (f *fakeFactory) IsDeviceLostError(err error) bool {
	return device.IsLostCodeError(err)
}

func (f *fakeFactory) IsDeviceLost(dev device.Device) bool {
	d, ok := dev.(*fakeDevice)
	return ok && d.isLost()
}

func (f *fakeFactory) failCreate(errs ...error) {
	f.mu.Lock()
	f.createErrs = append(f.createErrs, errs...)
	f.mu.Unlock()
}

func (f *fakeFactory) created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.devices)
}

func (f *fakeFactory) device(i int) *fakeDevice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[i]
}

// fakeAction is an AsyncAction completed by the test.
type fakeAction struct {
	done             chan struct{}
	once             sync.Once
	err              error
	canceled         atomic.Bool
	completeOnCancel bool
}

func newFakeAction() *fakeAction {
	return &fakeAction{done: make(chan struct{})}
}

func (a *fakeAction) Done() <-chan struct{} { return a.done }

func (a *fakeAction) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

func (a *fakeAction) Cancel() {
	a.canceled.Store(true)
	if a.completeOnCancel {
		a.complete(ErrActionCanceled)
	}
}

func (a *fakeAction) complete(err error) {
	a.once.Do(func() {
		a.err = err
		close(a.done)
	})
}

// changes records changed-callback notifications.
type changes struct {
	mu      sync.Mutex
	reasons []ChangeReason
}

func (c *changes) record(r ChangeReason) {
	c.mu.Lock()
	c.reasons = append(c.reasons, r)
	c.mu.Unlock()
}

func (c *changes) count(r ChangeReason) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, got := range c.reasons {
		if got == r {
			n++
		}
	}
	return n
}

func (c *changes) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.reasons)
}

// call records one create-resources invocation.
type call struct {
	name   string
	reason CreateResourcesReason
}

type callLog struct {
	mu    sync.Mutex
	calls []call
}

func (l *callLog) add(name string, r CreateResourcesReason) {
	l.mu.Lock()
	l.calls = append(l.calls, call{name, r})
	l.mu.Unlock()
}

func (l *callLog) get() []call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]call(nil), l.calls...)
}

func (l *callLog) reset() {
	l.mu.Lock()
	l.calls = nil
	l.mu.Unlock()
}

// recorder returns a create-resources callback that logs its invocations.
func (l *callLog) recorder(name string) CreateResourcesFunc {
	return func(_ any, args *CreateResourcesArgs) error {
		l.add(name, args.Reason())
		return nil
	}
}

type renderCounter struct {
	calls atomic.Int32
	flags []RunWithDeviceFlags
	mu    sync.Mutex
	err   error
}

func (r *renderCounter) fn(_ device.Device, flags RunWithDeviceFlags) error {
	r.calls.Add(1)
	r.mu.Lock()
	r.flags = append(r.flags, flags)
	err := r.err
	r.mu.Unlock()
	return err
}

func (r *renderCounter) lastFlags() RunWithDeviceFlags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[len(r.flags)-1]
}

func newTestManager(t *testing.T) (*Manager, *fakeFactory, *changes) {
	t.Helper()
	f := &fakeFactory{}
	rec := &changes{}
	m, err := NewManager(f, WithName(t.Name()), WithChangedCallback(rec.record))
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m, f, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

var noOptions = device.CreationOptions{}
