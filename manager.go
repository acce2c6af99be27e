package ggdevice

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/ggdevice/device"
	"github.com/google/uuid"
)

// RenderFunc draws with dev. flags never contain ResourcesNotCreated.
type RenderFunc func(dev device.Device, flags RunWithDeviceFlags) error

// cycle is the create-resources cycle currently owed to the registry.
type cycle struct {
	id      uuid.UUID
	reason  CreateResourcesReason
	pending bool // started and not yet complete
	invoked bool // every entry has fired; only the tracked action remains
	tracked bool // an async action was tracked by this cycle's callbacks
}

// Manager keeps a device and its resources valid for an owning control.
//
// The owner calls RunWithDevice once per frame from one goroutine at a time.
// Tracked async actions and device-lost callbacks may complete on other
// goroutines; they only update state under the manager's lock and notify the
// changed callback, never call back into RunWithDevice.
//
// Callbacks (create-resources, render, changed) are never invoked with the
// lock held, so they may call GetDevice, IsReadyToDraw, AddCreateResources
// and the other accessors freely.
type Manager struct {
	factory device.Factory
	log     *slog.Logger

	mu          sync.Mutex
	slot        deviceSlot
	everCreated bool
	registry    registry
	tracker     asyncTracker
	cycle       cycle
	dpiChanged  bool
	dpiNotified bool // the owner was already asked to apply dpiChanged
	running     bool // runCycle is invoking callbacks
	stored      error // failure of a tracked action, reported by the next RunWithDevice
	changed     func(ChangeReason)
	closed      bool
}

// NewManager creates a manager that obtains devices from factory.
func NewManager(factory device.Factory, opts ...Option) (*Manager, error) {
	if factory == nil {
		return nil, ErrNilFactory
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{
		factory: factory,
		log:     Logger().With("manager", o.name),
		changed: o.changed,
	}, nil
}

// SetChangedCallback sets the function notified when the owner should
// schedule another RunWithDevice call. Pass nil to stop notifications.
func (m *Manager) SetChangedCallback(fn func(ChangeReason)) {
	m.mu.Lock()
	m.changed = fn
	m.mu.Unlock()
}

// GetDevice returns the current device, or nil. After a device loss it keeps
// returning the lost device until a replacement has been created.
func (m *Manager) GetDevice() device.Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slot.handle
}

// IsReadyToDraw reports whether a RunWithDevice call would render right away.
func (m *Manager) IsReadyToDraw() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slot.live() && !m.tracker.pending() && !m.cycle.pending
}

// RunWithDevice makes sure a device exists and its resources are created,
// then calls render with it.
//
// When the resources are not ready (a tracked action is outstanding, or the
// device could not be created) render is not called and the returned flags
// contain ResourcesNotCreated. Errors from the factory and from callbacks are
// returned unchanged, except device-lost errors which are returned as
// *DeviceLostError after recovery has been scheduled.
func (m *Manager) RunWithDevice(sender any, opts device.CreationOptions, render RenderFunc) (RunWithDeviceFlags, error) {
	if render == nil {
		return ResourcesNotCreated, ErrNilHandler
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ResourcesNotCreated, ErrManagerClosed
	}

	var flags RunWithDeviceFlags
	if !m.slot.live() {
		if m.tracker.pending() {
			// The action still references the lost device; rebuild once it retires.
			m.mu.Unlock()
			return ResourcesNotCreated, nil
		}
		if err := m.createDeviceLocked(opts); err != nil {
			m.mu.Unlock()
			return ResourcesNotCreated, err
		}
		flags = NewlyCreatedDevice | ResourcesNotCreated
	}

	if err := m.stored; err != nil {
		m.stored = nil
		m.mu.Unlock()
		return flags | ResourcesNotCreated, err
	}
	if m.tracker.pending() {
		m.mu.Unlock()
		return flags | ResourcesNotCreated, nil
	}

	if !m.cycle.pending && m.dpiChanged {
		m.dpiChanged = false
		m.dpiNotified = false
		m.startCycleLocked(ReasonDpiChanged)
	}
	dev := m.slot.handle
	pending := m.cycle.pending
	m.mu.Unlock()

	if pending {
		ready, err := m.runCycle(dev)
		if err != nil || !ready {
			return flags | ResourcesNotCreated, err
		}
	}

	flags &^= ResourcesNotCreated
	if err := render(dev, flags); err != nil {
		return flags, m.handleError(dev, err)
	}

	m.mu.Lock()
	redraw := m.dpiChanged && !m.dpiNotified && m.slot.isLive(dev)
	if redraw {
		m.dpiNotified = true
	}
	cb := m.changed
	m.mu.Unlock()
	if redraw && cb != nil {
		// A DPI change arrived while the cycle was running.
		cb(ChangeReasonOther)
	}
	return flags, nil
}

// createDeviceLocked creates a device and starts its first cycle.
func (m *Manager) createDeviceLocked(opts device.CreationOptions) error {
	dev, err := m.factory.Create(opts)
	if err != nil {
		m.log.Warn("device creation failed", "err", err)
		return err
	}

	reason := ReasonFirstTime
	if m.everCreated {
		reason = ReasonNewDevice
	}
	m.everCreated = true

	m.slot.install(dev, m.onDeviceLost)
	m.dpiChanged = false
	m.dpiNotified = false
	m.stored = nil
	m.startCycleLocked(reason)

	m.log.Info("device created", "reason", reason.String(), "sharing", opts.Sharing.String(),
		"forceSoftware", opts.ForceSoftware)
	return nil
}

func (m *Manager) startCycleLocked(reason CreateResourcesReason) {
	m.cycle = cycle{
		id:      uuid.New(),
		reason:  reason,
		pending: true,
	}
}

// restartCycleLocked gives a pending cycle a fresh id so that every callback
// runs again on the next RunWithDevice call.
func (m *Manager) restartCycleLocked() {
	if !m.cycle.pending {
		return
	}
	m.cycle.id = uuid.New()
	m.cycle.invoked = false
	m.cycle.tracked = false
}

// runCycle invokes the callbacks that have not yet fired in the pending
// cycle, in registration order. It reports whether resources are ready.
func (m *Manager) runCycle(dev device.Device) (bool, error) {
	m.mu.Lock()
	c := m.cycle
	entries := m.registry.unfired(c.id)
	m.running = true
	m.mu.Unlock()

	m.log.Debug("create-resources cycle", "cycle", c.id, "reason", c.reason.String(), "callbacks", len(entries))

	for _, e := range entries {
		args := &CreateResourcesArgs{m: m, reason: c.reason, cycle: c.id, device: dev, inCycle: true}

		m.mu.Lock()
		if m.cycle.id != c.id || !m.slot.isLive(dev) {
			m.running = false
			err := m.takeStoredLocked()
			m.mu.Unlock()
			return false, err
		}
		if e.removed || e.fired == c.id {
			m.mu.Unlock()
			continue
		}
		args.active = true
		m.mu.Unlock()

		err := e.fn(e.sender, args)

		m.mu.Lock()
		args.active = false
		if err == nil && m.cycle.id == c.id {
			e.fired = c.id
		}
		if err != nil {
			m.running = false
		}
		m.mu.Unlock()

		if err != nil {
			return false, m.handleError(dev, err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	if m.cycle.id != c.id || !m.slot.isLive(dev) {
		return false, m.takeStoredLocked()
	}
	if m.tracker.pending() {
		m.cycle.invoked = true
		return false, nil
	}
	m.cycle.pending = false
	m.log.Debug("resources created", "cycle", c.id, "reason", c.reason.String())
	return true, nil
}

func (m *Manager) takeStoredLocked() error {
	err := m.stored
	m.stored = nil
	return err
}

// handleError classifies err raised while using dev and performs the
// device-lost transition when needed.
func (m *Manager) handleError(dev device.Device, err error) error {
	_, err = m.classifyError(dev, err)
	return err
}

// classifyError is handleError that also reports the class of err.
func (m *Manager) classifyError(dev device.Device, err error) (ErrorClass, error) {
	class := Classify(m.factory, dev, err)
	switch class {
	case ErrorDeviceLost:
		m.loseDevice(dev)
		var dle *DeviceLostError
		if errors.As(err, &dle) && dle.Device == dev {
			return class, err
		}
		return class, &DeviceLostError{Device: dev, Err: err}
	case ErrorInconsistent:
		m.log.Warn("device-lost error on a device that is not lost", "err", err)
		return class, fmt.Errorf("%w: %w", ErrInconsistentDeviceLost, err)
	default:
		return class, err
	}
}

// onDeviceLost is registered on every device the manager installs.
func (m *Manager) onDeviceLost(dev device.Device) {
	m.loseDevice(dev)
}

// loseDevice marks dev lost. Only the first caller for a given device
// cancels the tracked action and sends ChangeReasonDeviceLost.
func (m *Manager) loseDevice(dev device.Device) {
	m.mu.Lock()
	if !m.slot.markLost(dev) {
		m.mu.Unlock()
		return
	}
	op := m.tracker.current()
	cb := m.changed
	m.mu.Unlock()

	m.log.Warn("device lost")
	if op != nil {
		op.action.Cancel()
	}
	if cb != nil {
		cb(ChangeReasonDeviceLost)
	}
}

func (m *Manager) trackAsyncAction(args *CreateResourcesArgs, action AsyncAction) error {
	m.mu.Lock()
	if !args.active {
		m.mu.Unlock()
		return ErrTrackOutsideCallback
	}
	if m.tracker.pending() || (args.inCycle && m.cycle.id == args.cycle && m.cycle.tracked) {
		m.mu.Unlock()
		m.log.Warn("rejected second async create-resources action", "cycle", args.cycle)
		return ErrMultipleAsyncOperations
	}
	op := &pendingOperation{action: action, cycle: args.cycle, device: args.device}
	if err := m.tracker.track(op); err != nil {
		m.mu.Unlock()
		return err
	}
	if args.inCycle && m.cycle.id == args.cycle {
		m.cycle.tracked = true
	}
	m.mu.Unlock()

	m.log.Debug("tracking async create-resources action", "cycle", args.cycle)
	go m.awaitAction(op)
	return nil
}

// awaitAction is the single completion handler for a tracked action.
func (m *Manager) awaitAction(op *pendingOperation) {
	<-op.action.Done()
	err := op.action.Err()

	m.mu.Lock()
	if !m.tracker.take(op) {
		m.mu.Unlock()
		return
	}

	notify := true
	reason := ChangeReasonOther
	switch {
	case !m.slot.isLive(op.device):
		// The device was lost or replaced while the action ran. Retiring the
		// action unblocks the rebuild.
		notify = !m.closed
	case err == nil:
		ownCycle := m.cycle.pending && m.cycle.id == op.cycle
		if ownCycle && m.cycle.invoked {
			m.cycle.pending = false
		}
		if ownCycle && !m.cycle.invoked && m.running {
			// runCycle is still invoking callbacks and renders when it
			// finds nothing pending.
			notify = false
		}
		m.log.Debug("async create-resources action completed", "cycle", op.cycle)
	case isCanceled(err):
		m.restartCycleLocked()
		m.log.Debug("async create-resources action canceled", "cycle", op.cycle)
	default:
		switch Classify(m.factory, op.device, err) {
		case ErrorDeviceLost:
			if m.slot.markLost(op.device) {
				reason = ChangeReasonDeviceLost
				m.log.Warn("device lost during async create-resources action", "err", err)
			}
		case ErrorInconsistent:
			m.stored = fmt.Errorf("%w: %w", ErrInconsistentDeviceLost, err)
			m.restartCycleLocked()
		default:
			m.stored = err
			m.restartCycleLocked()
			m.log.Debug("async create-resources action failed", "cycle", op.cycle, "err", err)
		}
	}
	if notify && m.dpiChanged {
		m.dpiNotified = true
	}
	cb := m.changed
	m.mu.Unlock()

	if notify && cb != nil {
		cb(reason)
	}
}

// SetDpiChanged requests a DpiChanged create-resources cycle. Calls made
// before the first device exists, or while a change is already pending, are
// no-ops. If the manager is idle the changed callback is notified.
func (m *Manager) SetDpiChanged() {
	m.mu.Lock()
	if !m.slot.live() || m.dpiChanged {
		m.mu.Unlock()
		return
	}
	m.dpiChanged = true
	idle := !m.cycle.pending && !m.tracker.pending()
	m.dpiNotified = idle
	cb := m.changed
	m.mu.Unlock()

	if idle && cb != nil {
		cb(ChangeReasonOther)
	}
}

// AddCreateResources registers fn. If a device already exists, fn is also
// invoked right away with ReasonFirstTime; other callbacks are not re-run.
//
// If that immediate call fails with an ordinary error, fn is unregistered and
// the error returned. A device-lost error keeps fn registered: it runs again
// with ReasonNewDevice once the device has been recreated.
func (m *Manager) AddCreateResources(sender any, fn CreateResourcesFunc) (Token, error) {
	if fn == nil {
		return 0, ErrNilHandler
	}

	m.mu.Lock()
	e := m.registry.add(sender, fn)
	if m.closed || !m.slot.live() {
		m.mu.Unlock()
		return e.token, nil
	}
	dev := m.slot.handle
	args := &CreateResourcesArgs{m: m, reason: ReasonFirstTime, device: dev, active: true}
	if m.cycle.pending {
		args.cycle = m.cycle.id
	} else {
		args.cycle = uuid.New()
	}
	m.mu.Unlock()

	err := fn(sender, args)

	m.mu.Lock()
	args.active = false
	if err == nil && m.cycle.pending && m.cycle.id == args.cycle {
		// Already satisfied for the pending cycle.
		e.fired = args.cycle
	}
	m.mu.Unlock()

	if err == nil {
		return e.token, nil
	}
	class, err := m.classifyError(dev, err)
	if class == ErrorDeviceLost {
		return e.token, nil
	}
	m.RemoveCreateResources(e.token)
	return 0, err
}

// RemoveCreateResources unregisters a callback. Unknown tokens are ignored.
func (m *Manager) RemoveCreateResources(token Token) {
	m.mu.Lock()
	m.registry.remove(token)
	m.mu.Unlock()
}

// Close releases the device and cancels any tracked action. RunWithDevice
// returns ErrManagerClosed afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	op := m.tracker.current()
	m.slot.clear()
	m.cycle = cycle{}
	m.dpiChanged = false
	m.dpiNotified = false
	m.stored = nil
	m.mu.Unlock()

	if op != nil {
		op.action.Cancel()
	}
	m.log.Debug("manager closed")
}
