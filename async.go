package ggdevice

import (
	"context"
	"errors"

	"github.com/gogpu/ggdevice/device"
	"github.com/google/uuid"
)

// AsyncAction is a cancellable operation a create-resources callback can
// ask the manager to wait for.
//
// Done is closed when the operation finishes. Err is only meaningful after
// Done is closed: nil for success, context.Canceled or ErrActionCanceled for
// cancellation, anything else for failure. Cancel requests cancellation and
// must not block.
type AsyncAction interface {
	Done() <-chan struct{}
	Err() error
	Cancel()
}

// Action is an AsyncAction backed by a goroutine.
type Action struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

var _ AsyncAction = (*Action)(nil)

// StartAction runs fn on a new goroutine with a context that is cancelled
// when the action is cancelled or ctx is done.
//
// Example:
//
//	func(sender any, args *ggdevice.CreateResourcesArgs) error {
//	    return args.TrackAsyncAction(ggdevice.StartAction(context.Background(),
//	        func(ctx context.Context) error {
//	            return loadTextures(ctx, args.Device())
//	        }))
//	}
func StartAction(ctx context.Context, fn func(context.Context) error) *Action {
	ctx, cancel := context.WithCancel(ctx)
	a := &Action{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(a.done)
		a.err = fn(ctx)
		cancel()
	}()
	return a
}

// Done is closed once fn has returned.
func (a *Action) Done() <-chan struct{} { return a.done }

// Err returns fn's result once Done is closed, nil before.
func (a *Action) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Cancel cancels the context passed to fn.
func (a *Action) Cancel() { a.cancel() }

// Wait blocks until the action finishes and returns its result.
func (a *Action) Wait() error {
	<-a.done
	return a.err
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, ErrActionCanceled)
}

// pendingOperation is the single tracked async action.
type pendingOperation struct {
	action AsyncAction
	cycle  uuid.UUID
	device device.Device
}

// asyncTracker holds at most one pendingOperation. It is guarded by the
// manager's lock.
type asyncTracker struct {
	op *pendingOperation
}

func (t *asyncTracker) pending() bool {
	return t.op != nil
}

func (t *asyncTracker) current() *pendingOperation {
	return t.op
}

func (t *asyncTracker) track(op *pendingOperation) error {
	if t.op != nil {
		return ErrMultipleAsyncOperations
	}
	t.op = op
	return nil
}

// take clears the tracker if op is the tracked operation.
func (t *asyncTracker) take(op *pendingOperation) bool {
	if t.op != op {
		return false
	}
	t.op = nil
	return true
}

// CreateResourcesArgs is passed to create-resources callbacks. It is only
// valid for the duration of the callback.
type CreateResourcesArgs struct {
	m       *Manager
	reason  CreateResourcesReason
	cycle   uuid.UUID
	device  device.Device
	inCycle bool
	active  bool // guarded by m.mu
}

// Reason returns why the callback is running.
func (a *CreateResourcesArgs) Reason() CreateResourcesReason { return a.reason }

// CycleID identifies the create-resources cycle. Retries of a failed cycle
// keep the same id.
func (a *CreateResourcesArgs) CycleID() uuid.UUID { return a.cycle }

// Device returns the device resources should be created for.
func (a *CreateResourcesArgs) Device() device.Device { return a.device }

// TrackAsyncAction makes the manager wait for action before it considers
// resources created. Only one action can be tracked per cycle; a second call
// returns ErrMultipleAsyncOperations and leaves the first untouched.
func (a *CreateResourcesArgs) TrackAsyncAction(action AsyncAction) error {
	if action == nil {
		return ErrNilHandler
	}
	return a.m.trackAsyncAction(a, action)
}
