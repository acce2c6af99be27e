// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package ctxpool lends short-lived graphics contexts created by a device.
//
// A Pool keeps a bounded free list of contexts so that rendering code can
// borrow one per draw without paying the creation cost every time:
//
//	lease, err := pool.TakeLease()
//	if err != nil {
//	    return err
//	}
//	defer lease.Release()
//	draw(lease.Context())
//
// Once the owning device goes away, Close empties the pool and detaches the
// device; leases still outstanding at that point are closed on Release
// instead of being returned.
package ctxpool

import (
	"errors"
	"runtime"
	"sync"

	"github.com/gogpu/ggdevice/internal/logging"
)

// ErrPoolClosed is returned by TakeLease after Close.
var ErrPoolClosed = errors.New("ctxpool: pool is closed")

// Context is a pooled graphics context.
type Context interface {
	Close() error
}

// Creator creates contexts. It is normally the device that owns the pool.
type Creator[C Context] interface {
	CreateContext() (C, error)
}

// Option configures a Pool.
type Option func(*poolOptions)

type poolOptions struct {
	capacity int
}

// WithCapacity bounds the number of idle contexts the pool keeps.
// Values below 1 fall back to the default.
func WithCapacity(n int) Option {
	return func(o *poolOptions) {
		o.capacity = n
	}
}

// DefaultCapacity returns the default free-list bound: one context per
// available processor, at least one.
func DefaultCapacity() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// Pool is a bounded free list of contexts keyed by their owning device.
//
// Pool is safe for concurrent use. The lock only guards the free list and
// the creator reference; context creation happens outside it.
type Pool[C Context] struct {
	mu       sync.Mutex
	creator  Creator[C] // nil after Close
	free     []C
	capacity int
}

// New creates a pool that creates contexts through creator.
func New[C Context](creator Creator[C], opts ...Option) *Pool[C] {
	o := poolOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.capacity < 1 {
		o.capacity = DefaultCapacity()
	}
	return &Pool[C]{
		creator:  creator,
		free:     make([]C, 0, o.capacity),
		capacity: o.capacity,
	}
}

// Capacity returns the free-list bound.
func (p *Pool[C]) Capacity() int {
	return p.capacity
}

// Idle returns the number of contexts currently in the free list.
func (p *Pool[C]) Idle() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// TakeLease borrows a context, reusing an idle one when available.
func (p *Pool[C]) TakeLease() (*Lease[C], error) {
	p.mu.Lock()
	creator := p.creator
	if creator == nil {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	if n := len(p.free); n > 0 {
		c := p.free[n-1]
		var zero C
		p.free[n-1] = zero
		p.free = p.free[:n-1]
		p.mu.Unlock()
		return &Lease[C]{pool: p, ctx: c}, nil
	}
	p.mu.Unlock()

	c, err := creator.CreateContext()
	if err != nil {
		return nil, err
	}
	return &Lease[C]{pool: p, ctx: c}, nil
}

// put returns c to the free list, or closes it when the pool is full or closed.
func (p *Pool[C]) put(c C) {
	p.mu.Lock()
	if p.creator != nil && len(p.free) < p.capacity {
		p.free = append(p.free, c)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	closeContext(c)
}

// Close drops every idle context and detaches the creator. Outstanding
// leases stay usable until released; their contexts are then closed.
func (p *Pool[C]) Close() {
	p.mu.Lock()
	free := p.free
	p.free = nil
	p.creator = nil
	p.mu.Unlock()

	for _, c := range free {
		closeContext(c)
	}
}

func closeContext[C Context](c C) {
	if err := c.Close(); err != nil {
		logging.Logger().Warn("ctxpool: context close failed", "err", err)
	}
}

// Lease is a scoped borrow of a pooled context.
type Lease[C Context] struct {
	pool *Pool[C]
	ctx  C
	once sync.Once
}

// Context returns the leased context. It must not be used after Release.
func (l *Lease[C]) Context() C {
	return l.ctx
}

// Release gives the context back to its pool. Extra calls are no-ops.
func (l *Lease[C]) Release() {
	l.once.Do(func() {
		l.pool.put(l.ctx)
	})
}
