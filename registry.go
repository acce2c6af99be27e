package ggdevice

import "github.com/google/uuid"

// Token identifies a registered create-resources callback.
type Token uint64

// CreateResourcesFunc creates device-dependent resources. sender is the
// value passed to AddCreateResources, returned unchanged.
//
// Returning an error that the device factory classifies as device-lost
// starts recovery; any other error is returned from the RunWithDevice (or
// AddCreateResources) call in progress.
type CreateResourcesFunc func(sender any, args *CreateResourcesArgs) error

// entry is one registered callback. fired holds the id of the last cycle in
// which the callback completed successfully.
type entry struct {
	token   Token
	sender  any
	fn      CreateResourcesFunc
	fired   uuid.UUID
	removed bool
}

// registry is the ordered list of create-resources callbacks. It is guarded
// by the manager's lock.
type registry struct {
	entries []*entry
	next    Token
}

func (r *registry) add(sender any, fn CreateResourcesFunc) *entry {
	r.next++
	e := &entry{token: r.next, sender: sender, fn: fn}
	r.entries = append(r.entries, e)
	return e
}

func (r *registry) remove(token Token) bool {
	for i, e := range r.entries {
		if e.token == token {
			e.removed = true
			// Copy: cycles iterate over earlier snapshots of entries.
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// unfired returns, in registration order, the entries that have not yet
// completed in the given cycle.
func (r *registry) unfired(cycle uuid.UUID) []*entry {
	out := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		if e.fired != cycle {
			out = append(out, e)
		}
	}
	return out
}

func (r *registry) len() int {
	return len(r.entries)
}
