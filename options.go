package ggdevice

// Option configures a Manager during creation.
//
// Example:
//
//	m, err := ggdevice.NewManager(factory,
//	    ggdevice.WithName("main-canvas"),
//	    ggdevice.WithChangedCallback(func(r ggdevice.ChangeReason) { invalidate() }),
//	)
type Option func(*managerOptions)

type managerOptions struct {
	name    string
	changed func(ChangeReason)
}

func defaultOptions() managerOptions {
	return managerOptions{
		name: "ggdevice",
	}
}

// WithName sets the name attached to the manager's log records.
func WithName(name string) Option {
	return func(o *managerOptions) {
		o.name = name
	}
}

// WithChangedCallback sets the initial changed callback. It is equivalent to
// calling SetChangedCallback right after NewManager.
func WithChangedCallback(fn func(ChangeReason)) Option {
	return func(o *managerOptions) {
		o.changed = fn
	}
}
