// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Factory names.
const (
	// FactoryHardware is reserved for a GPU-backed factory registered by an
	// integration package.
	FactoryHardware = "hardware"

	// FactorySoftware is the built-in SoftwareFactory.
	FactorySoftware = "software"
)

// ErrNoFactory is returned by Open when no factory is registered under the
// requested name, or none is registered at all.
var ErrNoFactory = errors.New("device: no factory available")

// Constructor builds a Factory for the given software factory options.
// Constructors that do not create software devices may ignore opts.
type Constructor func(opts ...FactoryOption) (Factory, error)

var (
	registryMu   sync.RWMutex
	constructors = map[string]Constructor{
		FactorySoftware: func(opts ...FactoryOption) (Factory, error) {
			return NewSoftwareFactory(opts...), nil
		},
	}
	// Selection order for Open(""): first registered name wins.
	factoryPriority = []string{FactoryHardware, FactorySoftware}
)

// Register registers a factory constructor under name, replacing any
// previous registration. It is typically called from an init function.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	constructors[name] = c
}

// Unregister removes a registration. It is mostly useful in tests.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(constructors, name)
}

// Available returns the registered factory names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the factory registered under name. An empty name selects the
// first registered factory in priority order (hardware, then software).
func Open(name string, opts ...FactoryOption) (Factory, error) {
	registryMu.RLock()
	c, ok := constructors[name]
	if name == "" {
		for _, n := range factoryPriority {
			if c, ok = constructors[n]; ok {
				name = n
				break
			}
		}
	}
	registryMu.RUnlock()

	if !ok {
		if name == "" {
			return nil, ErrNoFactory
		}
		return nil, fmt.Errorf("%w: %q", ErrNoFactory, name)
	}
	f, err := c(opts...)
	if err != nil {
		return nil, fmt.Errorf("device: open %s factory: %w", name, err)
	}
	return f, nil
}
