// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSoftware(t *testing.T) {
	f, err := Open(FactorySoftware, WithDebugLevel(DebugError))
	require.NoError(t, err)

	d, err := f.Create(CreationOptions{})
	require.NoError(t, err)
	assert.Equal(t, DebugError, d.(*SoftwareDevice).DebugLevel())
}

func TestOpenDefaultPrefersHardware(t *testing.T) {
	f, err := Open("")
	require.NoError(t, err)
	assert.IsType(t, &SoftwareFactory{}, f, "software is the fallback")

	hw := NewSharedFactory(NewSoftwareFactory())
	Register(FactoryHardware, func(...FactoryOption) (Factory, error) { return hw, nil })
	t.Cleanup(func() { Unregister(FactoryHardware) })

	f, err = Open("")
	require.NoError(t, err)
	assert.Same(t, hw, f)
	assert.Equal(t, []string{FactoryHardware, FactorySoftware}, Available())
}

func TestOpenUnknown(t *testing.T) {
	_, err := Open("vulkan")
	assert.ErrorIs(t, err, ErrNoFactory)
	assert.ErrorContains(t, err, `"vulkan"`)
}

func TestOpenConstructorError(t *testing.T) {
	boom := errors.New("no adapter")
	Register("broken", func(...FactoryOption) (Factory, error) { return nil, boom })
	t.Cleanup(func() { Unregister("broken") })

	_, err := Open("broken")
	assert.ErrorIs(t, err, boom)
}
