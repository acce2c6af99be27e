package ggdevice

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gogpu/ggdevice/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	f := &fakeFactory{}
	dev, err := f.Create(noOptions)
	require.NoError(t, err)
	lost, err := f.Create(noOptions)
	require.NoError(t, err)
	lost.(*fakeDevice).setLost()

	tests := []struct {
		name string
		dev  device.Device
		err  error
		want ErrorClass
	}{
		{"nil error", dev, nil, ErrorOrdinary},
		{"plain error", lost, errors.New("boom"), ErrorOrdinary},
		{"non-lost code", lost, &device.DeviceError{Code: device.CodeInvalidCall}, ErrorOrdinary},
		{"lost code on lost device", lost, errLost, ErrorDeviceLost},
		{"wrapped lost code", lost, fmt.Errorf("present: %w", errLost), ErrorDeviceLost},
		{"lost code on healthy device", dev, errLost, ErrorInconsistent},
		{"lost code without device", nil, errLost, ErrorInconsistent},
		{"wrapped cause on lost device", lost, &DeviceLostError{Device: lost, Err: errLost}, ErrorDeviceLost},
		{"wrapped cause on healthy device", dev, &DeviceLostError{Device: dev, Err: errLost}, ErrorInconsistent},
		{"wrapped unrecognized cause", dev, &DeviceLostError{Device: dev, Err: errors.New("stale")}, ErrorOrdinary},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(f, tt.dev, tt.err))
		})
	}
}

func TestStringers(t *testing.T) {
	assert.Equal(t, "None", RunWithDeviceFlags(0).String())
	assert.Equal(t, "NewlyCreatedDevice|ResourcesNotCreated", (NewlyCreatedDevice | ResourcesNotCreated).String())
	assert.Equal(t, "ResourcesNotCreated|0x8", (ResourcesNotCreated | 8).String())
	assert.Equal(t, "DeviceLost", ChangeReasonDeviceLost.String())
	assert.Equal(t, "DpiChanged", ReasonDpiChanged.String())
	assert.Equal(t, "Inconsistent", ErrorInconsistent.String())
	assert.Equal(t, "ErrorClass(9)", ErrorClass(9).String())
}

func TestDeviceLostError(t *testing.T) {
	err := fmt.Errorf("frame 3: %w", &DeviceLostError{Err: errLost})
	assert.True(t, IsDeviceLost(err))
	assert.ErrorIs(t, err, device.ErrDeviceLost)
	assert.Contains(t, err.Error(), "ggdevice: device lost")
	assert.False(t, IsDeviceLost(errLost))
	assert.False(t, IsDeviceLost(nil))
}

func TestStartAction(t *testing.T) {
	a := StartAction(context.Background(), func(context.Context) error { return nil })
	require.NoError(t, a.Wait())

	boom := errors.New("decode failed")
	a = StartAction(context.Background(), func(context.Context) error { return boom })
	assert.ErrorIs(t, a.Wait(), boom)
	assert.ErrorIs(t, a.Err(), boom)
}

func TestStartActionCancel(t *testing.T) {
	started := make(chan struct{})
	a := StartAction(context.Background(), func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	<-started
	assert.NoError(t, a.Err(), "Err is nil while running")

	a.Cancel()
	select {
	case <-a.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("action did not finish after Cancel")
	}
	assert.True(t, isCanceled(a.Err()))
}
