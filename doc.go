// Package ggdevice keeps a GPU device, and the resources created on it,
// valid for a UI control that draws once per frame.
//
// # Overview
//
// A control owns a Manager and calls RunWithDevice every time it draws. The
// manager creates a device through a device.Factory when none exists, runs the
// registered create-resources callbacks (which may hand back one asynchronous
// action to wait for), and only then calls the render function. When the
// device is lost, because the driver reset or removed it, the manager tears
// its state down, tells the control once via the changed callback, and
// rebuilds everything on the next call.
//
// # Quick Start
//
//	factory := device.NewSharedFactory(device.NewSoftwareFactory())
//	m, err := ggdevice.NewManager(factory)
//	if err != nil {
//	    return err
//	}
//	m.SetChangedCallback(func(ggdevice.ChangeReason) { control.Invalidate() })
//
//	m.AddCreateResources(control, func(sender any, args *ggdevice.CreateResourcesArgs) error {
//	    return loadSprites(args.Device(), args.Reason())
//	})
//
//	// Every frame:
//	_, err = m.RunWithDevice(control, device.CreationOptions{}, func(dev device.Device, flags ggdevice.RunWithDeviceFlags) error {
//	    return draw(dev)
//	})
//	if err != nil && !ggdevice.IsDeviceLost(err) {
//	    return err
//	}
//
// # Create-resources reasons
//
// Callbacks run in registration order, once per cycle:
//   - ReasonFirstTime for the first device, and immediately for callbacks
//     added while a device exists
//   - ReasonNewDevice after a lost device has been replaced
//   - ReasonDpiChanged after SetDpiChanged on a ready device
//
// A callback may call CreateResourcesArgs.TrackAsyncAction once per cycle.
// Until that action completes RunWithDevice returns ResourcesNotCreated
// without rendering; on completion the changed callback asks for a redraw.
//
// # Device loss
//
// An error is treated as a device loss only when the factory recognizes its
// code and the device itself confirms it is lost. Loss can be detected by the
// render function, a create-resources callback, a tracked action, or the
// device's own lost notification; whichever comes first performs the
// transition and ChangeReasonDeviceLost is sent exactly once.
//
// # Thread Safety
//
// RunWithDevice must be called from one goroutine at a time. The remaining
// methods are safe for concurrent use.
package ggdevice
