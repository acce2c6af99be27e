// Command devicedemo drives a ggdevice.Manager through a scripted sequence of
// frames with injected device loss and DPI changes, and saves the last frame
// as a PNG.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"time"

	"github.com/gogpu/ggdevice"
	"github.com/gogpu/ggdevice/device"
	"github.com/gogpu/ggdevice/internal/config"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// maxAttempts bounds how often one frame is retried while resources load.
const maxAttempts = 50

func main() {
	var (
		configPath = flag.String("config", "", "YAML configuration file")
		frames     = flag.Int("frames", 0, "number of frames (overrides config)")
		output     = flag.String("output", "", "output PNG file (overrides config)")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *frames > 0 {
		cfg.Demo.Frames = *frames
	}
	if *output != "" {
		cfg.Demo.Output = *output
	}
	if *verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ggdevice.SetLogger(cfg.NewLogger(os.Stderr))

	if err := run(cfg); err != nil {
		log.Fatalf("devicedemo: %v", err)
	}
}

func run(cfg *config.Config) error {
	inner, err := device.Open(cfg.Device.Factory, cfg.FactoryOptions()...)
	if err != nil {
		return err
	}
	factory := device.NewSharedFactory(inner)
	s := newScene(cfg.Demo.AsyncResources)

	m, err := ggdevice.NewManager(factory,
		ggdevice.WithName("devicedemo"),
		ggdevice.WithChangedCallback(s.onChanged),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	if _, err := m.AddCreateResources(s, s.createResources); err != nil {
		return err
	}

	opts := cfg.ToCreationOptions()
	d := cfg.Demo
	var rendered, deviceLostErrs int
	for n := 1; n <= d.Frames; n++ {
		if n == d.LoseDeviceAt {
			if sd, ok := m.GetDevice().(*device.SoftwareDevice); ok {
				sd.Lose(device.CodeDeviceRemoved)
			}
		}
		if n == d.DpiChangeAt {
			s.setScale(2)
			m.SetDpiChanged()
		}

		drawn, err := drawFrame(m, s, opts, n, d.Width, d.Height)
		switch {
		case ggdevice.IsDeviceLost(err):
			// Recovery happens on the next frame.
			deviceLostErrs++
		case err != nil:
			return fmt.Errorf("frame %d: %w", n, err)
		case drawn:
			rendered++
		}
	}

	frame := s.lastFrame()
	if frame == nil {
		return errors.New("no frame was rendered")
	}
	if err := savePNG(d.Output, frame); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Printf("Rendered %d of %d frames to %s (%dx%d)\n", rendered, d.Frames, d.Output, d.Width, d.Height)
	if sf, ok := inner.(*device.SoftwareFactory); ok {
		p.Printf("Software devices created: %d\n", sf.Created())
	}
	p.Printf("Device losses: %d, lost errors: %d\n", s.lost.Load(), deviceLostErrs)
	p.Printf("Create-resources calls: %d, redraw requests: %d\n", s.cycles.Load(), s.redraws.Load())
	return nil
}

// drawFrame calls RunWithDevice until frame n has been drawn, waiting for
// the changed callback while resources are being created.
func drawFrame(m *ggdevice.Manager, s *scene, opts device.CreationOptions, n, w, h int) (bool, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		flags, err := m.RunWithDevice(s, opts, func(dev device.Device, _ ggdevice.RunWithDeviceFlags) error {
			return s.render(dev, n, w, h)
		})
		if err != nil {
			return false, err
		}
		if !flags.Has(ggdevice.ResourcesNotCreated) {
			if flags.Has(ggdevice.NewlyCreatedDevice) {
				ggdevice.Logger().Info("frame drawn on new device", "frame", n)
			}
			return true, nil
		}
		select {
		case <-s.redraw:
		case <-time.After(100 * time.Millisecond):
		}
	}
	return false, nil
}

func savePNG(path string, img *image.RGBA) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
