package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggdevice"
	"github.com/gogpu/ggdevice/device"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"
)

// spriteSize is the sprite edge length in device-independent pixels.
const spriteSize = 48

// scene owns the demo's device-dependent resources.
type scene struct {
	async bool

	mu     sync.Mutex
	scale  float64
	sprite *image.RGBA
	owner  device.Device
	frame  *image.RGBA

	cycles  atomic.Int32
	lost    atomic.Int32
	redraws atomic.Int32
	redraw  chan struct{}
}

func newScene(async bool) *scene {
	return &scene{
		async:  async,
		scale:  1,
		redraw: make(chan struct{}, 1),
	}
}

func (s *scene) setScale(scale float64) {
	s.mu.Lock()
	s.scale = scale
	s.mu.Unlock()
}

// onChanged is the manager's changed callback.
func (s *scene) onChanged(reason ggdevice.ChangeReason) {
	if reason == ggdevice.ChangeReasonDeviceLost {
		s.lost.Add(1)
	}
	s.redraws.Add(1)
	select {
	case s.redraw <- struct{}{}:
	default:
	}
}

// createResources rebuilds the sprite for the current device and scale.
func (s *scene) createResources(_ any, args *ggdevice.CreateResourcesArgs) error {
	s.cycles.Add(1)
	s.mu.Lock()
	scale := s.scale
	s.mu.Unlock()

	dev := args.Device()
	ggdevice.Logger().Debug("creating resources", "reason", args.Reason().String(),
		"cycle", args.CycleID(), "scale", scale)

	if !s.async {
		return s.buildSprite(context.Background(), dev, scale)
	}
	return args.TrackAsyncAction(ggdevice.StartAction(context.Background(), func(ctx context.Context) error {
		return s.buildSprite(ctx, dev, scale)
	}))
}

func (s *scene) buildSprite(ctx context.Context, dev device.Device, scale float64) error {
	sd, ok := dev.(*device.SoftwareDevice)
	if !ok {
		return fmt.Errorf("devicedemo: unsupported device %T", dev)
	}
	px := int(math.Ceil(spriteSize * scale))
	sprite, err := renderSprite(ctx, px)
	if err != nil {
		return err
	}
	if err := sd.Check("UploadTexture"); err != nil {
		return err
	}

	s.mu.Lock()
	s.sprite = sprite
	s.owner = dev
	s.mu.Unlock()
	return nil
}

// renderSprite draws a shaded disc of edge px, splitting rows across
// goroutines.
func renderSprite(ctx context.Context, px int) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, px, px))
	r := float64(px) / 2

	g, ctx := errgroup.WithContext(ctx)
	bands := runtime.GOMAXPROCS(0)
	step := (px + bands - 1) / bands
	for y0 := 0; y0 < px; y0 += step {
		y1 := min(y0+step, px)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				for x := 0; x < px; x++ {
					dx := (float64(x) + 0.5 - r) / r
					dy := (float64(y) + 0.5 - r) / r
					d := math.Hypot(dx, dy)
					if d > 1 {
						continue
					}
					shade := 1 - 0.6*math.Hypot(dx+0.35, dy+0.35)/1.4
					img.SetRGBA(x, y, color.RGBA{
						R: uint8(255 * shade),
						G: uint8(140 * shade),
						B: uint8(40 * shade),
						A: 255,
					})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

// render draws frame n with a context leased from dev.
func (s *scene) render(dev device.Device, n, w, h int) error {
	sd, ok := dev.(*device.SoftwareDevice)
	if !ok {
		return fmt.Errorf("devicedemo: unsupported device %T", dev)
	}
	lease, err := sd.Lease()
	if err != nil {
		return err
	}
	defer lease.Release()

	s.mu.Lock()
	sprite, owner, scale := s.sprite, s.owner, s.scale
	s.mu.Unlock()
	if owner != dev {
		return fmt.Errorf("devicedemo: sprite belongs to another device")
	}

	dst := lease.Context().Target(w, h)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{R: 24, G: 28, B: 40, A: 255}), image.Point{}, draw.Src)

	// The sprite is rasterized at device scale and magnified to its on-screen
	// size, so a higher scale gives a sharper result.
	size := 2 * spriteSize
	x := (n * 23) % max(w-size, 1)
	y := (n * 37) % max(h-size, 1)
	xdraw.CatmullRom.Scale(dst, image.Rect(x, y, x+size, y+size), sprite, sprite.Bounds(), xdraw.Over, nil)

	label := &font.Drawer{
		Dst:  dst,
		Src:  image.White,
		Face: basicfont.Face7x13,
		Dot:  fixed.P(4, h-4),
	}
	label.DrawString(fmt.Sprintf("frame %d  device %d  scale %.0fx", n, sd.ID(), scale))

	if err := sd.Check("Present"); err != nil {
		return err
	}

	s.mu.Lock()
	s.frame = image.NewRGBA(dst.Bounds())
	copy(s.frame.Pix, dst.Pix)
	s.mu.Unlock()
	return nil
}

// lastFrame returns the most recently presented frame.
func (s *scene) lastFrame() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}
