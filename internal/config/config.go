// Package config loads the device demo configuration from YAML.
//
// Values are resolved in order: built-in defaults, the YAML file, then
// GGDEVICE_* environment variables. The result is validated before use.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/ggdevice/device"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Pool    PoolConfig    `yaml:"pool"`
	Logging LoggingConfig `yaml:"logging"`
	Demo    DemoConfig    `yaml:"demo"`
}

// DeviceConfig selects how devices are created.
type DeviceConfig struct {
	// Factory names a registered device factory. Empty selects the best
	// available one.
	Factory       string `yaml:"factory"`
	Sharing       string `yaml:"sharing"`
	ForceSoftware bool   `yaml:"force_software"`
	DebugLevel    string `yaml:"debug_level"`
}

// PoolConfig bounds the per-device drawing context pool.
// Zero means one context per GOMAXPROCS.
type PoolConfig struct {
	Capacity int `yaml:"capacity"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DemoConfig drives cmd/devicedemo. Frame numbers start at 1; zero disables
// the corresponding event.
type DemoConfig struct {
	Frames         int    `yaml:"frames"`
	LoseDeviceAt   int    `yaml:"lose_device_at"`
	DpiChangeAt    int    `yaml:"dpi_change_at"`
	AsyncResources bool   `yaml:"async_resources"`
	Output         string `yaml:"output"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Sharing:    "shared",
			DebugLevel: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Demo: DemoConfig{
			Frames:       10,
			LoseDeviceAt: 4,
			DpiChangeAt:  7,
			Output:       "devicedemo.png",
			Width:        256,
			Height:       256,
		},
	}
}

// Load reads configuration from path. An empty path skips the file and uses
// defaults plus environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("GGDEVICE_FACTORY"); v != "" {
		cfg.Device.Factory = v
	}
	if v := os.Getenv("GGDEVICE_SHARING"); v != "" {
		cfg.Device.Sharing = v
	}
	if v := os.Getenv("GGDEVICE_FORCE_SOFTWARE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GGDEVICE_FORCE_SOFTWARE: %w", err)
		}
		cfg.Device.ForceSoftware = b
	}
	if v := os.Getenv("GGDEVICE_DEBUG_LEVEL"); v != "" {
		cfg.Device.DebugLevel = v
	}
	if v := os.Getenv("GGDEVICE_POOL_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("GGDEVICE_POOL_CAPACITY: %w", err)
		}
		cfg.Pool.Capacity = n
	}
	if v := os.Getenv("GGDEVICE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GGDEVICE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("GGDEVICE_OUTPUT"); v != "" {
		cfg.Demo.Output = v
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if f := c.Device.Factory; f != "" && !slices.Contains(device.Available(), f) {
		errs = append(errs, fmt.Errorf("device.factory %q is not registered (available: %s)",
			f, strings.Join(device.Available(), ", ")))
	}
	if _, err := device.ParseSharing(c.Device.Sharing); err != nil {
		errs = append(errs, err)
	}
	if _, err := device.ParseDebugLevel(c.Device.DebugLevel); err != nil {
		errs = append(errs, err)
	}
	if c.Pool.Capacity < 0 {
		errs = append(errs, fmt.Errorf("pool.capacity must not be negative, got %d", c.Pool.Capacity))
	}
	if _, err := parseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	d := c.Demo
	if d.Frames < 1 {
		errs = append(errs, fmt.Errorf("demo.frames must be at least 1, got %d", d.Frames))
	}
	if d.LoseDeviceAt < 0 || d.LoseDeviceAt > d.Frames {
		errs = append(errs, fmt.Errorf("demo.lose_device_at must be within 0..%d, got %d", d.Frames, d.LoseDeviceAt))
	}
	if d.DpiChangeAt < 0 || d.DpiChangeAt > d.Frames {
		errs = append(errs, fmt.Errorf("demo.dpi_change_at must be within 0..%d, got %d", d.Frames, d.DpiChangeAt))
	}
	if d.Width < 1 || d.Height < 1 {
		errs = append(errs, fmt.Errorf("demo size must be positive, got %dx%d", d.Width, d.Height))
	}

	return errors.Join(errs...)
}

// ToCreationOptions converts the device section. Call Validate first.
func (c *Config) ToCreationOptions() device.CreationOptions {
	sharing, _ := device.ParseSharing(c.Device.Sharing)
	return device.CreationOptions{
		Sharing:       sharing,
		ForceSoftware: c.Device.ForceSoftware,
	}
}

// FactoryOptions returns the software factory options for the device and
// pool sections. Call Validate first.
func (c *Config) FactoryOptions() []device.FactoryOption {
	level, _ := device.ParseDebugLevel(c.Device.DebugLevel)
	opts := []device.FactoryOption{device.WithDebugLevel(level)}
	if c.Pool.Capacity > 0 {
		opts = append(opts, device.WithPoolCapacity(c.Pool.Capacity))
	}
	return opts
}

// NewLogger builds a logger writing to w as configured. Call Validate first.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.Logging.Level)
	opts := &slog.HandlerOptions{Level: level}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("logging.level %q is not one of debug, info, warn, error", s)
	}
}
