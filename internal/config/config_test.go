package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/ggdevice/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, device.CreationOptions{Sharing: device.SharingShared}, cfg.ToCreationOptions())
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
device:
  factory: software
  sharing: exclusive
  force_software: true
  debug_level: warning
pool:
  capacity: 3
logging:
  level: debug
  format: json
demo:
  frames: 20
  lose_device_at: 5
  async_resources: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, device.CreationOptions{Sharing: device.SharingExclusive, ForceSoftware: true}, cfg.ToCreationOptions())
	assert.Equal(t, "software", cfg.Device.Factory)
	assert.Equal(t, 3, cfg.Pool.Capacity)
	assert.Len(t, cfg.FactoryOptions(), 2)
	assert.Equal(t, 20, cfg.Demo.Frames)
	assert.Equal(t, 5, cfg.Demo.LoseDeviceAt)
	assert.True(t, cfg.Demo.AsyncResources)
	// Unset keys keep their defaults.
	assert.Equal(t, 7, cfg.Demo.DpiChangeAt)
	assert.Equal(t, 256, cfg.Demo.Width)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	assert.ErrorContains(t, err, "parsing config file")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GGDEVICE_SHARING", "exclusive")
	t.Setenv("GGDEVICE_FORCE_SOFTWARE", "true")
	t.Setenv("GGDEVICE_POOL_CAPACITY", "2")
	t.Setenv("GGDEVICE_LOG_LEVEL", "warn")
	t.Setenv("GGDEVICE_OUTPUT", "out.png")

	cfg, err := Load(writeConfig(t, "device:\n  sharing: shared\n"))
	require.NoError(t, err)
	assert.Equal(t, "exclusive", cfg.Device.Sharing)
	assert.True(t, cfg.Device.ForceSoftware)
	assert.Equal(t, 2, cfg.Pool.Capacity)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "out.png", cfg.Demo.Output)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("GGDEVICE_POOL_CAPACITY", "many")
	_, err := Load("")
	assert.ErrorContains(t, err, "GGDEVICE_POOL_CAPACITY")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"unknown factory", func(c *Config) { c.Device.Factory = "metal" }, "device.factory"},
		{"unknown sharing", func(c *Config) { c.Device.Sharing = "global" }, "unknown sharing mode"},
		{"unknown debug level", func(c *Config) { c.Device.DebugLevel = "verbose" }, "unknown debug level"},
		{"negative capacity", func(c *Config) { c.Pool.Capacity = -1 }, "pool.capacity"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"no frames", func(c *Config) { c.Demo.Frames = 0 }, "demo.frames"},
		{"loss after last frame", func(c *Config) { c.Demo.LoseDeviceAt = 11 }, "demo.lose_device_at"},
		{"dpi after last frame", func(c *Config) { c.Demo.DpiChangeAt = 11 }, "demo.dpi_change_at"},
		{"empty size", func(c *Config) { c.Demo.Width = 0 }, "demo size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Pool.Capacity = -1
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	assert.ErrorContains(t, err, "pool.capacity")
	assert.ErrorContains(t, err, "logging.format")
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "warn"

	var buf bytes.Buffer
	log := cfg.NewLogger(&buf)
	log.Info("hidden")
	log.Warn("shown", "frame", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"frame":3`)
}
