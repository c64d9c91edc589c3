package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MaxConfigFileBytes caps the size of a configuration file.
const MaxConfigFileBytes = 1 << 20

// CameraConfig selects the device and tunes session setup.
type CameraConfig struct {
	Model              string   `yaml:"model"`                // e.g., "Canon EOS 2000D"; empty = any
	Port               string   `yaml:"port"`                 // e.g., "usb:001,004"; empty = first detected
	RetryCount         *int     `yaml:"retries"`              // extra init/capture/preview attempts (default 1)
	RemediationCommand []string `yaml:"remediation_command"`  // run when the device is locked
	NoRemediation      bool     `yaml:"no_remediation"`       // never run a remediation command
	RemediationDelayMs int      `yaml:"remediation_delay_ms"` // wait after remediation (ms)
	Mock               bool     `yaml:"mock"`                 // simulated camera, no libgphoto2 device needed
}

// CaptureConfig describes where and how pictures are taken.
type CaptureConfig struct {
	OutputDir      string `yaml:"output_dir"`       // destination of captured files
	BurstCount     int    `yaml:"burst_count"`      // pictures per burst
	IntervalMs     int    `yaml:"interval_ms"`      // pause between burst shots (ms)
	PreviewWidth   int    `yaml:"preview_width"`    // live-view downscale width in px, 0 = native
	LiveIntervalMs int    `yaml:"live_interval_ms"` // pause between live-view frames (ms)
}

// TriggerConfig selects how the shutter is fired for triggered sequences.
// Type is "usb" (libgphoto2 trigger) or "gpio_release" (wired remote release).
type TriggerConfig struct {
	Type           string `yaml:"type"`
	MockGPIO       bool   `yaml:"mock_gpio"`        // use mock GPIO (true=dev/test, false=real Raspberry Pi)
	FocusPin       int    `yaml:"focus_pin"`        // GPIO pin for FOCUS line
	ShutterPin     int    `yaml:"shutter_pin"`      // GPIO pin for SHUTTER line
	FocusDelayMs   int    `yaml:"focus_delay_ms"`   // autofocus delay (ms)
	ShutterDelayMs int    `yaml:"shutter_delay_ms"` // shutter hold time (ms)
	// Note: GND is physically connected to Raspberry Pi ground
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
}

// Config aggregates all application configuration.
type Config struct {
	Camera   CameraConfig      `yaml:"camera"`
	Capture  CaptureConfig     `yaml:"capture"`
	Trigger  TriggerConfig     `yaml:"trigger"`
	Defaults DefaultsConfig    `yaml:"defaults"`
	Settings map[string]string `yaml:"settings"` // widget path -> value, applied at start
}

// Trigger types.
const (
	TriggerUSB         = "usb"
	TriggerGPIORelease = "gpio_release"
)

// ValidateConfigPath rejects paths that are not a .yaml file directly inside
// a configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must have a .yaml extension", path)
	}
	abs, err := filepath.Abs(clean)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file exceeds %d bytes", MaxConfigFileBytes)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	// Camera
	if cfg.Camera.RetryCount != nil && *cfg.Camera.RetryCount < 0 {
		return fmt.Errorf("camera.retries must be >= 0, got %d", *cfg.Camera.RetryCount)
	}
	if cfg.Camera.Model != "" && cfg.Camera.Port == "" {
		return fmt.Errorf("camera.port is required when camera.model is set")
	}
	if len(cfg.Camera.RemediationCommand) == 0 {
		cfg.Camera.RemediationCommand = []string{"gvfs-mount", "-s", "gphoto2"}
	}
	if cfg.Camera.RemediationDelayMs <= 0 {
		cfg.Camera.RemediationDelayMs = 1000 // 1s for the volume monitor to let go
	}

	// Capture
	if cfg.Capture.OutputDir == "" {
		cfg.Capture.OutputDir = "captures"
	}
	if cfg.Capture.BurstCount < 0 {
		return fmt.Errorf("capture.burst_count must be >= 0, got %d", cfg.Capture.BurstCount)
	}
	if cfg.Capture.BurstCount == 0 {
		cfg.Capture.BurstCount = 1
	}
	if cfg.Capture.IntervalMs < 0 {
		return fmt.Errorf("capture.interval_ms must be >= 0, got %d", cfg.Capture.IntervalMs)
	}
	if cfg.Capture.PreviewWidth < 0 || cfg.Capture.PreviewWidth > 8192 {
		return fmt.Errorf("capture.preview_width must be between 0 and 8192, got %d", cfg.Capture.PreviewWidth)
	}
	if cfg.Capture.LiveIntervalMs <= 0 {
		cfg.Capture.LiveIntervalMs = 100
	}

	// Trigger
	switch cfg.Trigger.Type {
	case "":
		cfg.Trigger.Type = TriggerUSB
	case TriggerUSB:
	case TriggerGPIORelease:
		if cfg.Trigger.FocusPin <= 0 || cfg.Trigger.ShutterPin <= 0 {
			return fmt.Errorf("trigger.focus_pin and trigger.shutter_pin are required for %s", TriggerGPIORelease)
		}
		if cfg.Trigger.FocusPin == cfg.Trigger.ShutterPin {
			return fmt.Errorf("trigger.focus_pin and trigger.shutter_pin must differ, both are %d", cfg.Trigger.FocusPin)
		}
	default:
		return fmt.Errorf("unsupported trigger type: %s", cfg.Trigger.Type)
	}
	if cfg.Trigger.FocusDelayMs <= 0 {
		cfg.Trigger.FocusDelayMs = 500 // 500ms for autofocus
	}
	if cfg.Trigger.ShutterDelayMs <= 0 {
		cfg.Trigger.ShutterDelayMs = 200 // 200ms shutter hold
	}

	if cfg.Defaults.DebugLevel < 0 || cfg.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", cfg.Defaults.DebugLevel)
	}

	for path := range cfg.Settings {
		if strings.Trim(path, "/") == "" {
			return fmt.Errorf("settings: empty widget path")
		}
	}
	return nil
}

// Retries returns the number of extra attempts for init, capture and preview.
func (c *Config) Retries() int {
	if c.Camera.RetryCount == nil {
		return 1
	}
	return *c.Camera.RetryCount
}

// RemediationDelay returns the wait after a remediation.
func (c *Config) RemediationDelay() time.Duration {
	return time.Duration(c.Camera.RemediationDelayMs) * time.Millisecond
}

// Interval returns the pause between burst shots.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Capture.IntervalMs) * time.Millisecond
}

// LiveInterval returns the pause between live-view frames.
func (c *Config) LiveInterval() time.Duration {
	return time.Duration(c.Capture.LiveIntervalMs) * time.Millisecond
}

// FocusDelay returns the autofocus delay duration.
func (c *Config) FocusDelay() time.Duration {
	return time.Duration(c.Trigger.FocusDelayMs) * time.Millisecond
}

// ShutterDelay returns the shutter hold duration.
func (c *Config) ShutterDelay() time.Duration {
	return time.Duration(c.Trigger.ShutterDelayMs) * time.Millisecond
}
