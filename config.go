package gazecapture

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config collects every tunable of a collection session. The YAML file
// mirrors the command-line flags; flags win when both are given.
type Config struct {
	BasePath        string `yaml:"base_path"`         // session directory, holds data.csv and the JPEG frames
	Device          string `yaml:"device"`            // V4L2 device path
	Resolution      string `yaml:"resolution"`        // 480p, 720p, 1080p
	FPS             int    `yaml:"fps"`               // camera frame rate
	MonitorMM       string `yaml:"monitor_mm"`        // physical size override, "WxH" in millimeters
	MonitorPx       string `yaml:"monitor_px"`        // pixel size override, "WxH"
	Trials          int    `yaml:"trials"`            // 0 = run until quit
	TriggerPort     string `yaml:"trigger_port"`      // DLP-IO8-G serial device, empty disables
	TriggerBaud     int    `yaml:"trigger_baud"`      // 0 = DefaultTriggerBaud
	SkipWarmup      bool   `yaml:"skip_warmup"`       // skip the camera stability check
	WarmupDurationS int    `yaml:"warmup_duration_s"` // warm-up duration in seconds (default: 5)
	JPEGQuality     int    `yaml:"jpeg_quality"`      // 1-100 (default: 95)
	Debug           bool   `yaml:"debug"`             // debug logging
}

// DefaultConfig returns the flag defaults as a Config.
func DefaultConfig() *Config {
	return &Config{
		BasePath:        "./data/p00",
		Device:          "/dev/video0",
		Resolution:      "720p",
		FPS:             30,
		TriggerBaud:     DefaultTriggerBaud,
		WarmupDurationS: 5,
		JPEGQuality:     DefaultJPEGQuality,
	}
}

// LoadConfig reads and parses a YAML configuration file. Fields absent
// from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gaze-capture: failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("gaze-capture: failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("gaze-capture: invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and fills derived defaults.
func (c *Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("base_path is required")
	}
	if c.Device == "" {
		return fmt.Errorf("device is required")
	}
	if _, err := ParseResolution(c.Resolution); err != nil {
		return err
	}
	if c.FPS < 1 || c.FPS > 120 {
		return fmt.Errorf("fps must be 1-120, got %d", c.FPS)
	}
	if c.Trials < 0 {
		return fmt.Errorf("trials must be >= 0, got %d", c.Trials)
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be 1-100, got %d", c.JPEGQuality)
	}
	if c.WarmupDurationS < 0 {
		return fmt.Errorf("warmup_duration_s must be >= 0, got %d", c.WarmupDurationS)
	}
	if c.WarmupDurationS == 0 {
		c.WarmupDurationS = 5
	}
	if c.TriggerBaud <= 0 {
		c.TriggerBaud = DefaultTriggerBaud
	}
	if _, _, err := c.MonitorOverride(); err != nil {
		return err
	}
	return nil
}

// MonitorOverride composes the monitor_mm/monitor_px pair into a geometry.
// The second return is false when no override is configured; setting only
// one of the two is an error.
func (c *Config) MonitorOverride() (MonitorGeometry, bool, error) {
	if c.MonitorMM == "" && c.MonitorPx == "" {
		return MonitorGeometry{}, false, nil
	}
	if c.MonitorMM == "" || c.MonitorPx == "" {
		return MonitorGeometry{}, false, fmt.Errorf("monitor_mm and monitor_px must be set together")
	}

	wmm, hmm, err := parseDimensions(c.MonitorMM)
	if err != nil {
		return MonitorGeometry{}, false, fmt.Errorf("monitor_mm: %w", err)
	}
	wpx, hpx, err := parseDimensions(c.MonitorPx)
	if err != nil {
		return MonitorGeometry{}, false, fmt.Errorf("monitor_px: %w", err)
	}

	geom := MonitorGeometry{WidthMM: wmm, HeightMM: hmm, WidthPx: wpx, HeightPx: hpx}
	if !geom.Valid() {
		return MonitorGeometry{}, false, fmt.Errorf("monitor override %s / %s has non-positive dimensions", c.MonitorMM, c.MonitorPx)
	}
	return geom, true, nil
}

// WarmupDuration returns the warm-up window as a duration.
func (c *Config) WarmupDuration() time.Duration {
	return time.Duration(c.WarmupDurationS) * time.Second
}

// parseDimensions parses a "WxH" string such as "598x336".
func parseDimensions(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	w, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	h, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("expected WxH, got %q", s)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("dimensions must be positive, got %q", s)
	}
	return w, h, nil
}
