package gazecapture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate, got: %v", err)
	}

	if cfg.BasePath != "./data/p00" {
		t.Errorf("BasePath = %q, want ./data/p00", cfg.BasePath)
	}
	if cfg.Device != "/dev/video0" {
		t.Errorf("Device = %q, want /dev/video0", cfg.Device)
	}
	if cfg.Resolution != "720p" {
		t.Errorf("Resolution = %q, want 720p", cfg.Resolution)
	}
	if cfg.FPS != 30 {
		t.Errorf("FPS = %d, want 30", cfg.FPS)
	}
	if cfg.WarmupDuration() != 5*time.Second {
		t.Errorf("WarmupDuration = %v, want 5s", cfg.WarmupDuration())
	}
	if cfg.JPEGQuality != DefaultJPEGQuality {
		t.Errorf("JPEGQuality = %d, want %d", cfg.JPEGQuality, DefaultJPEGQuality)
	}

	t.Log("✅ Defaults validate and match the documented flag defaults")
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeConfigFile(t, `
base_path: /tmp/session/p07
device: /dev/video2
resolution: 1080p
fps: 60
monitor_mm: 598x336
monitor_px: 1920x1080
trials: 40
trigger_port: /dev/ttyUSB0
skip_warmup: true
warmup_duration_s: 3
jpeg_quality: 80
debug: true
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.BasePath != "/tmp/session/p07" {
		t.Errorf("BasePath = %q", cfg.BasePath)
	}
	if cfg.Device != "/dev/video2" {
		t.Errorf("Device = %q", cfg.Device)
	}
	if cfg.Resolution != "1080p" || cfg.FPS != 60 {
		t.Errorf("Stream settings = %q/%d, want 1080p/60", cfg.Resolution, cfg.FPS)
	}
	if cfg.Trials != 40 {
		t.Errorf("Trials = %d, want 40", cfg.Trials)
	}
	if cfg.TriggerPort != "/dev/ttyUSB0" || cfg.TriggerBaud != DefaultTriggerBaud {
		t.Errorf("Trigger = %q/%d", cfg.TriggerPort, cfg.TriggerBaud)
	}
	if !cfg.SkipWarmup || cfg.WarmupDurationS != 3 {
		t.Errorf("Warmup = skip=%v dur=%d", cfg.SkipWarmup, cfg.WarmupDurationS)
	}
	if cfg.JPEGQuality != 80 || !cfg.Debug {
		t.Errorf("Quality/Debug = %d/%v", cfg.JPEGQuality, cfg.Debug)
	}

	geom, ok, err := cfg.MonitorOverride()
	if err != nil || !ok {
		t.Fatalf("MonitorOverride: ok=%v err=%v", ok, err)
	}
	if geom.WidthMM != 598 || geom.HeightMM != 336 || geom.WidthPx != 1920 || geom.HeightPx != 1080 {
		t.Errorf("Override geometry = %+v", geom)
	}

	t.Log("✅ Full YAML file parsed with all fields")
}

func TestLoadConfig_SparseFileKeepsDefaults(t *testing.T) {
	path := writeConfigFile(t, "fps: 15\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.FPS != 15 {
		t.Errorf("FPS = %d, want 15", cfg.FPS)
	}
	if cfg.Device != "/dev/video0" {
		t.Errorf("Device = %q, want the default /dev/video0", cfg.Device)
	}
	if cfg.Resolution != "720p" {
		t.Errorf("Resolution = %q, want the default 720p", cfg.Resolution)
	}

	t.Log("✅ Fields absent from the file keep their defaults")
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		missing bool
		errMsg  string
	}{
		{
			name:    "missing file",
			missing: true,
			errMsg:  "failed to read config file",
		},
		{
			name:    "malformed yaml",
			content: "fps: [not a number\n",
			errMsg:  "failed to parse config",
		},
		{
			name:    "invalid value",
			content: "fps: -2\n",
			errMsg:  "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nope.yaml")
			if !tt.missing {
				path = writeConfigFile(t, tt.content)
			}

			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}

	t.Log("✅ Load failures carry a clear cause")
}

func TestConfigValidate_FailFast(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{
			name:   "empty base path",
			mutate: func(c *Config) { c.BasePath = "" },
			errMsg: "base_path is required",
		},
		{
			name:   "empty device",
			mutate: func(c *Config) { c.Device = "" },
			errMsg: "device is required",
		},
		{
			name:   "bad resolution",
			mutate: func(c *Config) { c.Resolution = "4k" },
			errMsg: "invalid resolution",
		},
		{
			name:   "fps too low",
			mutate: func(c *Config) { c.FPS = 0 },
			errMsg: "fps must be 1-120",
		},
		{
			name:   "fps too high",
			mutate: func(c *Config) { c.FPS = 121 },
			errMsg: "fps must be 1-120",
		},
		{
			name:   "negative trials",
			mutate: func(c *Config) { c.Trials = -1 },
			errMsg: "trials must be >= 0",
		},
		{
			name:   "jpeg quality out of range",
			mutate: func(c *Config) { c.JPEGQuality = 101 },
			errMsg: "jpeg_quality must be 1-100",
		},
		{
			name:   "negative warmup",
			mutate: func(c *Config) { c.WarmupDurationS = -3 },
			errMsg: "warmup_duration_s must be >= 0",
		},
		{
			name:   "monitor mm without px",
			mutate: func(c *Config) { c.MonitorMM = "598x336" },
			errMsg: "must be set together",
		},
		{
			name:   "malformed monitor px",
			mutate: func(c *Config) { c.MonitorMM = "598x336"; c.MonitorPx = "fullhd" },
			errMsg: "expected WxH",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Error %q does not contain %q", err.Error(), tt.errMsg)
			}
		})
	}

	t.Log("✅ Validation rejects each bad field with a specific message")
}

func TestConfigValidate_FillsDerivedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JPEGQuality = 0
	cfg.WarmupDurationS = 0
	cfg.TriggerBaud = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.JPEGQuality != DefaultJPEGQuality {
		t.Errorf("JPEGQuality = %d, want %d", cfg.JPEGQuality, DefaultJPEGQuality)
	}
	if cfg.WarmupDurationS != 5 {
		t.Errorf("WarmupDurationS = %d, want 5", cfg.WarmupDurationS)
	}
	if cfg.TriggerBaud != DefaultTriggerBaud {
		t.Errorf("TriggerBaud = %d, want %d", cfg.TriggerBaud, DefaultTriggerBaud)
	}

	t.Log("✅ Zero values are filled with sensible defaults")
}

func TestConfigMonitorOverride_NotConfigured(t *testing.T) {
	cfg := DefaultConfig()

	_, ok, err := cfg.MonitorOverride()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Override should not be reported when both fields are empty")
	}
}

func TestParseDimensions(t *testing.T) {
	tests := []struct {
		input   string
		w, h    int
		wantErr bool
	}{
		{"598x336", 598, 336, false},
		{"1920x1080", 1920, 1080, false},
		{"1920 x 1080", 1920, 1080, false},
		{"1920", 0, 0, true},
		{"x1080", 0, 0, true},
		{"1920x", 0, 0, true},
		{"0x1080", 0, 0, true},
		{"-5x10", 0, 0, true},
		{"WxH", 0, 0, true},
	}

	for _, tt := range tests {
		w, h, err := parseDimensions(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseDimensions(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseDimensions(%q) failed: %v", tt.input, err)
			continue
		}
		if w != tt.w || h != tt.h {
			t.Errorf("parseDimensions(%q) = %dx%d, want %dx%d", tt.input, w, h, tt.w, tt.h)
		}
	}

	t.Log("✅ WxH parsing accepts spaced digits and rejects malformed input")
}
