package gazecapture

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// TestNewWebcamStream_FailFast tests fail-fast validation in the constructor
//
// Configuration errors must surface at construction time, before the
// camera device is touched. Invalid configs are rejected without any
// GStreamer interaction, so those cases pass on machines with no camera.
func TestNewWebcamStream_FailFast(t *testing.T) {
	tests := []struct {
		name    string
		cfg     WebcamConfig
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid config",
			cfg: WebcamConfig{
				Device:     "/dev/video0",
				Resolution: Res480p,
				FPS:        30,
			},
			wantErr: false,
		},
		{
			name: "empty device",
			cfg: WebcamConfig{
				Device:     "",
				Resolution: Res480p,
				FPS:        30,
			},
			wantErr: true,
			errMsg:  "camera device is required",
		},
		{
			name: "invalid FPS - zero",
			cfg: WebcamConfig{
				Device:     "/dev/video0",
				Resolution: Res480p,
				FPS:        0,
			},
			wantErr: true,
			errMsg:  "invalid FPS",
		},
		{
			name: "invalid FPS - negative",
			cfg: WebcamConfig{
				Device:     "/dev/video0",
				Resolution: Res480p,
				FPS:        -5,
			},
			wantErr: true,
			errMsg:  "invalid FPS",
		},
		{
			name: "invalid FPS - too high",
			cfg: WebcamConfig{
				Device:     "/dev/video0",
				Resolution: Res480p,
				FPS:        121,
			},
			wantErr: true,
			errMsg:  "invalid FPS",
		},
		{
			name: "valid FPS - minimum boundary",
			cfg: WebcamConfig{
				Device:     "/dev/video0",
				Resolution: Res720p,
				FPS:        1,
			},
			wantErr: false,
		},
		{
			name: "valid FPS - maximum boundary",
			cfg: WebcamConfig{
				Device:     "/dev/video0",
				Resolution: Res1080p,
				FPS:        120,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := NewWebcamStream(tt.cfg)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewWebcamStream() expected error containing %q, got nil", tt.errMsg)
					return
				}
				if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("NewWebcamStream() error = %q, want error containing %q", err, tt.errMsg)
				}
				if stream != nil {
					t.Error("NewWebcamStream() returned non-nil stream with error")
				}
				return
			}

			if err != nil {
				if strings.Contains(err.Error(), "GStreamer") {
					t.Skipf("Skipping: GStreamer not available: %v", err)
				}
				t.Errorf("NewWebcamStream() unexpected error = %v", err)
				return
			}
			if stream == nil {
				t.Error("NewWebcamStream() returned nil stream with no error")
			}
		})
	}
}

// TestWebcamStream_Stop_Idempotent verifies that Stop() can be called
// multiple times safely, including on a stream that was never started
func TestWebcamStream_Stop_Idempotent(t *testing.T) {
	cfg := WebcamConfig{
		Device:     "/dev/video99", // device not opened until Start
		Resolution: Res480p,
		FPS:        30,
	}

	stream, err := NewWebcamStream(cfg)
	if err != nil {
		t.Skipf("Skipping: GStreamer not available: %v", err)
	}

	if err := stream.Stop(); err != nil {
		t.Errorf("First Stop() on non-started stream failed: %v", err)
	}
	if err := stream.Stop(); err != nil {
		t.Errorf("Second Stop() on non-started stream failed: %v", err)
	}

	t.Log("✅ Double Stop() on non-started stream successful (no panic)")
}

// TestWebcamStream_NextFrame_HonorsContext verifies that a blocked
// NextFrame call returns when its context expires
func TestWebcamStream_NextFrame_HonorsContext(t *testing.T) {
	cfg := WebcamConfig{
		Device:     "/dev/video99",
		Resolution: Res480p,
		FPS:        30,
	}

	stream, err := NewWebcamStream(cfg)
	if err != nil {
		t.Skipf("Skipping: GStreamer not available: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = stream.NextFrame(ctx)
	elapsed := time.Since(start)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("NextFrame() error = %v, want context.DeadlineExceeded", err)
	}
	if elapsed > time.Second {
		t.Errorf("NextFrame() blocked %v after context expiry", elapsed)
	}

	t.Logf("✅ NextFrame unblocked after %v", elapsed)
}

// TestWebcamStream_Stats_BeforeStart verifies stats are coherent on a
// stream that has not produced any frames
func TestWebcamStream_Stats_BeforeStart(t *testing.T) {
	cfg := WebcamConfig{
		Device:     "/dev/video99",
		Resolution: Res720p,
		FPS:        25,
	}

	stream, err := NewWebcamStream(cfg)
	if err != nil {
		t.Skipf("Skipping: GStreamer not available: %v", err)
	}

	stats := stream.Stats()

	if stats.IsRunning {
		t.Error("Stats().IsRunning = true before Start()")
	}
	if stats.FrameCount != 0 {
		t.Errorf("Stats().FrameCount = %d, want 0", stats.FrameCount)
	}
	if stats.Device != "/dev/video99" {
		t.Errorf("Stats().Device = %q, want %q", stats.Device, "/dev/video99")
	}
	if stats.Resolution != "1280x720" {
		t.Errorf("Stats().Resolution = %q, want %q", stats.Resolution, "1280x720")
	}
	if stats.FPSTarget != 25 {
		t.Errorf("Stats().FPSTarget = %d, want 25", stats.FPSTarget)
	}

	t.Log("✅ Pre-start stats coherent")
}

// TestWebcamStream_WarmupRequiresStart verifies Warmup fails fast on a
// stream that was never started
func TestWebcamStream_WarmupRequiresStart(t *testing.T) {
	cfg := WebcamConfig{
		Device:     "/dev/video99",
		Resolution: Res480p,
		FPS:        30,
	}

	stream, err := NewWebcamStream(cfg)
	if err != nil {
		t.Skipf("Skipping: GStreamer not available: %v", err)
	}

	_, err = stream.Warmup(context.Background(), time.Second)
	if err == nil {
		t.Fatal("Warmup() on non-started stream returned nil error")
	}
	if !strings.Contains(err.Error(), "not started") {
		t.Errorf("Warmup() error = %q, want error containing %q", err, "not started")
	}
}
