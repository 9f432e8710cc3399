package v4l2

import "testing"

// TestBuildCaps pins the caps string the capsfilter is fed: packed RGB at an
// exact mode, integer frame rate. GStreamer parses this blind, and a typo
// here surfaces as a baffling negotiation error at runtime.
func TestBuildCaps(t *testing.T) {
	tests := []struct {
		width, height, fps int
		want               string
	}{
		{640, 480, 30, "video/x-raw,format=RGB,width=640,height=480,framerate=30/1"},
		{1280, 720, 30, "video/x-raw,format=RGB,width=1280,height=720,framerate=30/1"},
		{1920, 1080, 60, "video/x-raw,format=RGB,width=1920,height=1080,framerate=60/1"},
	}

	for _, tt := range tests {
		if got := buildCaps(tt.width, tt.height, tt.fps); got != tt.want {
			t.Errorf("buildCaps(%d, %d, %d) = %q, want %q",
				tt.width, tt.height, tt.fps, got, tt.want)
		}
	}

	t.Logf("✅ caps strings match the v4l2 negotiation format")
}
