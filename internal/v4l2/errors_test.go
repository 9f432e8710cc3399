package v4l2

import "testing"

// TestClassifyMessage_V4L2ErrorShapes runs the classifier over the error
// strings v4l2src and friends actually emit.
//
// Contract: mode problems (fixable by changing resolution/fps) classify as
// format even when the message also names the device; device problems
// (path, busy, permissions) classify as device; everything else is unknown.
func TestClassifyMessage_V4L2ErrorShapes(t *testing.T) {
	tests := []struct {
		name     string
		errMsg   string
		debugStr string
		want     ErrorCategory
	}{
		{
			name:   "device_busy",
			errMsg: "Device '/dev/video0' is busy",
			want:   ErrCategoryDevice,
		},
		{
			name:     "device_missing",
			errMsg:   "Cannot identify device '/dev/video7'.",
			debugStr: "v4l2_calls.c: failed with err -1: No such file or directory",
			want:     ErrCategoryDevice,
		},
		{
			name:     "permission_denied",
			errMsg:   "Could not open device '/dev/video0' for reading and writing.",
			debugStr: "system error: Permission denied",
			want:     ErrCategoryDevice,
		},
		{
			name:     "mode_unavailable_beats_device",
			errMsg:   "Device '/dev/video0' cannot capture at 1920x1080",
			debugStr: "gstv4l2object.c: invalid frame rate",
			want:     ErrCategoryFormat,
		},
		{
			name:     "caps_negotiation",
			errMsg:   "Internal data stream error.",
			debugStr: "streaming stopped, reason not-negotiated (-4)",
			want:     ErrCategoryFormat,
		},
		{
			name:   "unsupported_format",
			errMsg: "Video format RGB not supported by the device",
			want:   ErrCategoryFormat,
		},
		{
			name:   "unclassified",
			errMsg: "Internal data stream error.",
			want:   ErrCategoryUnknown,
		},
		{
			name: "empty",
			want: ErrCategoryUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyMessage(tt.errMsg, tt.debugStr)
			if got != tt.want {
				t.Errorf("classifyMessage(%q, %q) = %s, want %s",
					tt.errMsg, tt.debugStr, got.String(), tt.want.String())
			}
		})
	}

	t.Logf("✅ %d v4l2 error shapes classified as expected", len(tests))
}

// TestClassifyGStreamerError_Nil guards the nil path.
func TestClassifyGStreamerError_Nil(t *testing.T) {
	if got := ClassifyGStreamerError(nil); got != ErrCategoryUnknown {
		t.Errorf("nil error classified as %s, want unknown", got.String())
	}
}

// TestErrorCategory_String covers the telemetry labels.
func TestErrorCategory_String(t *testing.T) {
	cases := map[ErrorCategory]string{
		ErrCategoryDevice:  "device",
		ErrCategoryFormat:  "format",
		ErrCategoryUnknown: "unknown",
		ErrorCategory(99):  "unknown",
	}
	for cat, want := range cases {
		if got := cat.String(); got != want {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", int(cat), got, want)
		}
	}
}
