package v4l2

import (
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
)

// ErrorCategory classifies GStreamer errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryDevice indicates device-level failures (missing, busy, permission)
	ErrCategoryDevice ErrorCategory = iota
	// ErrCategoryFormat indicates caps/format negotiation failures
	ErrCategoryFormat
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable name for the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryDevice:
		return "device"
	case ErrCategoryFormat:
		return "format"
	default:
		return "unknown"
	}
}

// ClassifyGStreamerError categorizes a GStreamer error for telemetry
//
// Distinguishes:
//   - Format issues (the camera cannot deliver the requested mode; try a
//     different resolution or frame rate)
//   - Device issues (wrong path, another process holds the camera, udev
//     permissions; nothing a config change inside this process fixes)
//
// go-gst's GError does not expose Domain(), so classification relies on
// message keywords. Format is checked first: mode errors usually name the
// device too and would otherwise be swallowed by the device bucket.
func ClassifyGStreamerError(gerr *gst.GError) ErrorCategory {
	if gerr == nil {
		return ErrCategoryUnknown
	}
	return classifyMessage(strings.ToLower(gerr.Error()), strings.ToLower(gerr.DebugString()))
}

// classifyMessage is the pure classification over lowercased message text.
func classifyMessage(errMsg, debugStr string) ErrorCategory {
	combined := errMsg + " " + debugStr

	if containsAny(combined, formatKeywords) {
		return ErrCategoryFormat
	}
	if containsAny(combined, deviceKeywords) {
		return ErrCategoryDevice
	}
	return ErrCategoryUnknown
}

var formatKeywords = []string{
	"caps",
	"negotiat",
	"format",
	"framerate",
	"frame rate",
	"resolution",
	"capture at",
	"unsupported",
	"not supported",
	"convert",
}

var deviceKeywords = []string{
	"device",
	"/dev/video",
	"v4l2",
	"busy",
	"permission",
	"no such file",
	"not found",
	"cannot identify",
	"could not open",
	"failed to open",
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
