package gazecapture

import (
	"fmt"
	"image"
	"time"
)

// Orientation is the direction the stimulus glyph points. The subject answers
// a trial by pressing the matching arrow key while the capture window is open.
type Orientation int

const (
	// Up points the glyph upward (glyph rendered in transposed space)
	Up Orientation = iota
	// Down points the glyph downward (glyph rendered in transposed space)
	Down
	// Left points the glyph leftward (glyph mirrored horizontally)
	Left
	// Right points the glyph rightward (the unmodified rendering)
	Right
)

// Orientations lists all four stimulus directions, in sampling order.
var Orientations = [4]Orientation{Up, Down, Left, Right}

// KeyCode returns the X11 HighGUI key code of the matching arrow key.
// These are the values cv::waitKey reports on Linux.
func (o Orientation) KeyCode() int {
	switch o {
	case Up:
		return 82
	case Down:
		return 84
	case Left:
		return 81
	case Right:
		return 83
	default:
		return -1
	}
}

// String returns a human-readable name for the orientation.
func (o Orientation) String() string {
	switch o {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Vertical reports whether the stimulus is drawn in transposed (swapped-axis)
// space. Up and Down render on a width×height canvas and transpose back.
func (o Orientation) Vertical() bool {
	return o == Up || o == Down
}

// Mirrored reports whether the stimulus coordinate and frame are mirrored
// before display. Left mirrors in screen space, Up in transposed space.
func (o Orientation) Mirrored() bool {
	return o == Left || o == Up
}

// QuitKey is the key code that aborts the whole collection run from any
// polling point ('q' on the keyboard).
const QuitKey = 'q'

// MonitorGeometry describes the single target monitor: physical size in
// millimeters and mode in pixels. Both are persisted with every sample so a
// dataset row is interpretable without the machine it was recorded on.
type MonitorGeometry struct {
	WidthMM  int
	HeightMM int
	WidthPx  int
	HeightPx int
}

// PixelSize returns the monitor mode as an image.Point (W, H).
func (m MonitorGeometry) PixelSize() image.Point {
	return image.Pt(m.WidthPx, m.HeightPx)
}

// String returns a compact "WxH px, WxH mm" description.
func (m MonitorGeometry) String() string {
	return fmt.Sprintf("%dx%d px, %dx%d mm", m.WidthPx, m.HeightPx, m.WidthMM, m.HeightMM)
}

// Valid reports whether all four dimensions are positive.
func (m MonitorGeometry) Valid() bool {
	return m.WidthMM > 0 && m.HeightMM > 0 && m.WidthPx > 0 && m.HeightPx > 0
}

// Frame represents a single camera frame with metadata
type Frame struct {
	// Seq is the monotonic sequence number
	Seq uint64
	// Timestamp is when the frame left the capture pipeline
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Data contains packed RGB bytes (Width*Height*3)
	Data []byte
	// Device identifies the camera (e.g. "/dev/video0")
	Device string
	// TraceID is a unique identifier for tracing a frame through logs
	TraceID string
}

// TrialOutcome is the result of one trial. FileName and TimeTillCapture are
// meaningful only when Captured is true; an expired trial carries only the
// point that was shown.
type TrialOutcome struct {
	// FileName is the stored image name (e.g. "2024_11_05-14_03_12.jpg")
	FileName string
	// PointOnScreen is the stimulus center in screen pixels
	PointOnScreen image.Point
	// TimeTillCapture is the delay between cue onset and the accepted key press
	TimeTillCapture time.Duration
	// Captured reports whether a frame was stored for this trial
	Captured bool
}

// Sample is one persisted dataset row: a captured frame tied to the screen
// point the subject was looking at, plus the monitor it was shown on.
type Sample struct {
	FileName        string
	PointOnScreen   image.Point
	TimeTillCapture time.Duration
	Monitor         MonitorGeometry
}

// Resolution represents supported camera capture resolutions
type Resolution int

const (
	// Res480p represents 640x480 (VGA, the common webcam default)
	Res480p Resolution = iota
	// Res720p represents 1280x720 (HD)
	Res720p
	// Res1080p represents 1920x1080 (Full HD)
	Res1080p
)

// Dimensions returns the width and height for the resolution
func (r Resolution) Dimensions() (width, height int) {
	switch r {
	case Res480p:
		return 640, 480
	case Res720p:
		return 1280, 720
	case Res1080p:
		return 1920, 1080
	default:
		// Safe default: 720p
		return 1280, 720
	}
}

// String returns a human-readable string representation of the resolution
func (r Resolution) String() string {
	switch r {
	case Res480p:
		return "480p"
	case Res720p:
		return "720p"
	case Res1080p:
		return "1080p"
	default:
		return "720p"
	}
}

// ParseResolution converts a flag/config value ("480p", "720p", "1080p").
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "480p":
		return Res480p, nil
	case "720p":
		return Res720p, nil
	case "1080p":
		return Res1080p, nil
	default:
		return 0, fmt.Errorf("gaze-capture: invalid resolution %q (must be 480p, 720p or 1080p)", s)
	}
}

// WebcamConfig contains configuration for local camera capture
type WebcamConfig struct {
	// Device is the V4L2 device path (required, e.g. "/dev/video0")
	Device string
	// Resolution is the capture resolution
	Resolution Resolution
	// FPS is the capture rate in frames per second (1-120)
	FPS int
}

// SourceStats contains current frame source statistics
type SourceStats struct {
	// FrameCount is the total number of frames acquired
	FrameCount uint64
	// FramesDropped is the total number of frames dropped (buffer full)
	FramesDropped uint64
	// DropRate is the percentage of frames dropped (0-100)
	DropRate float64
	// BufferClears is the number of ClearBuffer calls served
	BufferClears uint64
	// FramesDrained is the number of queued frames discarded by clears
	FramesDrained uint64
	// FPSTarget is the configured capture rate
	FPSTarget int
	// FPSReal is the measured acquisition rate
	FPSReal float64
	// LatencyMS is the time since the last frame in milliseconds
	LatencyMS int64
	// Device identifies the camera (e.g. "/dev/video0")
	Device string
	// Resolution is the frame resolution (e.g. "1280x720")
	Resolution string
	// BytesRead is the total bytes read from the camera
	BytesRead uint64
	// IsRunning indicates whether acquisition is active
	IsRunning bool
	// ErrorsDevice counts device-level pipeline errors (missing, busy, permission)
	ErrorsDevice uint64
	// ErrorsFormat counts caps/format negotiation errors
	ErrorsFormat uint64
	// ErrorsUnknown counts unclassified pipeline errors
	ErrorsUnknown uint64
}
