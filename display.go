package gazecapture

import (
	"log/slog"
	"time"

	"gocv.io/x/gocv"
)

// Surface is the display-and-input dependency of a trial: something that
// can show a frame and poll the keyboard while it is visible.
//
// WaitKey blocks for the given delay, pumping the window event loop, and
// returns the low byte of the pressed key code, or -1 if no key was
// pressed. Returning the low byte makes arrow keys comparable against
// Orientation.KeyCode regardless of the full platform keysym.
//
// The interface exists so trials can run against a scripted surface in
// tests; production uses FullscreenDisplay.
type Surface interface {
	Show(frame gocv.Mat)
	WaitKey(delay time.Duration) int
	Close() error
}

// FullscreenDisplay shows frames on a borderless fullscreen HighGUI window.
//
// All methods must be called from the same goroutine that created the
// display: HighGUI binds its event loop to one OS thread.
type FullscreenDisplay struct {
	win *gocv.Window
}

// NewFullscreenDisplay opens a fullscreen window with the given title.
func NewFullscreenDisplay(name string) *FullscreenDisplay {
	win := gocv.NewWindow(name)
	win.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)

	slog.Info("gaze-capture: fullscreen display opened", "window", name)

	return &FullscreenDisplay{win: win}
}

// Show displays the frame. Float frames are expected normalized to [0,1].
func (d *FullscreenDisplay) Show(frame gocv.Mat) {
	d.win.IMShow(frame)
}

// WaitKey pumps the window event loop for the given delay.
func (d *FullscreenDisplay) WaitKey(delay time.Duration) int {
	ms := int(delay / time.Millisecond)
	if ms < 1 {
		ms = 1
	}
	key := d.win.WaitKey(ms)
	if key < 0 {
		return -1
	}
	return key & 0xff
}

// Close destroys the window.
func (d *FullscreenDisplay) Close() error {
	return d.win.Close()
}
