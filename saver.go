package gazecapture

import (
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
)

// DefaultJPEGQuality is used when CaptureStore is built without an
// explicit quality setting.
const DefaultJPEGQuality = 95

// CaptureStore writes captured camera frames to a session directory as
// JPEG files. Dataset rows reference the stored file names, so names are
// chosen by the caller (the trial stamps them from the cue time).
//
// Thread-safe: counters are atomic and each Save works on its own file.
type CaptureStore struct {
	dir     string
	quality int

	framesSaved atomic.Uint64
	savesFailed atomic.Uint64
}

// NewCaptureStore creates the session directory (and parents) if needed.
// Quality outside 1-100 falls back to DefaultJPEGQuality.
func NewCaptureStore(dir string, quality int) (*CaptureStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("gaze-capture: capture directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("gaze-capture: failed to create capture directory: %w", err)
	}
	if quality < 1 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	slog.Info("gaze-capture: capture store ready", "dir", dir, "jpeg_quality", quality)

	return &CaptureStore{dir: dir, quality: quality}, nil
}

// Dir returns the session directory captures are written into.
func (cs *CaptureStore) Dir() string {
	return cs.dir
}

// Save encodes the frame as JPEG under the given file name. An existing
// file with the same name is overwritten; names carry second resolution,
// so a collision means two captures within one second and the fresher
// frame wins.
func (cs *CaptureStore) Save(name string, frame Frame) error {
	img, err := rgbToImage(frame)
	if err != nil {
		cs.savesFailed.Add(1)
		return fmt.Errorf("gaze-capture: RGB conversion failed: %w", err)
	}

	path := filepath.Join(cs.dir, name)

	file, err := os.Create(path)
	if err != nil {
		cs.savesFailed.Add(1)
		return fmt.Errorf("gaze-capture: failed to create capture file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: cs.quality}); err != nil {
		cs.savesFailed.Add(1)
		return fmt.Errorf("gaze-capture: JPEG encode failed: %w", err)
	}

	cs.framesSaved.Add(1)

	slog.Debug("gaze-capture: frame saved",
		"file", name,
		"seq", frame.Seq,
		"trace_id", frame.TraceID,
	)

	return nil
}

// Stats returns save counters.
func (cs *CaptureStore) Stats() (saved, failed uint64) {
	return cs.framesSaved.Load(), cs.savesFailed.Load()
}

// rgbToImage converts packed RGB bytes (3 bytes/pixel) to image.RGBA
// (4 bytes/pixel, alpha forced opaque) for the stdlib encoders.
func rgbToImage(frame Frame) (*image.RGBA, error) {
	expectedSize := frame.Width * frame.Height * 3
	if len(frame.Data) != expectedSize {
		return nil, fmt.Errorf("invalid RGB data size: got %d, expected %d",
			len(frame.Data), expectedSize)
	}

	img := image.NewRGBA(image.Rect(0, 0, frame.Width, frame.Height))

	for i := 0; i < frame.Width*frame.Height; i++ {
		img.Pix[i*4+0] = frame.Data[i*3+0]
		img.Pix[i*4+1] = frame.Data[i*3+1]
		img.Pix[i*4+2] = frame.Data[i*3+2]
		img.Pix[i*4+3] = 255
	}

	return img, nil
}
