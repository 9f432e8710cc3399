package gazecapture

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// csvHeader is the dataset schema. The tuple columns keep the
// "(x, y)" text form so rows stay human-readable and trivially parsed.
var csvHeader = []string{"file_name", "point_on_screen", "time_till_capture", "monitor_mm", "monitor_pixels"}

// Recorder appends captured samples to a CSV dataset file.
//
// The file is opened append-only: resuming a session with the same path
// continues the existing dataset, and the header is written only when
// the file is new. Every Append flushes, so a crash never loses more
// than the row being written.
type Recorder struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
	path string
	rows uint64
}

// NewRecorder opens (or creates) the dataset file at path.
func NewRecorder(path string) (*Recorder, error) {
	if path == "" {
		return nil, fmt.Errorf("gaze-capture: dataset path is required")
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("gaze-capture: failed to open dataset: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("gaze-capture: failed to stat dataset: %w", err)
	}

	r := &Recorder{
		file: file,
		w:    csv.NewWriter(file),
		path: path,
	}

	if info.Size() == 0 {
		if err := r.w.Write(csvHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("gaze-capture: failed to write dataset header: %w", err)
		}
		r.w.Flush()
		if err := r.w.Error(); err != nil {
			file.Close()
			return nil, fmt.Errorf("gaze-capture: failed to write dataset header: %w", err)
		}
	}

	slog.Info("gaze-capture: dataset open",
		"path", path,
		"resumed", info.Size() > 0,
	)

	return r, nil
}

// Append writes one sample row and flushes it to disk.
func (r *Recorder) Append(s Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record := []string{
		s.FileName,
		fmt.Sprintf("(%d, %d)", s.PointOnScreen.X, s.PointOnScreen.Y),
		strconv.FormatFloat(s.TimeTillCapture.Seconds(), 'f', -1, 64),
		fmt.Sprintf("(%d, %d)", s.Monitor.WidthMM, s.Monitor.HeightMM),
		fmt.Sprintf("(%d, %d)", s.Monitor.WidthPx, s.Monitor.HeightPx),
	}

	if err := r.w.Write(record); err != nil {
		return fmt.Errorf("gaze-capture: failed to append sample: %w", err)
	}
	r.w.Flush()
	if err := r.w.Error(); err != nil {
		return fmt.Errorf("gaze-capture: failed to append sample: %w", err)
	}

	r.rows++

	slog.Debug("gaze-capture: sample recorded",
		"file", s.FileName,
		"point", fmt.Sprintf("(%d, %d)", s.PointOnScreen.X, s.PointOnScreen.Y),
		"rows", r.rows,
	)

	return nil
}

// Rows returns how many samples this recorder has appended (not counting
// rows already present when resuming).
func (r *Recorder) Rows() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows
}

// Path returns the dataset file path.
func (r *Recorder) Path() string {
	return r.path
}

// Close flushes and closes the dataset file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.w.Flush()
	if err := r.w.Error(); err != nil {
		r.file.Close()
		return fmt.Errorf("gaze-capture: failed to flush dataset: %w", err)
	}
	return r.file.Close()
}
