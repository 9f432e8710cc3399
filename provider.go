package gazecapture

import (
	"context"
	"time"
)

// FrameSource defines the contract between the trial machine and the camera.
//
// Acquisition runs continuously in the background from Start until Stop; the
// trial machine never pauses it. A capture is always the pair
// ClearBuffer → NextFrame, which implementations must make effectively
// atomic with respect to the background refill: a frame acquired before the
// clear must never be returned by the following read.
//
// Implementations must guarantee:
//   - Start() is valid once per process run (restart means process restart)
//   - Stop() is idempotent (safe to call multiple times)
//   - ClearBuffer() and NextFrame() are safe from the trial goroutine while
//     acquisition continues concurrently
//   - Stats() is thread-safe (can be called from any goroutine)
type FrameSource interface {
	// Start begins background frame acquisition.
	//
	// Returns immediately; frames start arriving asynchronously once the
	// capture pipeline is playing. Call Warmup afterwards to verify the
	// camera is delivering at a stable rate before the first trial.
	//
	// Returns an error if the pipeline cannot be created or started. A
	// source that has been stopped is not restartable within the same
	// process run.
	Start(ctx context.Context) error

	// Stop shuts down acquisition and releases the camera.
	//
	// Safe to call multiple times. Pending NextFrame calls return
	// ErrSourceClosed.
	Stop() error

	// ClearBuffer discards every frame queued so far and records a clear
	// watermark. The next NextFrame call returns only a frame acquired
	// after this instant. Never blocks.
	ClearBuffer()

	// NextFrame blocks until a frame acquired after the most recent clear
	// is available, or until ctx is done.
	//
	// Without a preceding clear it simply returns the oldest queued frame.
	// Returns ErrSourceClosed once the source has stopped.
	NextFrame(ctx context.Context) (Frame, error)

	// Stats returns a snapshot of acquisition statistics.
	//
	// Thread-safe; counters are maintained atomically while the source runs.
	Stats() SourceStats

	// Warmup consumes frames for the given duration and measures delivery
	// stability (mean FPS, spread, jitter) before the session starts.
	//
	// Blocks for the whole duration. Returns an error if the source is not
	// running, fewer than two frames arrive, or the measured rate is
	// unstable: an unstable camera would corrupt reaction-time data.
	Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error)
}
