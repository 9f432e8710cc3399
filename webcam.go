package gazecapture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pperle/gaze-data-collection/internal/v4l2"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// frameQueueDepth bounds how many undelivered frames the source holds.
// The queue evicts oldest-first, so depth only limits how far behind a
// slow consumer can fall before frames start aging out.
const frameQueueDepth = 8

// WebcamStream implements FrameSource using GStreamer for local V4L2 cameras
type WebcamStream struct {
	// Configuration
	device string
	width  int
	height int
	fps    int

	// GStreamer pipeline elements
	elements *v4l2.PipelineElements

	// Frame output
	queue *frameQueue
	mu    sync.RWMutex

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Statistics (atomic for thread-safety)
	frameCount  uint64
	bytesRead   uint64
	started     time.Time
	lastFrameAt time.Time

	// Error telemetry (atomic for thread-safety)
	errorsDevice  uint64 // Device errors (missing, busy, permission)
	errorsFormat  uint64 // Format errors (caps negotiation, unsupported mode)
	errorsUnknown uint64 // Unclassified errors

	// failed is set when the pipeline dies; NextFrame fails from then on.
	// There is no reconnection - the operator restarts the process.
	failed atomic.Bool

	// stopped blocks restart after Stop (one camera session per process)
	stopped atomic.Bool
}

// NewWebcamStream creates a new webcam stream with fail-fast validation
//
// Validates configuration at construction time (fail-fast principle):
//   - Device path must not be empty
//   - FPS must be between 1 and 120
//   - Resolution must be valid (480p, 720p, 1080p)
//
// Returns an error if validation fails or GStreamer is not available.
// The camera device itself is only opened by Start, so construction
// succeeds on machines where the device is absent.
func NewWebcamStream(cfg WebcamConfig) (*WebcamStream, error) {
	// Fail-fast validation: device path
	if cfg.Device == "" {
		return nil, fmt.Errorf("gaze-capture: camera device is required")
	}

	// Fail-fast validation: FPS
	if cfg.FPS < 1 || cfg.FPS > 120 {
		return nil, fmt.Errorf(
			"gaze-capture: invalid FPS %d (must be 1-120)",
			cfg.FPS,
		)
	}

	// Fail-fast validation: resolution
	width, height := cfg.Resolution.Dimensions()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf(
			"gaze-capture: invalid resolution %v",
			cfg.Resolution,
		)
	}

	// Fail-fast validation: GStreamer availability
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("gaze-capture: GStreamer not available: %w", err)
	}

	s := &WebcamStream{
		device: cfg.Device,
		width:  width,
		height: height,
		fps:    cfg.FPS,
		queue:  newFrameQueue(frameQueueDepth),
	}

	slog.Info("gaze-capture: webcam stream created",
		"device", cfg.Device,
		"resolution", fmt.Sprintf("%dx%d", width, height),
		"fps", cfg.FPS,
	)

	return s, nil
}

// Start opens the camera and begins continuous capture
//
// This method:
//  1. Creates the GStreamer v4l2 pipeline
//  2. Starts the pipeline in Playing state
//  3. Launches background goroutines for frame forwarding and bus monitoring
//  4. Returns immediately (non-blocking)
//
// Frames start arriving asynchronously once the pipeline reaches PLAYING
// state. Call Warmup after Start to verify delivery is stable before
// relying on capture timing.
func (s *WebcamStream) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return fmt.Errorf("gaze-capture: stream already started")
	}
	if s.stopped.Load() {
		return fmt.Errorf("gaze-capture: stream stopped, start a new process to reopen the camera")
	}

	// Create cancellable context
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.started = time.Now()

	slog.Info("gaze-capture: starting webcam stream",
		"device", s.device,
		"resolution", fmt.Sprintf("%dx%d", s.width, s.height),
		"fps", s.fps,
	)

	// Create GStreamer pipeline
	pipelineCfg := v4l2.PipelineConfig{
		Device: s.device,
		Width:  s.width,
		Height: s.height,
		FPS:    s.fps,
	}

	elements, err := v4l2.CreatePipeline(pipelineCfg)
	if err != nil {
		s.cancel()
		s.cancel = nil
		return fmt.Errorf("gaze-capture: failed to create pipeline: %w", err)
	}
	s.elements = elements

	// Internal frame channel for callbacks
	// (uses v4l2.Frame instead of gazecapture.Frame to avoid an import cycle)
	internalFrames := make(chan v4l2.Frame, 10)

	callbackCtx := &v4l2.CallbackContext{
		FrameChan:    internalFrames,
		FrameCounter: &s.frameCount,
		BytesRead:    &s.bytesRead,
		Width:        s.width,
		Height:       s.height,
		Device:       s.device,
	}

	// Forward callback frames into the clearable queue.
	// Capture ctx locally to avoid nil dereference during shutdown.
	localCtx := s.ctx
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		for {
			select {
			case <-localCtx.Done():
				return

			case internalFrame := <-internalFrames:
				publicFrame := Frame{
					Seq:       internalFrame.Seq,
					Timestamp: internalFrame.Timestamp,
					Width:     internalFrame.Width,
					Height:    internalFrame.Height,
					Data:      internalFrame.Data,
					Device:    internalFrame.Device,
					TraceID:   internalFrame.TraceID,
				}

				// Update lastFrameAt timestamp (for latency metric)
				s.mu.Lock()
				s.lastFrameAt = time.Now()
				s.mu.Unlock()

				// Queue push never blocks: full queue evicts the oldest
				// frame so a capture always sees the camera's present
				s.queue.push(publicFrame)
			}
		}
	}()

	s.elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return v4l2.OnNewSample(sink, callbackCtx)
		},
	})

	// Start pipeline
	if err := s.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("gaze-capture: failed to start pipeline: %w", err)
	}

	// Wait for pipeline to reach PLAYING state
	bus := s.elements.Pipeline.GetPipelineBus()
	msg := bus.TimedPop(5 * time.Second)
	if msg != nil && msg.Type() == gst.MessageStateChanged {
		_, newState := msg.ParseStateChanged()
		if newState == gst.StatePlaying {
			slog.Info("gaze-capture: pipeline reached PLAYING state")
		}
	}

	// Launch background goroutine for pipeline bus monitoring
	s.wg.Add(1)
	go s.runPipeline(localCtx, s.elements.Pipeline)

	slog.Info("gaze-capture: webcam stream started",
		"device", s.device,
		"note", "frames arrive asynchronously once the camera delivers",
	)

	return nil
}

// runPipeline monitors the GStreamer pipeline bus until shutdown
//
// On a pipeline error the stream is marked failed and the frame queue is
// closed, which unblocks any NextFrame caller with ErrSourceClosed. The
// session then ends; recovery is restarting the collection process. The
// forwarder goroutine keeps running until Stop; its pushes land on the
// closed queue as no-ops.
func (s *WebcamStream) runPipeline(ctx context.Context, pipeline *gst.Pipeline) {
	defer s.wg.Done()

	counters := &v4l2.ErrorCounters{
		Device:  &s.errorsDevice,
		Format:  &s.errorsFormat,
		Unknown: &s.errorsUnknown,
	}
	metrics := &v4l2.BusMetrics{
		Device:     s.device,
		Resolution: fmt.Sprintf("%dx%d", s.width, s.height),
		FrameCount: &s.frameCount,
		StartedAt:  s.started,
	}

	err := v4l2.MonitorBus(ctx, pipeline, counters, metrics)
	if err != nil {
		slog.Error("gaze-capture: camera pipeline stopped",
			"error", err,
			"device", s.device,
			"uptime", time.Since(s.started),
			"frames_captured", atomic.LoadUint64(&s.frameCount),
		)
		s.failed.Store(true)
		s.queue.close()
	}
}

// Stop gracefully shuts down the stream
//
// This method:
//  1. Cancels context to signal shutdown
//  2. Waits for goroutines to finish (timeout 3s)
//  3. Stops the GStreamer pipeline
//  4. Closes the frame queue
//
// Idempotent, but NOT reversible: a stopped stream cannot be started
// again. Collection sessions own the camera for the process lifetime.
func (s *WebcamStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		slog.Debug("gaze-capture: stream not started, nothing to stop")
		return nil
	}

	slog.Info("gaze-capture: stopping webcam stream")
	s.stopped.Store(true)

	// Cancel context to signal shutdown
	s.cancel()

	// Wait for goroutines with timeout
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Debug("gaze-capture: goroutines stopped cleanly")
	case <-time.After(3 * time.Second):
		slog.Warn("gaze-capture: stop timeout exceeded, some goroutines may still be running")
	}

	// Destroy GStreamer pipeline
	if s.elements != nil {
		if err := v4l2.DestroyPipeline(s.elements); err != nil {
			slog.Error("gaze-capture: failed to destroy pipeline", "error", err)
		}
		s.elements = nil
	}

	// Close the frame queue after the forwarder has exited; readers get
	// ErrSourceClosed from here on
	s.queue.close()

	drops, _, clears := s.queue.stats()
	slog.Info("gaze-capture: webcam stream stopped",
		"frames_captured", atomic.LoadUint64(&s.frameCount),
		"frames_dropped", drops,
		"buffer_clears", clears,
		"uptime", time.Since(s.started),
	)

	s.cancel = nil
	s.ctx = nil

	return nil
}

// ClearBuffer discards every frame the camera delivered before this call
//
// Frames already queued are drained; frames still in flight through the
// callback path are rejected by timestamp when NextFrame dequeues them.
// The first frame NextFrame returns after ClearBuffer is therefore
// guaranteed to have been captured after the clear.
func (s *WebcamStream) ClearBuffer() {
	s.queue.Clear()

	_, drained, clears := s.queue.stats()
	slog.Debug("gaze-capture: camera buffer cleared",
		"clears", clears,
		"frames_drained", drained,
	)
}

// NextFrame blocks until a frame newer than the last ClearBuffer arrives
func (s *WebcamStream) NextFrame(ctx context.Context) (Frame, error) {
	return s.queue.Next(ctx)
}

// Stats returns current stream statistics
//
// Thread-safe - uses atomic operations for counters.
func (s *WebcamStream) Stats() SourceStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frameCount := atomic.LoadUint64(&s.frameCount)
	bytesRead := atomic.LoadUint64(&s.bytesRead)
	drops, drained, clears := s.queue.stats()

	// Calculate real FPS
	var fpsReal float64
	if !s.started.IsZero() {
		uptime := time.Since(s.started).Seconds()
		if uptime > 0 {
			fpsReal = float64(frameCount) / uptime
		}
	}

	// Calculate drop rate (evicted frames as a share of all delivered)
	var dropRate float64
	if frameCount > 0 {
		dropRate = (float64(drops) / float64(frameCount)) * 100.0
	}

	// Calculate latency (time since last frame)
	var latencyMS int64
	if !s.lastFrameAt.IsZero() {
		latencyMS = time.Since(s.lastFrameAt).Milliseconds()
	}

	isRunning := s.elements != nil && s.cancel != nil && !s.failed.Load()

	return SourceStats{
		FrameCount:    frameCount,
		FramesDropped: drops,
		DropRate:      dropRate,
		BufferClears:  clears,
		FramesDrained: drained,
		FPSTarget:     s.fps,
		FPSReal:       fpsReal,
		LatencyMS:     latencyMS,
		Device:        s.device,
		Resolution:    fmt.Sprintf("%dx%d", s.width, s.height),
		BytesRead:     bytesRead,
		IsRunning:     isRunning,
		ErrorsDevice:  atomic.LoadUint64(&s.errorsDevice),
		ErrorsFormat:  atomic.LoadUint64(&s.errorsFormat),
		ErrorsUnknown: atomic.LoadUint64(&s.errorsUnknown),
	}
}

// Warmup measures camera FPS stability over a specified duration
//
// Call after Start and before the first trial: the capture timing
// measurement is only meaningful when the camera delivers at a steady
// rate. Blocks for the full duration while consuming frames.
//
// Returns an error if:
//   - The stream is not running
//   - Fewer than 2 frames arrive
//   - Delivery is unstable (rate spread or jitter beyond limits)
func (s *WebcamStream) Warmup(ctx context.Context, duration time.Duration) (*WarmupStats, error) {
	s.mu.RLock()
	if s.cancel == nil {
		s.mu.RUnlock()
		return nil, fmt.Errorf("gaze-capture: stream not started")
	}
	s.mu.RUnlock()

	slog.Info("gaze-capture: starting warmup",
		"duration", duration,
		"reason", "verify frame delivery is steady before trials",
	)

	startTime := time.Now()
	frameTimes := make([]time.Time, 0, 4*s.fps)

	warmupCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	// Consume frames until the warmup window closes
	for {
		frame, err := s.NextFrame(warmupCtx)
		if err != nil {
			if warmupCtx.Err() != nil && ctx.Err() == nil {
				break // warmup window elapsed
			}
			return nil, fmt.Errorf("gaze-capture: warmup interrupted: %w", err)
		}

		frameTimes = append(frameTimes, frame.Timestamp)

		slog.Debug("gaze-capture: warmup frame received",
			"seq", frame.Seq,
			"frames_collected", len(frameTimes),
		)
	}

	elapsed := time.Since(startTime)

	if len(frameTimes) < 2 {
		return nil, fmt.Errorf(
			"gaze-capture: not enough frames received during warmup (got %d, need at least 2)",
			len(frameTimes),
		)
	}

	stats := AnalyzeFrameTimes(frameTimes, elapsed)

	slog.Info("gaze-capture: warmup complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", stats.JitterMean,
		"stable", stats.IsStable,
	)

	// An unstable camera makes time-till-capture measurements worthless,
	// so refuse to proceed rather than record bad samples
	if !stats.IsStable {
		return nil, fmt.Errorf(
			"gaze-capture: warmup failed - camera delivery unstable (mean=%.2f Hz, stddev=%.2f)",
			stats.FPSMean,
			stats.FPSStdDev,
		)
	}

	return stats, nil
}

// checkGStreamerAvailable checks if GStreamer is available
//
// This is a fail-fast validation that runs at construction time.
func checkGStreamerAvailable() error {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	// Try to create a simple element to verify GStreamer is working
	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}

	// Clean up test element
	elem.SetState(gst.StateNull)

	return nil
}
