package v4l2

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	Device string
	Width  int
	Height int
	FPS    int
}

// PipelineElements holds references to GStreamer pipeline elements
// needed for lifecycle control and cleanup
type PipelineElements struct {
	Pipeline   *gst.Pipeline
	AppSink    *app.Sink
	Source     *gst.Element
	CapsFilter *gst.Element
}

// CreatePipeline creates and configures a GStreamer pipeline for webcam capture
//
// Pipeline structure:
//
//	v4l2src → videoconvert → videoscale → videorate → capsfilter → appsink
//
// v4l2src has static pads, so the whole chain links at build time. The
// capsfilter locks RGB output at the requested resolution and frame rate;
// videoscale and videorate absorb whatever mode the camera actually
// negotiates. The appsink keeps only the latest buffer (max-buffers=1,
// drop=true) so a slow consumer sees fresh frames, never a backlog.
//
// The pipeline is configured but NOT started (state remains NULL).
// Caller must call pipeline.SetState(gst.StatePlaying) to start.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	source, err := gst.NewElement("v4l2src")
	if err != nil {
		return nil, fmt.Errorf("failed to create v4l2src: %w", err)
	}
	source.SetProperty("device", cfg.Device)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores

	scaler, err := gst.NewElement("videoscale")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoscale: %w", err)
	}

	videorate, err := gst.NewElement("videorate")
	if err != nil {
		return nil, fmt.Errorf("failed to create videorate: %w", err)
	}
	videorate.SetProperty("drop-only", true)     // Only drop frames, never duplicate
	videorate.SetProperty("skip-to-first", true) // Skip to first frame on start

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsStr := buildCaps(cfg.Width, cfg.Height, cfg.FPS)
	capsfilter.SetProperty("caps", gst.NewCapsFromString(capsStr))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames
	appsink.SetProperty("qos", true)      // Let upstream drop before conversion

	pipeline.AddMany(
		source,
		converter,
		scaler,
		videorate,
		capsfilter,
		appsink.Element,
	)

	if err := gst.ElementLinkMany(
		source,
		converter,
		scaler,
		videorate,
		capsfilter,
		appsink.Element,
	); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements: %w", err)
	}

	slog.Debug("v4l2: pipeline created",
		"device", cfg.Device,
		"caps", capsStr,
	)

	return &PipelineElements{
		Pipeline:   pipeline,
		AppSink:    appsink,
		Source:     source,
		CapsFilter: capsfilter,
	}, nil
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases the camera device.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

// ErrorCounters holds atomic counters for pipeline error categories
type ErrorCounters struct {
	Device  *uint64 // Device-level errors (missing, busy, permission)
	Format  *uint64 // Caps/format negotiation errors
	Unknown *uint64 // Unclassified errors
}

// BusMetrics holds identifying metrics logged with bus events
type BusMetrics struct {
	Device     string
	Resolution string
	FrameCount *uint64
	StartedAt  time.Time
}

// MonitorBus polls the pipeline bus until the context ends or the pipeline
// fails.
//
// A webcam source is restartable on process start only: EOS and pipeline
// errors terminate acquisition for good, they never trigger a reconnect.
// Returns nil on context cancellation (normal shutdown), an error otherwise.
func MonitorBus(
	ctx context.Context,
	pipeline *gst.Pipeline,
	counters *ErrorCounters,
	metrics *BusMetrics,
) error {
	if pipeline == nil {
		return fmt.Errorf("pipeline not initialized")
	}

	bus := pipeline.GetPipelineBus()

	for {
		select {
		case <-ctx.Done():
			slog.Debug("v4l2: context cancelled, stopping bus monitor")
			return nil

		default:
			// Poll with a short timeout for responsive shutdown
			msg := bus.TimedPop(50 * time.Millisecond)
			if msg == nil {
				continue
			}

			switch msg.Type() {
			case gst.MessageEOS:
				slog.Error("v4l2: end of stream from camera",
					"device", metrics.Device,
					"uptime", time.Since(metrics.StartedAt),
					"frames", atomic.LoadUint64(metrics.FrameCount),
				)
				return fmt.Errorf("camera stream ended")

			case gst.MessageError:
				gerr := msg.ParseError()

				category := ClassifyGStreamerError(gerr)
				switch category {
				case ErrCategoryDevice:
					atomic.AddUint64(counters.Device, 1)
				case ErrCategoryFormat:
					atomic.AddUint64(counters.Format, 1)
				default:
					atomic.AddUint64(counters.Unknown, 1)
				}

				slog.Error("v4l2: pipeline error",
					"error", gerr.Error(),
					"debug", gerr.DebugString(),
					"category", category.String(),
					"device", metrics.Device,
					"resolution", metrics.Resolution,
					"uptime", time.Since(metrics.StartedAt),
					"frames", atomic.LoadUint64(metrics.FrameCount),
				)
				return fmt.Errorf("pipeline error [%s]: %s", category.String(), gerr.Error())

			case gst.MessageStateChanged:
				if msg.Source() == pipeline.GetName() {
					old, next := msg.ParseStateChanged()
					slog.Debug("v4l2: pipeline state changed",
						"from", old,
						"to", next,
					)
				}
			}
		}
	}
}

// buildCaps builds the caps string locking format, resolution and frame rate
//
// Format: "video/x-raw,format=RGB,width=W,height=H,framerate=N/1"
func buildCaps(width, height, fps int) string {
	return fmt.Sprintf(
		"video/x-raw,format=RGB,width=%d,height=%d,framerate=%d/1",
		width, height, fps,
	)
}
