package v4l2

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Frame is a minimal frame struct for internal use (avoids import cycle)
// The parent package converts it to its public Frame type
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Data      []byte
	Device    string
	TraceID   string
}

// CallbackContext holds state needed by GStreamer callbacks
type CallbackContext struct {
	FrameChan    chan<- Frame // Uses internal Frame type
	FrameCounter *uint64      // Atomic counter for sequence numbers
	BytesRead    *uint64      // Atomic counter for bytes read
	Width        int
	Height       int
	Device       string
}

// OnNewSample is called by GStreamer when a new frame is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Maps the buffer to read pixel data
//  3. Copies data out (GStreamer will reuse the buffer)
//  4. Stamps the frame with wall-clock time, sequence and trace id
//  5. Sends the frame downstream (non-blocking; downstream owns drop policy)
//
// The timestamp drawn here is what the clear watermark upstream compares
// against, so it is taken as late as possible, after the copy.
//
// Returns gst.FlowOK even on per-frame failures: a single corrupt sample
// must not kill the whole pipeline.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("v4l2: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		slog.Warn("v4l2: failed to get buffer from sample, skipping frame")
		return gst.FlowOK
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		slog.Warn("v4l2: empty buffer received")
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse the buffer)
	frameData := make([]byte, len(data))
	copy(frameData, data)
	buffer.Unmap()

	seq := atomic.AddUint64(ctx.FrameCounter, 1)
	atomic.AddUint64(ctx.BytesRead, uint64(len(frameData)))

	frame := Frame{
		Seq:       seq,
		Timestamp: time.Now(),
		Width:     ctx.Width,
		Height:    ctx.Height,
		Data:      frameData,
		Device:    ctx.Device,
		TraceID:   uuid.New().String(),
	}

	select {
	case ctx.FrameChan <- frame:
		slog.Debug("v4l2: frame forwarded",
			"seq", frame.Seq,
			"size_bytes", len(frameData),
			"trace_id", frame.TraceID,
		)
	default:
		// Downstream queue owns the drop policy; losing the race here just
		// means an even fresher frame is already on its way.
		slog.Debug("v4l2: forward channel full, frame skipped",
			"seq", frame.Seq,
			"trace_id", frame.TraceID,
		)
	}

	return gst.FlowOK
}
