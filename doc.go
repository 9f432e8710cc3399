// Package gazecapture collects labeled training data for appearance-based
// gaze estimation: one webcam frame per trial, taken at the moment the
// subject provably fixates a known point on the monitor.
//
// Each trial animates a shrinking fixation target at a random screen
// position. The target carries a small letter whose orientation the subject
// must read; when the letter turns orange the subject confirms fixation by
// pressing the arrow key matching the letter's direction within half a
// second. Only then is a single fresh camera frame captured and stored,
// together with the target position, the reaction time, and the monitor
// geometry needed to convert pixels to millimeters downstream.
//
// # Quick Start
//
// The simplest complete wiring, error handling elided:
//
//	monitor, _ := gazecapture.DetectMonitor(ctx)
//
//	stream, _ := gazecapture.NewWebcamStream(gazecapture.WebcamConfig{
//	    Device:     "/dev/video0",
//	    Resolution: gazecapture.Res720p,
//	    FPS:        30,
//	})
//	stream.Start(ctx)
//	stream.Warmup(ctx, 5*time.Second)
//	defer stream.Stop()
//
//	store, _ := gazecapture.NewCaptureStore("./data/p00", 95)
//	recorder, _ := gazecapture.NewRecorder("./data/p00/data.csv")
//	defer recorder.Close()
//
//	display := gazecapture.NewFullscreenDisplay("data collection")
//	runner, _ := gazecapture.NewTrialRunner(gazecapture.TrialConfig{
//	    Surface: display,
//	    Source:  stream,
//	    Store:   store,
//	    Screen:  image.Pt(monitor.WidthPx, monitor.HeightPx),
//	    Rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
//	})
//
//	session, _ := gazecapture.NewSession(gazecapture.SessionConfig{
//	    Runner:   runner,
//	    Recorder: recorder,
//	    Surface:  display,
//	    Source:   stream,
//	    Monitor:  monitor,
//	})
//	session.Run(ctx)
//
// The cmd/gaze-data-collection binary wires exactly this from flags and an
// optional YAML config file.
//
// # The Trial
//
// A trial walks four phases:
//
//   - ANIMATING: the target shrinks by 10% per frame at a random position;
//     each frame stays up for 10 fixed 50ms input polls so holding a key
//     cannot speed the animation up. A random rule ends the animation.
//   - CAPTURE WINDOW: the terminating frame shows the letter in orange; the
//     subject has 500ms to press the arrow key matching the letter's
//     orientation. Wrong arrows are ignored, the quit key ends the run.
//   - CAPTURED: on a matching press the camera buffer is cleared and the
//     next fresh frame is stored as JPEG, named after the cue wall-clock
//     time. The reaction time is recorded as time-till-capture.
//   - SETTLE: a blank frame rests the eyes before the next trial.
//
// A window that closes without a matching press is an expired trial: no
// frame, no dataset row, no trace.
//
// # Frame Freshness
//
// The whole point of the capture path is that the stored frame shows the
// subject looking at the target, not at wherever their eyes were a buffer
// ago. Acquisition therefore never pauses, and capture is clear-then-read:
// ClearBuffer drains everything queued and stamps a watermark; NextFrame
// discards anything acquired at or before that watermark and returns the
// first genuinely fresh frame. See FrameSource for the contract.
//
// # Dataset Format
//
// Samples append to data.csv, one durable row per captured trial:
//
//	file_name,point_on_screen,time_till_capture,monitor_mm,monitor_pixels
//	2024_11_05-14_03_12.jpg,"(812, 441)",0.21,"(598, 336)","(1920, 1080)"
//
// Restarting a session with the same base path resumes the file without
// duplicating the header. Frames live next to the CSV in the base path.
//
// # Key Codes
//
// Key handling uses the Linux X11 HighGUI low-byte codes: arrows are
// 81 (left), 82 (up), 83 (right), 84 (down), and the quit key is 'q'.
// Surface implementations mask their platform keysym down to the low byte.
//
// # Dependencies
//
// Camera acquisition needs the GStreamer 1.x runtime with the V4L2 plugin,
// and rendering/display need OpenCV 4 (via gocv):
//
//	# Ubuntu/Debian
//	sudo apt-get install \
//	    gstreamer1.0-tools \
//	    gstreamer1.0-plugins-base \
//	    gstreamer1.0-plugins-good \
//	    libopencv-dev
//
// Monitor autodetection shells out to xrandr; without it, pass the monitor
// geometry explicitly. The optional trigger box support drives a DLP-IO8-G
// over its USB serial port.
//
// # Thread Safety
//
// The frame source is the only concurrent actor: acquisition runs on
// GStreamer's threads and all of WebcamStream's methods are safe to call
// concurrently. The display, trial runner, and session are single-threaded
// on purpose and must stay on the goroutine that created the window, as
// HighGUI binds its event loop to one OS thread.
//
// # Limitations
//
//   - Linux only: V4L2 capture, X11 key codes, xrandr detection
//   - One camera, one monitor, one subject per session
//   - No live gaze estimation; this tool only collects training data
package gazecapture
