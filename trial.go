package gazecapture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"gocv.io/x/gocv"
)

const (
	// animationPolls is the number of fixed-length input polls per
	// animation frame. Polling a fixed count, rather than one long wait,
	// keeps every frame on screen for the same time even while a key is
	// held down (each press just consumes one short poll).
	animationPolls        = 10
	animationPollInterval = 50 * time.Millisecond

	// captureWindow is how long after the go cue a confirming key press
	// is accepted. A press must land inside this window or the trial
	// expires without a capture.
	captureWindow = 500 * time.Millisecond

	// captureTick is the input poll interval inside the capture window,
	// fine-grained so the measured reaction time is meaningful.
	captureTick = 42 * time.Millisecond

	// captureTimeout bounds the wait for a fresh frame after the buffer
	// clear. At any supported capture rate a frame arrives well within a
	// second; a longer silence means the camera has stalled.
	captureTimeout = time.Second

	// settleDelay is how long the blank rest frame stays up after a trial.
	settleDelay = 500 * time.Millisecond

	// captureNameLayout stamps capture files with the wall-clock time of
	// the go cue, to second resolution.
	captureNameLayout = "2006_01_02-15_04_05"
)

// errAborted reports that the quit key ended the run. The default exit
// hook terminates the process first, so this error is only observable
// when the hook is replaced (in tests).
var errAborted = errors.New("gaze-capture: run aborted by quit key")

// Clock abstracts wall time so trial timing can be tested without
// sleeping through real capture windows.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// TrialConfig wires a TrialRunner's collaborators.
type TrialConfig struct {
	// Surface displays frames and polls keys (required)
	Surface Surface
	// Source supplies camera frames (required)
	Source FrameSource
	// Store persists captured frames (required)
	Store *CaptureStore
	// Trigger marks cue and capture on external hardware (optional)
	Trigger *TriggerBox
	// Screen is the monitor mode in pixels (required)
	Screen image.Point
	// Rng drives target placement, orientation and termination (required)
	Rng *rand.Rand
	// Stop overrides the termination rule; nil means UniformStopRule(Rng)
	Stop StopRule
	// Clock overrides wall time; nil means the system clock
	Clock Clock
	// Exit replaces the quit-key handler; nil means close the surface
	// and exit the process
	Exit func()
}

// TrialRunner executes trials: one animated target, one capture window,
// at most one stored frame per trial.
//
// A trial walks four phases:
//
//	ANIMATING       shrinking target frames until the stop rule fires;
//	                the terminating frame switches the glyph to orange
//	CAPTURE WINDOW  0.5s during which only the key bound to the trial's
//	                orientation confirms fixation
//	CAPTURED        buffer clear, one fresh frame, stored as JPEG
//	SETTLE          blank frame so the subject can rest their eyes
//
// The quit key is honored at every polling point and ends the whole run,
// not just the trial.
type TrialRunner struct {
	surface Surface
	source  FrameSource
	store   *CaptureStore
	trigger *TriggerBox
	screen  image.Point
	rng     *rand.Rand
	stop    StopRule
	clock   Clock
	exit    func()
}

// NewTrialRunner validates the wiring and applies defaults for the
// injectable pieces.
func NewTrialRunner(cfg TrialConfig) (*TrialRunner, error) {
	if cfg.Surface == nil {
		return nil, fmt.Errorf("gaze-capture: trial surface is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("gaze-capture: frame source is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("gaze-capture: capture store is required")
	}
	if cfg.Rng == nil {
		return nil, fmt.Errorf("gaze-capture: random source is required")
	}
	if cfg.Screen.X <= 0 || cfg.Screen.Y <= 0 {
		return nil, fmt.Errorf("gaze-capture: invalid screen size %dx%d", cfg.Screen.X, cfg.Screen.Y)
	}

	stop := cfg.Stop
	if stop == nil {
		stop = UniformStopRule(cfg.Rng)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	exit := cfg.Exit
	if exit == nil {
		surface := cfg.Surface
		exit = func() {
			surface.Close()
			os.Exit(0)
		}
	}

	return &TrialRunner{
		surface: cfg.Surface,
		source:  cfg.Source,
		store:   cfg.Store,
		trigger: cfg.Trigger,
		screen:  cfg.Screen,
		rng:     cfg.Rng,
		stop:    stop,
		clock:   clock,
		exit:    exit,
	}, nil
}

// Run executes one full trial and reports its outcome.
//
// A nil error with Captured=false is a normal expired trial (the window
// closed without a matching key press). Errors mean the trial could not
// complete: context cancellation, camera failure, or storage failure.
func (r *TrialRunner) Run(ctx context.Context) (TrialOutcome, error) {
	center := RandomCenter(r.rng, r.screen)
	orientation := RandomOrientation(r.rng)
	outcome := TrialOutcome{PointOnScreen: center}

	slog.Debug("gaze-capture: trial started",
		"center", fmt.Sprintf("(%d, %d)", center.X, center.Y),
		"orientation", orientation.String(),
	)

	// ANIMATING: every frame, including the terminating orange one, stays
	// on screen for the full poll count before the trial moves on.
	shrink := 1.0
	frames := 0
	terminated := false
	for !terminated {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		var img gocv.Mat
		img, shrink, terminated = RenderTarget(r.screen, center, shrink, orientation, TargetGlyph, r.stop)
		r.surface.Show(img)
		img.Close()
		frames++

		if terminated {
			r.cueOn()
		}

		for i := 0; i < animationPolls; i++ {
			if r.surface.WaitKey(animationPollInterval) == QuitKey {
				return r.abort(outcome)
			}
		}
	}

	// CAPTURE WINDOW: the file name is fixed the moment the window opens
	// so the stored image and the dataset row can never disagree.
	fileName := r.clock.Now().Format(captureNameLayout) + ".jpg"
	cueAt := r.clock.Now()

	slog.Debug("gaze-capture: capture window open",
		"file", fileName,
		"orientation", orientation.String(),
		"frames_animated", frames,
	)

	for r.clock.Now().Sub(cueAt) < captureWindow {
		key := r.surface.WaitKey(captureTick)
		if key == QuitKey {
			return r.abort(outcome)
		}
		if key != orientation.KeyCode() {
			continue
		}

		// Fixation confirmed. Discard everything the camera delivered
		// before this instant, then store the next fresh frame.
		r.source.ClearBuffer()

		captureCtx, cancel := context.WithTimeout(ctx, captureTimeout)
		frame, err := r.source.NextFrame(captureCtx)
		cancel()
		if err != nil {
			return outcome, fmt.Errorf("gaze-capture: capture failed: %w", err)
		}

		if err := r.store.Save(fileName, frame); err != nil {
			return outcome, err
		}

		outcome.FileName = fileName
		outcome.TimeTillCapture = r.clock.Now().Sub(cueAt)
		outcome.Captured = true
		r.markCapture()
		break
	}

	r.cueOff()

	// SETTLE: blank frame between trials; keys pressed here are discarded.
	blank := BlankFrame(r.screen)
	r.surface.Show(blank)
	blank.Close()
	r.surface.WaitKey(settleDelay)

	if outcome.Captured {
		slog.Info("gaze-capture: trial captured",
			"file", outcome.FileName,
			"point", fmt.Sprintf("(%d, %d)", center.X, center.Y),
			"orientation", orientation.String(),
			"time_till_capture", outcome.TimeTillCapture,
		)
	} else {
		slog.Debug("gaze-capture: trial expired without confirmation",
			"point", fmt.Sprintf("(%d, %d)", center.X, center.Y),
			"orientation", orientation.String(),
		)
	}

	return outcome, nil
}

// abort runs the quit path. The exit hook normally terminates the
// process, so the return value only matters when the hook is replaced.
func (r *TrialRunner) abort(outcome TrialOutcome) (TrialOutcome, error) {
	slog.Info("gaze-capture: quit key pressed, ending run")
	r.exit()
	return outcome, errAborted
}

// Trigger lines are telemetry for external recording gear; their failures
// are logged, never allowed to spoil a trial.

func (r *TrialRunner) cueOn() {
	if r.trigger == nil {
		return
	}
	if err := r.trigger.CueOn(); err != nil {
		slog.Warn("gaze-capture: trigger cue on failed", "error", err)
	}
}

func (r *TrialRunner) cueOff() {
	if r.trigger == nil {
		return
	}
	if err := r.trigger.CueOff(); err != nil {
		slog.Warn("gaze-capture: trigger cue off failed", "error", err)
	}
}

func (r *TrialRunner) markCapture() {
	if r.trigger == nil {
		return
	}
	if err := r.trigger.MarkCapture(); err != nil {
		slog.Warn("gaze-capture: trigger capture mark failed", "error", err)
	}
}
