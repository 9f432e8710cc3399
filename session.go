package gazecapture

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	// sessionIdle is the wait between trials during which the quit key
	// ends the session. This is on top of the trial's own settle frame.
	sessionIdle = 500 * time.Millisecond

	// statsEveryTrials is how often source stats are logged mid-session.
	statsEveryTrials = 10
)

// SessionConfig wires a Session's collaborators.
type SessionConfig struct {
	// Runner executes individual trials (required)
	Runner *TrialRunner
	// Recorder persists one dataset row per captured trial (required)
	Recorder *Recorder
	// Surface polls the inter-trial quit key (required)
	Surface Surface
	// Source is queried for periodic stats logging (optional)
	Source FrameSource
	// Monitor is stamped into every sample (required, must be valid)
	Monitor MonitorGeometry
	// MaxTrials stops the session after this many trials; 0 = until quit
	MaxTrials int
	// Idle overrides the inter-trial wait; 0 means the 500ms default
	Idle time.Duration
}

// Session runs trials back to back and records every capture as it
// happens. One session maps to one sitting of one participant in front
// of one monitor.
type Session struct {
	runner    *TrialRunner
	recorder  *Recorder
	surface   Surface
	source    FrameSource
	monitor   MonitorGeometry
	maxTrials int
	idle      time.Duration

	captured int
	expired  int
}

// NewSession validates the wiring.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("gaze-capture: session runner is required")
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("gaze-capture: session recorder is required")
	}
	if cfg.Surface == nil {
		return nil, fmt.Errorf("gaze-capture: session surface is required")
	}
	if !cfg.Monitor.Valid() {
		return nil, fmt.Errorf("gaze-capture: invalid monitor geometry %s", cfg.Monitor)
	}
	if cfg.MaxTrials < 0 {
		return nil, fmt.Errorf("gaze-capture: max trials must be >= 0, got %d", cfg.MaxTrials)
	}

	idle := cfg.Idle
	if idle <= 0 {
		idle = sessionIdle
	}

	return &Session{
		runner:    cfg.Runner,
		recorder:  cfg.Recorder,
		surface:   cfg.Surface,
		source:    cfg.Source,
		monitor:   cfg.Monitor,
		maxTrials: cfg.MaxTrials,
		idle:      idle,
	}, nil
}

// Run loops trials until the context is canceled, the trial budget is
// exhausted, or the quit key is pressed during the inter-trial idle.
//
// Captured trials are appended to the recorder immediately, one durable
// row per capture. Expired trials leave no row and no file. Any trial or
// recorder error aborts the session; there is no retry.
func (s *Session) Run(ctx context.Context) error {
	slog.Info("gaze-capture: session started",
		"monitor", s.monitor.String(),
		"max_trials", s.maxTrials,
	)

	trial := 0
	for {
		if err := ctx.Err(); err != nil {
			slog.Info("gaze-capture: session canceled",
				"trials", trial,
				"captured", s.captured,
			)
			return err
		}
		if s.maxTrials > 0 && trial >= s.maxTrials {
			slog.Info("gaze-capture: trial budget reached", "trials", trial)
			return nil
		}
		trial++

		outcome, err := s.runner.Run(ctx)
		if err != nil {
			return fmt.Errorf("gaze-capture: trial %d: %w", trial, err)
		}

		if outcome.Captured {
			sample := Sample{
				FileName:        outcome.FileName,
				PointOnScreen:   outcome.PointOnScreen,
				TimeTillCapture: outcome.TimeTillCapture,
				Monitor:         s.monitor,
			}
			if err := s.recorder.Append(sample); err != nil {
				return fmt.Errorf("gaze-capture: trial %d: %w", trial, err)
			}
			s.captured++
		} else {
			s.expired++
		}

		if trial%statsEveryTrials == 0 {
			s.logSourceStats(trial)
		}

		// The idle doubles as the graceful quit point: unlike the in-trial
		// quit, ending here lets the caller close everything in order.
		if s.surface.WaitKey(s.idle) == QuitKey {
			slog.Info("gaze-capture: quit key pressed, ending session",
				"trials", trial,
				"captured", s.captured,
				"expired", s.expired,
			)
			return nil
		}
	}
}

// Captured reports how many trials stored a frame so far.
func (s *Session) Captured() int { return s.captured }

// Expired reports how many trials timed out so far.
func (s *Session) Expired() int { return s.expired }

func (s *Session) logSourceStats(trial int) {
	if s.source == nil {
		return
	}
	stats := s.source.Stats()
	slog.Info("gaze-capture: source stats",
		"trial", trial,
		"frames", stats.FrameCount,
		"dropped", stats.FramesDropped,
		"drop_rate", fmt.Sprintf("%.1f%%", stats.DropRate),
		"buffer_clears", stats.BufferClears,
		"fps_real", fmt.Sprintf("%.2f", stats.FPSReal),
	)
}
