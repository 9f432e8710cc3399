package gazecapture

import (
	"time"

	"github.com/pperle/gaze-data-collection/internal/warmup"
)

// WarmupStats contains statistics collected during the camera warmup phase
type WarmupStats struct {
	// FramesReceived is the number of frames received during warmup
	FramesReceived int
	// Duration is the actual warmup duration
	Duration time.Duration
	// FPSMean is the overall delivery rate across the warmup
	FPSMean float64
	// FPSStdDev is the spread of instantaneous rates
	FPSStdDev float64
	// FPSMin is the minimum instantaneous rate observed
	FPSMin float64
	// FPSMax is the maximum instantaneous rate observed
	FPSMax float64
	// JitterMean is the mean deviation from the expected inter-frame interval
	JitterMean float64
	// JitterMax is the worst single deviation observed
	JitterMax float64
	// IsStable is the verdict: rate spread and jitter both within limits
	IsStable bool
}

// AnalyzeFrameTimes derives delivery statistics from frame arrival times.
//
// The canonical implementation lives in internal/warmup; this wrapper maps
// it onto the public stats type used by FrameSource.Warmup.
func AnalyzeFrameTimes(frameTimes []time.Time, totalDuration time.Duration) *WarmupStats {
	s := warmup.Analyze(frameTimes, totalDuration)
	return &WarmupStats{
		FramesReceived: s.FramesReceived,
		Duration:       s.Duration,
		FPSMean:        s.FPSMean,
		FPSStdDev:      s.FPSStdDev,
		FPSMin:         s.FPSMin,
		FPSMax:         s.FPSMax,
		JitterMean:     s.JitterMean,
		JitterMax:      s.JitterMax,
		IsStable:       s.Stable,
	}
}
