// Package warmup measures camera delivery stability before a collection
// session opens. Reaction times are only meaningful when frames arrive at a
// steady rate; a camera that stutters during warmup would stutter during
// capture.
package warmup

import (
	"math"
	"time"
)

const (
	// fpsSpreadLimit is the maximum FPS standard deviation as a fraction of
	// the mean rate. 30 FPS mean → stable needs stddev < 4.5 FPS.
	fpsSpreadLimit = 0.15

	// jitterLimit is the maximum mean deviation from the expected inter-frame
	// interval, as a fraction of that interval. 30 FPS (33ms) → stable needs
	// mean jitter < 6.6ms.
	jitterLimit = 0.20
)

// Stats summarizes frame delivery over a warmup period.
type Stats struct {
	// FramesReceived is the number of frames that arrived
	FramesReceived int
	// Duration is the measured period
	Duration time.Duration
	// FPSMean is the overall delivery rate (frames / duration)
	FPSMean float64
	// FPSStdDev is the spread of instantaneous rates around the mean
	FPSStdDev float64
	// FPSMin and FPSMax bound the instantaneous rates observed
	FPSMin float64
	FPSMax float64
	// JitterMean is the mean deviation from the expected inter-frame interval
	JitterMean float64
	// JitterMax is the worst single deviation observed
	JitterMax float64
	// Stable is the verdict: spread and jitter both within limits
	Stable bool
}

// Analyze derives delivery statistics from frame arrival times.
//
// The verdict combines two views of the same intervals: the spread of
// instantaneous rates (catches oscillation between fast and slow) and the
// jitter against the expected interval (catches drift and stalls). Both must
// pass for Stable.
//
// Fewer than two arrivals cannot be judged and are never stable.
func Analyze(arrivals []time.Time, elapsed time.Duration) *Stats {
	n := len(arrivals)
	stats := &Stats{FramesReceived: n, Duration: elapsed}

	if n == 0 || elapsed <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / elapsed.Seconds()
	if n < 2 {
		return stats
	}

	expectedInterval := 1.0 / stats.FPSMean

	var (
		intervals     int
		fpsSumSquares float64
		jitterSum     float64
	)
	stats.FPSMin = math.Inf(1)

	for i := 1; i < n; i++ {
		interval := arrivals[i].Sub(arrivals[i-1]).Seconds()
		if interval <= 0 {
			continue
		}
		intervals++

		fps := 1.0 / interval
		if fps < stats.FPSMin {
			stats.FPSMin = fps
		}
		if fps > stats.FPSMax {
			stats.FPSMax = fps
		}
		diff := fps - stats.FPSMean
		fpsSumSquares += diff * diff

		jitter := math.Abs(interval - expectedInterval)
		jitterSum += jitter
		if jitter > stats.JitterMax {
			stats.JitterMax = jitter
		}
	}

	if intervals == 0 {
		stats.FPSMin = 0
		return stats
	}

	stats.FPSStdDev = math.Sqrt(fpsSumSquares / float64(intervals))
	stats.JitterMean = jitterSum / float64(intervals)

	spreadOK := stats.FPSStdDev < stats.FPSMean*fpsSpreadLimit
	jitterOK := stats.JitterMean < expectedInterval*jitterLimit
	stats.Stable = spreadOK && jitterOK

	return stats
}
