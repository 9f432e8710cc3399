package warmup

import (
	"testing"
	"time"
)

// cadence builds n arrival times separated by the given intervals, cycling
// through the interval list.
func cadence(n int, intervals ...time.Duration) []time.Time {
	arrivals := make([]time.Time, n)
	t := time.Unix(0, 0)
	for i := 0; i < n; i++ {
		arrivals[i] = t
		t = t.Add(intervals[i%len(intervals)])
	}
	return arrivals
}

// TestAnalyze_SteadyCameraIsStable validates the happy path: a camera
// delivering on a metronome passes both the spread and jitter checks.
func TestAnalyze_SteadyCameraIsStable(t *testing.T) {
	arrivals := cadence(30, time.Second/30)
	stats := Analyze(arrivals, time.Second)

	if !stats.Stable {
		t.Errorf("steady 30fps cadence judged unstable: stddev=%.3f jitter=%.5f",
			stats.FPSStdDev, stats.JitterMean)
	}
	if stats.FPSMean < 29.5 || stats.FPSMean > 30.5 {
		t.Errorf("FPSMean = %.2f, want ~30", stats.FPSMean)
	}
	if stats.FramesReceived != 30 {
		t.Errorf("FramesReceived = %d, want 30", stats.FramesReceived)
	}

	t.Logf("✅ steady cadence: mean=%.2f stddev=%.3f jitter=%.5fs stable=%v",
		stats.FPSMean, stats.FPSStdDev, stats.JitterMean, stats.Stable)
}

// TestAnalyze_BurstyCameraIsUnstable validates the verdict a stuttering
// camera gets: alternating 10ms/90ms intervals average out to ~20 FPS but
// the spread and jitter are far outside the limits.
func TestAnalyze_BurstyCameraIsUnstable(t *testing.T) {
	arrivals := cadence(40, 10*time.Millisecond, 90*time.Millisecond)
	stats := Analyze(arrivals, 2*time.Second)

	if stats.Stable {
		t.Errorf("bursty cadence judged stable: stddev=%.3f jitter=%.5f",
			stats.FPSStdDev, stats.JitterMean)
	}

	t.Logf("✅ bursty cadence rejected: mean=%.2f stddev=%.2f jitter=%.4fs",
		stats.FPSMean, stats.FPSStdDev, stats.JitterMean)
}

// TestAnalyze_EdgeCases pins behavior at the degenerate inputs the warmup
// loop can produce.
func TestAnalyze_EdgeCases(t *testing.T) {
	t.Run("no_frames", func(t *testing.T) {
		stats := Analyze(nil, time.Second)
		if stats.Stable {
			t.Error("zero frames must not be stable")
		}
		if stats.FPSMean != 0 || stats.FramesReceived != 0 {
			t.Errorf("want zeroed stats, got mean=%.2f frames=%d",
				stats.FPSMean, stats.FramesReceived)
		}
	})

	t.Run("single_frame", func(t *testing.T) {
		stats := Analyze([]time.Time{time.Unix(0, 0)}, time.Second)
		if stats.Stable {
			t.Error("one frame must not be stable")
		}
		if stats.FPSMean != 1.0 {
			t.Errorf("FPSMean = %.2f, want 1.0", stats.FPSMean)
		}
	})

	t.Run("duplicate_timestamps", func(t *testing.T) {
		ts := time.Unix(0, 0)
		stats := Analyze([]time.Time{ts, ts, ts}, time.Second)
		if stats.Stable {
			t.Error("zero-length intervals must not be stable")
		}
	})

	t.Logf("✅ degenerate inputs never report a stable camera")
}

// TestAnalyze_BoundsInvariants checks the ordering properties every result
// must satisfy, regardless of cadence.
func TestAnalyze_BoundsInvariants(t *testing.T) {
	cadences := [][]time.Duration{
		{33 * time.Millisecond},
		{20 * time.Millisecond, 40 * time.Millisecond},
		{5 * time.Millisecond, 100 * time.Millisecond, 33 * time.Millisecond},
	}

	for _, ivals := range cadences {
		arrivals := cadence(25, ivals...)
		elapsed := arrivals[len(arrivals)-1].Sub(arrivals[0])
		stats := Analyze(arrivals, elapsed)

		if stats.FPSMin > stats.FPSMax {
			t.Errorf("FPSMin %.2f > FPSMax %.2f for cadence %v", stats.FPSMin, stats.FPSMax, ivals)
		}
		if stats.JitterMean > stats.JitterMax {
			t.Errorf("JitterMean %.5f > JitterMax %.5f for cadence %v", stats.JitterMean, stats.JitterMax, ivals)
		}
		if stats.FPSStdDev < 0 || stats.JitterMean < 0 {
			t.Errorf("negative spread for cadence %v", ivals)
		}
	}

	t.Logf("✅ min ≤ max and mean ≤ max hold across cadences")
}
