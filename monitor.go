package gazecapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// ErrNoMonitor is returned when no usable monitor geometry can be
// detected. The operator can always supply dimensions manually instead.
var ErrNoMonitor = errors.New("gaze-capture: no connected monitor with physical dimensions found")

var (
	// "1920x1080+0+0": the active mode with its screen offset
	xrandrModeRe = regexp.MustCompile(`(\d+)x(\d+)\+\d+\+\d+`)
	// "344mm x 194mm": the physical panel size
	xrandrSizeRe = regexp.MustCompile(`(\d+)mm x (\d+)mm`)
)

// DetectMonitor discovers the monitor's pixel mode and physical size by
// querying xrandr. The primary output wins; without a primary, the first
// connected output that reports both mode and physical size is used.
//
// Gaze samples are only interpretable with the monitor geometry attached,
// so detection failure is an error, not a silent default; the caller
// falls back to operator-supplied dimensions.
func DetectMonitor(ctx context.Context) (MonitorGeometry, error) {
	out, err := exec.CommandContext(ctx, "xrandr", "--query").Output()
	if err != nil {
		return MonitorGeometry{}, fmt.Errorf("gaze-capture: xrandr query failed: %w", err)
	}

	geom, err := parseXrandr(string(out))
	if err != nil {
		return MonitorGeometry{}, err
	}

	slog.Info("gaze-capture: monitor detected", "geometry", geom.String())
	return geom, nil
}

// parseXrandr extracts geometry from `xrandr --query` output.
//
// Typical line:
//
//	eDP-1 connected primary 1920x1080+0+0 (normal left ...) 344mm x 194mm
//
// Matching on " connected " (with surrounding spaces) keeps
// "disconnected" lines out. Outputs that do not report a physical size
// (projectors commonly report 0mm or nothing) are skipped.
func parseXrandr(output string) (MonitorGeometry, error) {
	var fallback MonitorGeometry
	haveFallback := false

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, " connected ") {
			continue
		}

		geom, ok := parseXrandrLine(line)
		if !ok {
			continue
		}

		if strings.Contains(line, " connected primary ") {
			return geom, nil
		}
		if !haveFallback {
			fallback = geom
			haveFallback = true
		}
	}

	if haveFallback {
		return fallback, nil
	}
	return MonitorGeometry{}, ErrNoMonitor
}

// parseXrandrLine pulls mode and physical size out of one output line.
func parseXrandrLine(line string) (MonitorGeometry, bool) {
	mode := xrandrModeRe.FindStringSubmatch(line)
	size := xrandrSizeRe.FindStringSubmatch(line)
	if mode == nil || size == nil {
		return MonitorGeometry{}, false
	}

	geom := MonitorGeometry{
		WidthPx:  mustAtoi(mode[1]),
		HeightPx: mustAtoi(mode[2]),
		WidthMM:  mustAtoi(size[1]),
		HeightMM: mustAtoi(size[2]),
	}
	if !geom.Valid() {
		return MonitorGeometry{}, false
	}
	return geom, true
}

// mustAtoi converts regexp-validated digits; the patterns only capture
// \d+ so failure is impossible.
func mustAtoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
