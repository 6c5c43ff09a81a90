package correlation

import (
	"math"

	"github.com/sharetube/review/internal/domain"
)

// frameEpsilon absorbs float error so that a value already on a frame
// boundary is never pushed down to the previous frame.
const frameEpsilon = 1e-6

// Quantize snaps t down to the frame boundary that contains it.
// Unknown frame rates and general comments pass through unchanged.
func Quantize(t, frameRate float64) float64 {
	if t == domain.SentinelGeneral || !isFinite(t) {
		return t
	}
	if frameRate <= 0 || !isFinite(frameRate) {
		return t
	}
	if t < 0 {
		return 0
	}

	frames := math.Floor(t*frameRate + frameEpsilon)
	return frames / frameRate
}

// PositionPercent returns where t sits on a timeline of the given duration,
// in [0, 100]. A zero duration means metadata is not loaded yet.
func PositionPercent(t, duration float64) float64 {
	if duration <= 0 || !isFinite(duration) || !isFinite(t) {
		return 0
	}

	return clamp(t/duration, 0, 1) * 100
}

// TimeFromPointer converts a horizontal pointer offset on the scrub bar into
// a media time. Every click-to-seek and hover preview goes through here.
func TimeFromPointer(px, timelineWidthPx, duration float64) float64 {
	if timelineWidthPx <= 0 || duration <= 0 || !isFinite(px) || !isFinite(duration) {
		return 0
	}

	return clamp(px/timelineWidthPx, 0, 1) * duration
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
