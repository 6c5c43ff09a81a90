package timecode

import (
	"fmt"
	"math"
	"strings"
)

// Format renders seconds as MM:SS, or H:MM:SS once the value reaches an hour.
// Fractions are truncated so a frame inside second N still reads as N.
func Format(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

// Parse accepts H:MM:SS, MM:SS or raw seconds.
func Parse(value string) (float64, error) {
	value = strings.TrimSpace(value)
	switch strings.Count(value, ":") {
	case 2:
		var hours, minutes, seconds int
		if n, err := fmt.Sscanf(value, "%d:%d:%d", &hours, &minutes, &seconds); n == 3 && err == nil {
			return float64(hours*3600 + minutes*60 + seconds), nil
		}
	case 1:
		var minutes, seconds int
		if n, err := fmt.Sscanf(value, "%d:%d", &minutes, &seconds); n == 2 && err == nil {
			return float64(minutes*60 + seconds), nil
		}
	case 0:
		var secs float64
		if n, err := fmt.Sscanf(value, "%f", &secs); n == 1 && err == nil {
			return secs, nil
		}
	}

	return 0, fmt.Errorf("expected H:MM:SS, MM:SS or seconds, got %q", value)
}
