package util

import (
	"fmt"
	"math"
)

// FormatSpeed renders a progress line like "42%   1.50 Mbps".
// Units switch at 1024 based thresholds.
func FormatSpeed(percent, bytesPerSecond float64) string {
	value, unit := bytesPerSecond, "bps"

	switch {
	case bytesPerSecond >= 1024*1024:
		value, unit = bytesPerSecond/(1024*1024), "Mbps"
	case bytesPerSecond >= 1024:
		value, unit = bytesPerSecond/1024, "Kbps"
	}

	return fmt.Sprintf("%d%%   %.2f %s", int(math.Round(percent*100)), value, unit)
}

// Round2 rounds v to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
