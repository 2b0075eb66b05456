package nina

import (
	"fmt"
	"time"
)

// FormatFlipCountdown renders a time-to-flip value (hours) as zero-padded
// HH:MM. The minute count is truncated, not rounded: 1.99 hours is "01:59".
func FormatFlipCountdown(hours float64) string {
	totalMinutes := int(hours * 60.0)
	return fmt.Sprintf("%02d:%02d", totalMinutes/60, totalMinutes%60)
}

// FormatFlipCountdownClock renders the countdown plus the local wall-clock
// time at which the flip lands, based on the current instant.
func FormatFlipCountdownClock(hours float64) string {
	return FormatFlipCountdownAt(hours, time.Now())
}

// FormatFlipCountdownAt is FormatFlipCountdownClock with an injected "now"
// so callers (and tests) can pin the clock.
func FormatFlipCountdownAt(hours float64, now time.Time) string {
	flipAt := now.Add(time.Duration(hours * 3600.0 * float64(time.Second)))
	return fmt.Sprintf("%s (at %s)", FormatFlipCountdown(hours), flipAt.Local().Format("15:04:05"))
}
