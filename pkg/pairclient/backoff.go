package pairclient

import "time"

// Delay returns the reconnect delay for the given attempt (1-based):
// base × 2^(attempt−1), capped at max. Attempts below 1 get the base delay.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		return base
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}
