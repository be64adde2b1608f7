package ratelimit

import "time"

// Clock returns the current time as nanoseconds since the Unix epoch.
//
// The limiter only looks at differences between readings, so any fixed
// epoch works. Readings from concurrent goroutines should be close to
// non-decreasing; small regressions are tolerated and count as zero
// elapsed time.
type Clock func() int64

func systemClock() int64 {
	return time.Now().UnixNano()
}
