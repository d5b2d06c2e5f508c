// Package calc holds small progress arithmetic helpers.
package calc

import (
	"math"
	"time"
)

// Progress calculates the percentage for a given pair of numbers.
func Progress(done, total int64) int {
	if total > 0 {
		return int(math.Round(float64(done) / float64(total) * 100))
	}

	return 0
}

// Remaining extrapolates the time left for remaining units from the average
// time spent per completed unit. It returns false until a unit has completed.
func Remaining(completed, remaining int, elapsed time.Duration) (time.Duration, bool) {
	if completed <= 0 {
		return 0, false
	}

	if remaining <= 0 {
		return 0, true
	}

	perUnit := float64(elapsed) / float64(completed)

	return time.Duration(perUnit * float64(remaining)), true
}
