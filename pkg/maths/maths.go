// Package maths converts engine-reported floats into integers.
package maths

import (
	"math"
)

// RoundToInt rounds half away from zero. NaN and infinities yield 0.
func RoundToInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}

	return int(math.Round(v))
}

// RoundPtr rounds an optional value, keeping nil as nil.
func RoundPtr(v *float64) *int {
	if v == nil {
		return nil
	}

	r := RoundToInt(*v)

	return &r
}
