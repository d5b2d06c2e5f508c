// Package ptr converts between values and optional values.
package ptr

// Of returns a pointer to v.
func Of[T any](v T) *T { return &v }

// Deref returns *p, or the zero value of T when p is nil.
func Deref[T any](p *T) T {
	if p == nil {
		var zero T

		return zero
	}

	return *p
}

// Positive returns a pointer to v, or nil when v is not above zero. Engines
// report unknown quantities as zero.
func Positive[T ~int | ~int64 | ~float64](v T) *T {
	if v <= 0 {
		return nil
	}

	return &v
}
