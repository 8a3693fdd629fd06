package math

import "golang.org/x/exp/constraints"

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// ClampOptional clamps f to [low, high] where a zero bound means "no bound".
func ClampOptional[T constraints.Integer | constraints.Float](f, low, high T) T {
	if low != 0 && f < low {
		f = low
	}
	if high != 0 && f > high {
		f = high
	}
	return f
}

// FixedToFloat converts a 24.8 signed fixed-point number to float64.
func FixedToFloat(f int32) float64 {
	return float64(f) / 256.0
}

// FloatToFixed converts a float64 to a 24.8 signed fixed-point number.
func FloatToFixed(f float64) int32 {
	return int32(f * 256.0)
}
