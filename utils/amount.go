package utils

import "math"

// ValidAmount reports whether v is a usable money amount: positive and finite
func ValidAmount(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
