package utils

import "math"

// RoundToLotSize rounds value down to the nearest multiple of lotSize.
// A non-positive lotSize is treated as "no rounding" (exchange reports no lot
// constraint) and value is returned unchanged.
func RoundToLotSize(value, lotSize float64) float64 {
	if lotSize <= 0 {
		return value
	}
	return math.Floor(value/lotSize) * lotSize
}
