package common

import "math"

// LinearAt samples data at a fractional index using linear interpolation.
// Indices outside [0, len-1] clamp to the nearest end.
func LinearAt(data []float64, index float64) float64 {
	if len(data) == 0 {
		return 0.0
	}

	if index <= 0 {
		return data[0]
	}
	if index >= float64(len(data)-1) {
		return data[len(data)-1]
	}

	i := int(math.Floor(index))
	frac := index - float64(i)

	return data[i] + frac*(data[i+1]-data[i])
}

// ParabolicVertex returns the offset in [-0.5, 0.5]-ish of the vertex of the
// parabola through (-1, y1), (0, y2), (1, y3). ok is false when the three
// points are collinear.
func ParabolicVertex(y1, y2, y3 float64) (offset float64, ok bool) {
	denom := 2 * (y1 - 2*y2 + y3)
	if denom == 0 {
		return 0, false
	}
	return (y1 - y3) / denom, true
}
