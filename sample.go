package rtio

import "math"

// Sample is a single interleaved stereo frame.
type Sample struct {
	Left  int16
	Right int16
}

// Mono returns a sample with the same value in both channels.
func Mono(v int16) Sample {
	return Sample{Left: v, Right: v}
}

// Channel returns the value of channel i, 0 is left.
func (s Sample) Channel(i int) int16 {
	if i == 0 {
		return s.Left
	}
	return s.Right
}

// Add mixes o into s, saturating at the int16 range.
func (s Sample) Add(o Sample) Sample {
	return Sample{
		Left:  clamp(float64(s.Left) + float64(o.Left)),
		Right: clamp(float64(s.Right) + float64(o.Right)),
	}
}

// Scale multiplies both channels by f, saturating at the int16 range.
func (s Sample) Scale(f float64) Sample {
	return Sample{
		Left:  clamp(float64(s.Left) * f),
		Right: clamp(float64(s.Right) * f),
	}
}

func clamp(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}
