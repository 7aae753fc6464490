// Package render turns the sliding window into drawing instructions on a
// fixed period, independent of how fast samples arrive.
package render

import "serial-plotter/internal/capture"

const (
	// DefaultVisiblePoints is the width of the x-range in samples.
	DefaultVisiblePoints = 200
	// DefaultMargin pads the y-range above and below the data.
	DefaultMargin = 10.0
)

// Range is a closed axis interval.
type Range struct {
	Min float64
	Max float64
}

// Point is one plotted sample: X is the sample's ordinal, Y its value.
type Point struct {
	X float64
	Y float64
}

// Instruction is everything the host needs to draw one frame.
type Instruction struct {
	X      Range
	Y      Range
	Points []Point
}

// Compute builds the instruction for window. The x-range spans the last
// min(visible, len(window)) ordinals; the y-range is the value range of the
// whole window padded by margin. ok is false for an empty window.
func Compute(window []capture.Sample, visible int, margin float64) (Instruction, bool) {
	if len(window) == 0 {
		return Instruction{}, false
	}
	if visible <= 0 {
		visible = DefaultVisiblePoints
	}

	points := make([]Point, len(window))
	lo, hi := window[0].Value, window[0].Value
	for i, s := range window {
		points[i] = Point{X: float64(s.Seq), Y: s.Value}
		lo = min(lo, s.Value)
		hi = max(hi, s.Value)
	}

	last := window[len(window)-1].Seq
	first := window[max(0, len(window)-visible)].Seq
	return Instruction{
		X:      Range{Min: float64(first), Max: float64(last + 1)},
		Y:      Range{Min: lo - margin, Max: hi + margin},
		Points: points,
	}, true
}
