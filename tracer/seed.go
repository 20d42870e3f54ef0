package tracer

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Line returns n seed points evenly spaced from a to b inclusive.
func Line(a, b r3.Vec, n int) []r3.Vec {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []r3.Vec{a}
	}
	xs := floats.Span(make([]float64, n), a.X, b.X)
	ys := floats.Span(make([]float64, n), a.Y, b.Y)
	zs := floats.Span(make([]float64, n), a.Z, b.Z)
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = r3.Vec{X: xs[i], Y: ys[i], Z: zs[i]}
	}
	return out
}
