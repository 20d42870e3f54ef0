package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// MaxWeights is the largest number of points a cell interpolates from.
const MaxWeights = 8

// Location is the result of a successful locate: the containing cell, its
// parametric coordinates and the interpolation weights of its points.
type Location struct {
	Cell    int
	PCoords r3.Vec
	N       int
	IDs     [MaxWeights]int
	Weights [MaxWeights]float64
}

// NoLocation is the zero state of a cache that has no last hit.
var NoLocation = Location{Cell: -1}

// Vector interpolates a point-centred vector array at the location.
func (l *Location) Vector(data []r3.Vec) r3.Vec {
	var v r3.Vec
	for i := 0; i < l.N; i++ {
		v = r3.Add(v, r3.Scale(l.Weights[i], data[l.IDs[i]]))
	}
	return v
}

// Scalar interpolates a point-centred scalar array at the location.
func (l *Location) Scalar(data []float64) float64 {
	var s float64
	for i := 0; i < l.N; i++ {
		s += l.Weights[i] * data[l.IDs[i]]
	}
	return s
}

func (l Location) String() string {
	return fmt.Sprintf("cell=%d pcoords=(%g,%g,%g)", l.Cell, l.PCoords.X, l.PCoords.Y, l.PCoords.Z)
}
