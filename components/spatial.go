package components

import "gonum.org/v1/gonum/spatial/r3"

// Position is a particle's location in space and time.
type Position struct {
	X, Y, Z, T float64
}

// Vec returns the spatial part.
func (p *Position) Vec() r3.Vec { return r3.Vec{X: p.X, Y: p.Y, Z: p.Z} }

// X4 returns (x, y, z, t).
func (p *Position) X4() [4]float64 { return [4]float64{p.X, p.Y, p.Z, p.T} }

// Set assigns (x, y, z, t).
func (p *Position) Set(x [4]float64) { p.X, p.Y, p.Z, p.T = x[0], x[1], x[2], x[3] }

// Spin tracks the local rotation of the flow along a particle's path.
type Spin struct {
	Vorticity       r3.Vec
	Rotation        float64 // Accumulated rotation angle (radians)
	AngularVelocity float64 // Half the vorticity projected on the velocity direction
	Time            float64 // Time of the AngularVelocity sample
	Sampled         bool    // False until the first sample
}
