package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Flow is an analytic unsteady velocity field.
type Flow func(p r3.Vec, t float64) r3.Vec

// Uniform is a constant velocity everywhere.
func Uniform(v r3.Vec) Flow {
	return func(r3.Vec, float64) r3.Vec { return v }
}

// Vortex rotates rigidly about the z axis through center.
func Vortex(center r3.Vec, omega float64) Flow {
	return func(p r3.Vec, _ float64) r3.Vec {
		d := r3.Sub(p, center)
		return r3.Vec{X: -omega * d.Y, Y: omega * d.X}
	}
}

// Shear adds rate*y along x to a base velocity.
func Shear(base r3.Vec, rate float64) Flow {
	return func(p r3.Vec, _ float64) r3.Vec {
		return r3.Add(base, r3.Vec{X: rate * p.Y})
	}
}

// Pulse scales v by 1 + sin(2πt/period)/2.
func Pulse(v r3.Vec, period float64) Flow {
	return func(_ r3.Vec, t float64) r3.Vec {
		if period <= 0 {
			return v
		}
		return r3.Scale(1+0.5*math.Sin(2*math.Pi*t/period), v)
	}
}

// NewGrid returns a structured block spanning [min,max] with the given
// number of cells per axis.
func NewGrid(min, max r3.Vec, cells [3]int) *Block {
	span := r3.Sub(max, min)
	return &Block{
		Kind:   Structured,
		Origin: min,
		Spacing: r3.Vec{
			X: span.X / float64(cells[0]),
			Y: span.Y / float64(cells[1]),
			Z: span.Z / float64(cells[2]),
		},
		Dims:       [3]int{cells[0] + 1, cells[1] + 1, cells[2] + 1},
		Vectors:    map[string][]r3.Vec{},
		Scalars:    map[string][]float64{},
		Unmodified: true,
	}
}

// kuhn lists the six tetrahedra of a voxel as corner bit patterns
// (x=1, y=2, z=4). Every tetrahedron runs from corner 0 to corner 7 along
// one permutation of the axes, so neighbouring voxels share faces.
var kuhn = [6][4]int{
	{0, 1, 3, 7},
	{0, 1, 5, 7},
	{0, 2, 3, 7},
	{0, 2, 6, 7},
	{0, 4, 5, 7},
	{0, 4, 6, 7},
}

// Tetrahedralize converts a structured block into an unstructured one with
// the same points and six tetrahedra per voxel.
func Tetrahedralize(g *Block) *Block {
	n := g.NumPoints()
	out := &Block{
		Kind:       Unstructured,
		Points:     make([]r3.Vec, n),
		Vectors:    map[string][]r3.Vec{},
		Scalars:    map[string][]float64{},
		Unmodified: g.Unmodified,
	}
	for id := 0; id < n; id++ {
		out.Points[id] = g.Point(id)
	}

	nx, ny := g.Dims[0], g.Dims[1]
	out.Cells = make([][4]int, 0, 6*g.NumCells())
	for k := 0; k < g.Dims[2]-1; k++ {
		for j := 0; j < g.Dims[1]-1; j++ {
			for i := 0; i < g.Dims[0]-1; i++ {
				var corner [8]int
				for c := 0; c < 8; c++ {
					dx, dy, dz := c&1, (c>>1)&1, (c>>2)&1
					corner[c] = (i + dx) + (j+dy)*nx + (k+dz)*nx*ny
				}
				for _, tet := range kuhn {
					out.Cells = append(out.Cells, [4]int{corner[tet[0]], corner[tet[1]], corner[tet[2]], corner[tet[3]]})
				}
			}
		}
	}
	for name, v := range g.Vectors {
		out.Vectors[name] = append([]r3.Vec(nil), v...)
	}
	for name, s := range g.Scalars {
		out.Scalars[name] = append([]float64(nil), s...)
	}
	return out
}

// Sample evaluates f at every point of b at time t and stores it as the
// named vector array, with its magnitude stored as a "speed" scalar.
func Sample(b *Block, name string, f Flow, t float64) {
	n := b.NumPoints()
	vec := make([]r3.Vec, n)
	speed := make([]float64, n)
	for id := 0; id < n; id++ {
		vec[id] = f(b.Point(id), t)
		speed[id] = r3.Norm(vec[id])
	}
	if b.Vectors == nil {
		b.Vectors = map[string][]r3.Vec{}
	}
	if b.Scalars == nil {
		b.Scalars = map[string][]float64{}
	}
	b.Vectors[name] = vec
	b.Scalars["speed"] = speed
}

// Part is one slab of a domain split along x.
type Part struct {
	Min, Max r3.Vec
	Cells    [3]int
}

// SplitX divides [min,max] into parts slabs along x. Neighbouring slabs
// share their boundary plane.
func SplitX(min, max r3.Vec, cells [3]int, parts int) []Part {
	if parts < 1 {
		parts = 1
	}
	if parts > cells[0] {
		parts = cells[0]
	}
	dx := (max.X - min.X) / float64(cells[0])
	out := make([]Part, parts)
	for p := range out {
		lo := p * cells[0] / parts
		hi := (p + 1) * cells[0] / parts
		out[p] = Part{
			Min:   r3.Vec{X: min.X + float64(lo)*dx, Y: min.Y, Z: min.Z},
			Max:   r3.Vec{X: min.X + float64(hi)*dx, Y: max.Y, Z: max.Z},
			Cells: [3]int{hi - lo, cells[1], cells[2]},
		}
	}
	out[parts-1].Max.X = max.X
	return out
}

// Series samples f on copies of geometry at n times starting at t0.
// Geometry slices are shared between snapshots.
func Series(geometry []*Block, name string, f Flow, t0, dt float64, n int) []*Snapshot {
	out := make([]*Snapshot, n)
	for s := range out {
		t := t0 + float64(s)*dt
		snap := &Snapshot{Time: t, Blocks: make([]*Block, len(geometry))}
		for i, g := range geometry {
			b := *g
			b.Vectors = map[string][]r3.Vec{}
			b.Scalars = map[string][]float64{}
			Sample(&b, name, f, t)
			snap.Blocks[i] = &b
		}
		out[s] = snap
	}
	return out
}
