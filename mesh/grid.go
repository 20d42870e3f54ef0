package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// gridLocator locates points arithmetically in a uniform image grid.
type gridLocator struct {
	block *Block
	cells [3]int // Cells per axis
}

func newGridLocator(b *Block) *gridLocator {
	return &gridLocator{
		block: b,
		cells: [3]int{b.Dims[0] - 1, b.Dims[1] - 1, b.Dims[2] - 1},
	}
}

func (g *gridLocator) Block() *Block { return g.block }

func (g *gridLocator) Find(p r3.Vec, tol float64) (Location, bool) {
	b := g.block
	box := b.Bounds()
	if p.X < box.Min.X-tol || p.X > box.Max.X+tol ||
		p.Y < box.Min.Y-tol || p.Y > box.Max.Y+tol ||
		p.Z < box.Min.Z-tol || p.Z > box.Max.Z+tol {
		return NoLocation, false
	}

	r := [3]float64{
		(p.X - b.Origin.X) / b.Spacing.X,
		(p.Y - b.Origin.Y) / b.Spacing.Y,
		(p.Z - b.Origin.Z) / b.Spacing.Z,
	}
	var ijk [3]int
	var pc [3]float64
	for axis := range r {
		i := int(math.Floor(r[axis]))
		if i < 0 {
			i = 0
		}
		if i > g.cells[axis]-1 {
			i = g.cells[axis] - 1
		}
		ijk[axis] = i
		pc[axis] = clamp01(r[axis] - float64(i))
	}
	return g.location(ijk, pc), true
}

func (g *gridLocator) Evaluate(cell int, p r3.Vec, tol float64) (Location, bool) {
	ijk, ok := g.decompose(cell)
	if !ok {
		return NoLocation, false
	}
	b := g.block
	corner := b.Point(g.pointID(ijk[0], ijk[1], ijk[2]))
	d := r3.Sub(p, corner)
	local := [3]float64{d.X, d.Y, d.Z}
	h := [3]float64{b.Spacing.X, b.Spacing.Y, b.Spacing.Z}

	var pc [3]float64
	for axis := range pc {
		u := local[axis] / h[axis]
		ptol := tol / h[axis]
		if u < -ptol || u > 1+ptol {
			return NoLocation, false
		}
		pc[axis] = clamp01(u)
	}
	return g.location(ijk, pc), true
}

func (g *gridLocator) Prepare(cell int) bool {
	_, ok := g.decompose(cell)
	return ok
}

// Gradient differentiates the trilinear interpolant at loc.
func (g *gridLocator) Gradient(loc Location, data []r3.Vec) (Jacobian, bool) {
	if _, ok := g.decompose(loc.Cell); !ok || loc.N != 8 {
		return Jacobian{}, false
	}
	b := g.block
	h := [3]float64{b.Spacing.X, b.Spacing.Y, b.Spacing.Z}
	pc := [3]float64{loc.PCoords.X, loc.PCoords.Y, loc.PCoords.Z}

	var jac Jacobian
	for c := 0; c < 8; c++ {
		v := data[loc.IDs[c]]
		comp := [3]float64{v.X, v.Y, v.Z}
		for axis := 0; axis < 3; axis++ {
			dn := shapeDerivative(c, axis, pc) / h[axis]
			for i := 0; i < 3; i++ {
				jac[i][axis] += dn * comp[i]
			}
		}
	}
	return jac, true
}

// location fills trilinear weights. Corner c uses bit 1 for x, 2 for y, 4 for z.
func (g *gridLocator) location(ijk [3]int, pc [3]float64) Location {
	loc := Location{
		Cell:    ijk[0] + ijk[1]*g.cells[0] + ijk[2]*g.cells[0]*g.cells[1],
		PCoords: r3.Vec{X: pc[0], Y: pc[1], Z: pc[2]},
		N:       8,
	}
	for c := 0; c < 8; c++ {
		dx, dy, dz := c&1, (c>>1)&1, (c>>2)&1
		loc.IDs[c] = g.pointID(ijk[0]+dx, ijk[1]+dy, ijk[2]+dz)
		loc.Weights[c] = linear(dx, pc[0]) * linear(dy, pc[1]) * linear(dz, pc[2])
	}
	return loc
}

func (g *gridLocator) decompose(cell int) ([3]int, bool) {
	nx, ny := g.cells[0], g.cells[1]
	if cell < 0 || cell >= nx*ny*g.cells[2] {
		return [3]int{}, false
	}
	return [3]int{cell % nx, (cell / nx) % ny, cell / (nx * ny)}, true
}

func (g *gridLocator) pointID(i, j, k int) int {
	nx, ny := g.block.Dims[0], g.block.Dims[1]
	return i + j*nx + k*nx*ny
}

func linear(bit int, u float64) float64 {
	if bit == 1 {
		return u
	}
	return 1 - u
}

// shapeDerivative is d(N_c)/d(pc[axis]) for the trilinear shape function of corner c.
func shapeDerivative(c, axis int, pc [3]float64) float64 {
	d := 1.0
	for a := 0; a < 3; a++ {
		bit := (c >> a) & 1
		if a == axis {
			if bit == 0 {
				d = -d
			}
			continue
		}
		d *= linear(bit, pc[a])
	}
	return d
}

func clamp01(u float64) float64 {
	if u < 0 {
		return 0
	}
	if u > 1 {
		return 1
	}
	return u
}
