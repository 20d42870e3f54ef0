package mesh

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// degenerateVolume is the relative volume below which a tetrahedron
// is treated as flat.
const degenerateVolume = 1e-12

// tetraGeom is the resolved geometry of one tetrahedron.
type tetraGeom struct {
	cell int
	v    [4]r3.Vec
	e    [3]r3.Vec // Edges from v[0]
	vol6 float64   // Signed six-fold volume
	h    float64   // Longest edge
	flat bool
}

// tetraLocator locates points in tetrahedral cells by barycentric weights.
type tetraLocator struct {
	block *Block
	index *Index
	last  tetraGeom
	buf   []int
}

func newTetraLocator(b *Block, idx *Index) *tetraLocator {
	return &tetraLocator{block: b, index: idx, last: tetraGeom{cell: -1}}
}

func (t *tetraLocator) Block() *Block { return t.block }

func (t *tetraLocator) Find(p r3.Vec, tol float64) (Location, bool) {
	if t.index == nil {
		for c := range t.block.Cells {
			if loc, ok := t.Evaluate(c, p, tol); ok {
				return loc, true
			}
		}
		return NoLocation, false
	}
	t.buf = t.index.Candidates(p, tol, t.buf)
	for _, c := range t.buf {
		if loc, ok := t.Evaluate(c, p, tol); ok {
			return loc, true
		}
	}
	return NoLocation, false
}

func (t *tetraLocator) Evaluate(cell int, p r3.Vec, tol float64) (Location, bool) {
	if !t.Prepare(cell) {
		return NoLocation, false
	}
	g := &t.last
	if g.flat {
		return NoLocation, false
	}

	d := r3.Sub(p, g.v[0])
	w1 := r3.Dot(d, r3.Cross(g.e[1], g.e[2])) / g.vol6
	w2 := r3.Dot(g.e[0], r3.Cross(d, g.e[2])) / g.vol6
	w3 := r3.Dot(g.e[0], r3.Cross(g.e[1], d)) / g.vol6
	w0 := 1 - w1 - w2 - w3

	ptol := tol / g.h
	if w0 < -ptol || w1 < -ptol || w2 < -ptol || w3 < -ptol {
		return NoLocation, false
	}

	loc := Location{Cell: cell, PCoords: r3.Vec{X: w1, Y: w2, Z: w3}, N: 4}
	cells := t.block.Cells[cell]
	w := [4]float64{w0, w1, w2, w3}
	for i := 0; i < 4; i++ {
		loc.IDs[i] = cells[i]
		loc.Weights[i] = w[i]
	}
	return loc, true
}

// Prepare resolves and caches the geometry of cell.
func (t *tetraLocator) Prepare(cell int) bool {
	if cell < 0 || cell >= len(t.block.Cells) {
		return false
	}
	if t.last.cell == cell {
		return true
	}
	g := tetraGeom{cell: cell}
	for i, id := range t.block.Cells[cell] {
		g.v[i] = t.block.Points[id]
	}
	for i := 0; i < 3; i++ {
		g.e[i] = r3.Sub(g.v[i+1], g.v[0])
	}
	for i := 0; i < 4; i++ {
		for j := i + 1; j < 4; j++ {
			g.h = math.Max(g.h, r3.Norm(r3.Sub(g.v[j], g.v[i])))
		}
	}
	g.vol6 = r3.Dot(g.e[0], r3.Cross(g.e[1], g.e[2]))
	g.flat = g.h == 0 || math.Abs(g.vol6) <= degenerateVolume*g.h*g.h*g.h
	t.last = g
	return true
}

func (t *tetraLocator) Gradient(loc Location, data []r3.Vec) (Jacobian, bool) {
	if !t.Prepare(loc.Cell) || t.last.flat {
		return Jacobian{}, false
	}
	var vals [4]r3.Vec
	for i, id := range t.block.Cells[loc.Cell] {
		vals[i] = data[id]
	}
	return tetraGradient(t.last.e, vals)
}
