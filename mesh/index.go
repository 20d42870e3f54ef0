package mesh

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Index is a kd-tree over cell centroids of an unstructured block.
// It depends on geometry only, so blocks with identical geometry share it.
type Index struct {
	tree  *kdtree.Tree
	reach float64 // Largest centroid to vertex distance
	cells int
}

// NewIndex builds the centroid tree for b.
func NewIndex(b *Block) *Index {
	pts := make(centroids, len(b.Cells))
	var reach float64
	for c, cell := range b.Cells {
		var sum r3.Vec
		for _, id := range cell {
			sum = r3.Add(sum, b.Points[id])
		}
		ctr := r3.Scale(0.25, sum)
		for _, id := range cell {
			reach = math.Max(reach, r3.Norm(r3.Sub(b.Points[id], ctr)))
		}
		pts[c] = centroid{p: ctr, cell: c}
	}

	idx := &Index{reach: reach, cells: len(b.Cells)}
	if len(pts) > 0 {
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

// Len returns the number of indexed cells.
func (x *Index) Len() int { return x.cells }

// Candidates appends to buf the cells whose centroid is close enough to p for
// the cell to contain it, nearest first. Ties are broken by cell id so the
// order is stable.
func (x *Index) Candidates(p r3.Vec, tol float64, buf []int) []int {
	buf = buf[:0]
	if x == nil || x.tree == nil {
		return buf
	}
	r := x.reach + tol
	keep := kdtree.NewDistKeeper(r * r)
	x.tree.NearestSet(keep, centroid{p: p, cell: -1})

	found := make([]kdtree.ComparableDist, 0, len(keep.Heap))
	for _, cd := range keep.Heap {
		if cd.Comparable == nil {
			continue
		}
		found = append(found, cd)
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Dist != found[j].Dist {
			return found[i].Dist < found[j].Dist
		}
		return found[i].Comparable.(centroid).cell < found[j].Comparable.(centroid).cell
	})
	for _, cd := range found {
		buf = append(buf, cd.Comparable.(centroid).cell)
	}
	return buf
}

// centroid is a kdtree.Comparable cell centre.
type centroid struct {
	p    r3.Vec
	cell int
}

func (c centroid) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	q := b.(centroid)
	switch d {
	case 0:
		return c.p.X - q.p.X
	case 1:
		return c.p.Y - q.p.Y
	case 2:
		return c.p.Z - q.p.Z
	}
	panic("mesh: illegal dimension")
}

func (c centroid) Dims() int { return 3 }

// Distance returns the squared euclidean distance.
func (c centroid) Distance(b kdtree.Comparable) float64 {
	d := r3.Sub(c.p, b.(centroid).p)
	return r3.Dot(d, d)
}

type centroids []centroid

func (c centroids) Index(i int) kdtree.Comparable { return c[i] }
func (c centroids) Len() int                      { return len(c) }
func (c centroids) Pivot(d kdtree.Dim) int        { return plane{centroids: c, Dim: d}.Pivot() }
func (c centroids) Slice(start, end int) kdtree.Interface {
	return c[start:end]
}

// plane sorts centroids along one dimension for median selection.
type plane struct {
	kdtree.Dim
	centroids
}

func (p plane) Less(i, j int) bool {
	return p.centroids[i].Compare(p.centroids[j], p.Dim) < 0
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.centroids = p.centroids[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.centroids[i], p.centroids[j] = p.centroids[j], p.centroids[i]
}
