// Package mesh holds mesh blocks, point location and the spatial index used
// to find the cell containing a point.
package mesh

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Kind tags the geometry representation of a block.
type Kind uint8

const (
	Structured   Kind = iota // Uniform image grid, located arithmetically
	Unstructured             // Explicit points and tetrahedra
)

func (k Kind) String() string {
	switch k {
	case Structured:
		return "structured"
	case Unstructured:
		return "unstructured"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// ErrInvalidBlock is wrapped by every Validate failure.
var ErrInvalidBlock = errors.New("mesh: invalid block")

// Block is one contiguous mesh partition with point-centred field data.
type Block struct {
	Kind Kind

	// Structured geometry. Dims counts points per axis.
	Origin  r3.Vec
	Spacing r3.Vec
	Dims    [3]int

	// Unstructured geometry.
	Points []r3.Vec
	Cells  [][4]int

	Vectors map[string][]r3.Vec
	Scalars map[string][]float64

	// Unmodified reports that the geometry is identical to the block at the
	// same position in the previous snapshot.
	Unmodified bool
}

// NumPoints returns the number of mesh points.
func (b *Block) NumPoints() int {
	if b.Kind == Structured {
		return b.Dims[0] * b.Dims[1] * b.Dims[2]
	}
	return len(b.Points)
}

// NumCells returns the number of cells.
func (b *Block) NumCells() int {
	if b.Kind == Structured {
		n := 1
		for _, d := range b.Dims {
			if d < 2 {
				return 0
			}
			n *= d - 1
		}
		return n
	}
	return len(b.Cells)
}

// Point returns the coordinates of point id.
func (b *Block) Point(id int) r3.Vec {
	if b.Kind == Structured {
		nx, ny := b.Dims[0], b.Dims[1]
		i := id % nx
		j := (id / nx) % ny
		k := id / (nx * ny)
		return r3.Vec{
			X: b.Origin.X + float64(i)*b.Spacing.X,
			Y: b.Origin.Y + float64(j)*b.Spacing.Y,
			Z: b.Origin.Z + float64(k)*b.Spacing.Z,
		}
	}
	return b.Points[id]
}

// Bounds returns the axis-aligned bounding box of the block.
func (b *Block) Bounds() r3.Box {
	if b.Kind == Structured {
		max := r3.Vec{
			X: b.Origin.X + float64(b.Dims[0]-1)*b.Spacing.X,
			Y: b.Origin.Y + float64(b.Dims[1]-1)*b.Spacing.Y,
			Z: b.Origin.Z + float64(b.Dims[2]-1)*b.Spacing.Z,
		}
		return r3.Box{Min: b.Origin, Max: max}
	}
	if len(b.Points) == 0 {
		return r3.Box{}
	}
	box := r3.Box{Min: b.Points[0], Max: b.Points[0]}
	for _, p := range b.Points[1:] {
		box.Min = r3.Vec{X: math.Min(box.Min.X, p.X), Y: math.Min(box.Min.Y, p.Y), Z: math.Min(box.Min.Z, p.Z)}
		box.Max = r3.Vec{X: math.Max(box.Max.X, p.X), Y: math.Max(box.Max.Y, p.Y), Z: math.Max(box.Max.Z, p.Z)}
	}
	return box
}

// Diagonal returns the length of the bounding box diagonal.
func (b *Block) Diagonal() float64 {
	box := b.Bounds()
	return r3.Norm(r3.Sub(box.Max, box.Min))
}

// Validate checks that geometry and field arrays are consistent.
func (b *Block) Validate() error {
	switch b.Kind {
	case Structured:
		for axis, d := range b.Dims {
			if d < 2 {
				return fmt.Errorf("%w: axis %d has %d points", ErrInvalidBlock, axis, d)
			}
		}
		if b.Spacing.X <= 0 || b.Spacing.Y <= 0 || b.Spacing.Z <= 0 {
			return fmt.Errorf("%w: spacing must be positive, got %v", ErrInvalidBlock, b.Spacing)
		}
	case Unstructured:
		n := len(b.Points)
		for c, cell := range b.Cells {
			for _, id := range cell {
				if id < 0 || id >= n {
					return fmt.Errorf("%w: cell %d references point %d of %d", ErrInvalidBlock, c, id, n)
				}
			}
		}
	default:
		return fmt.Errorf("%w: unknown kind %v", ErrInvalidBlock, b.Kind)
	}

	n := b.NumPoints()
	for name, v := range b.Vectors {
		if len(v) != n {
			return fmt.Errorf("%w: vector array %q has %d values for %d points", ErrInvalidBlock, name, len(v), n)
		}
	}
	for name, s := range b.Scalars {
		if len(s) != n {
			return fmt.Errorf("%w: scalar array %q has %d values for %d points", ErrInvalidBlock, name, len(s), n)
		}
	}
	return nil
}

// Snapshot is every block at one simulation time.
type Snapshot struct {
	Time   float64
	Blocks []*Block
}

// Hint is a cached (block, cell) pair used to seed the next search.
type Hint struct {
	Block int
	Cell  int
}

// NoHint marks the absence of a cached location.
var NoHint = Hint{Block: -1, Cell: -1}

// Valid reports whether the hint names a block and a cell.
func (h Hint) Valid() bool {
	return h.Block >= 0 && h.Cell >= 0
}
