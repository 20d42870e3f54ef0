package mesh

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Strategy selects how unstructured blocks are searched.
type Strategy uint8

const (
	Tree       Strategy = iota // kd-tree over cell centroids
	Exhaustive                 // Scan every cell in id order
)

// ParseStrategy maps a config name to a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "tree", "":
		return Tree, nil
	case "exhaustive":
		return Exhaustive, nil
	default:
		return Tree, fmt.Errorf("mesh: unknown locator strategy %q", name)
	}
}

func (s Strategy) String() string {
	if s == Exhaustive {
		return "exhaustive"
	}
	return "tree"
}

// Locator finds cells of one block and computes interpolation weights.
//
// Find performs a full search. Evaluate recomputes the location of p against
// a single cell and fails if p lies outside it or the cell is degenerate.
// Prepare loads the geometry of a cell ahead of the next Evaluate; it
// reports false for an id that is not a cell of the block.
type Locator interface {
	Block() *Block
	Find(p r3.Vec, tol float64) (Location, bool)
	Evaluate(cell int, p r3.Vec, tol float64) (Location, bool)
	Prepare(cell int) bool
	Gradient(loc Location, data []r3.Vec) (Jacobian, bool)
}

// NewLocator returns the locator for b. For unstructured blocks searched
// with the Tree strategy, shared is reused when non-nil and otherwise a new
// index is built; the index in use is returned so that callers can share it
// with a geometrically identical block.
func NewLocator(b *Block, strategy Strategy, shared *Index) (Locator, *Index, error) {
	if err := b.Validate(); err != nil {
		return nil, nil, err
	}
	switch b.Kind {
	case Structured:
		return newGridLocator(b), nil, nil
	case Unstructured:
		idx := shared
		if strategy == Tree && idx == nil {
			idx = NewIndex(b)
		}
		if strategy == Exhaustive {
			idx = nil
		}
		return newTetraLocator(b, idx), idx, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown kind %v", ErrInvalidBlock, b.Kind)
	}
}
