package field

import (
	"github.com/pthm-cable/tracer/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

// LocationCache answers point queries for one block at one time. It keeps
// the last cell a point was found in as a hint for the next query.
type LocationCache struct {
	block   *mesh.Block
	locator mesh.Locator
	index   *mesh.Index
	static  bool
	tol     float64

	last int // -1 when there is no hint
	loc  mesh.Location
}

func newLocationCache(b *mesh.Block, strategy mesh.Strategy, toleranceFactor float64, static bool, shared *mesh.Index) (*LocationCache, error) {
	locator, idx, err := mesh.NewLocator(b, strategy, shared)
	if err != nil {
		return nil, err
	}
	return &LocationCache{
		block:   b,
		locator: locator,
		index:   idx,
		static:  static,
		tol:     toleranceFactor * b.Diagonal(),
		last:    -1,
		loc:     mesh.NoLocation,
	}, nil
}

// Block returns the cached block.
func (c *LocationCache) Block() *mesh.Block { return c.block }

// Index returns the spatial index, nil for structured or exhaustive blocks.
func (c *LocationCache) Index() *mesh.Index { return c.index }

// Static reports whether the block geometry is fixed for the run.
func (c *LocationCache) Static() bool { return c.static }

// Tolerance returns the containment tolerance.
func (c *LocationCache) Tolerance() float64 { return c.tol }

// LastHit returns the hinted cell, or -1.
func (c *LocationCache) LastHit() int { return c.last }

// Location returns the last successful location.
func (c *LocationCache) Location() mesh.Location { return c.loc }

// CheckLastHit re-evaluates p against the hinted cell only. A point that has
// left the cell is a miss, not an error, and leaves the hint in place.
func (c *LocationCache) CheckLastHit(p r3.Vec) (mesh.Location, bool) {
	if c.last < 0 {
		return mesh.NoLocation, false
	}
	loc, ok := c.locator.Evaluate(c.last, p, c.tol)
	if !ok {
		return mesh.NoLocation, false
	}
	c.loc = loc
	return loc, true
}

// Locate searches the whole block. A hit becomes the new hint, a miss
// clears it.
func (c *LocationCache) Locate(p r3.Vec) (mesh.Location, bool) {
	loc, ok := c.locator.Find(p, c.tol)
	if !ok {
		c.Clear()
		return mesh.NoLocation, false
	}
	c.last = loc.Cell
	c.loc = loc
	return loc, true
}

// SetLastHit seeds the hint and resolves the cell geometry ahead of the next
// check. Ids outside the block clear the hint.
func (c *LocationCache) SetLastHit(cell int) bool {
	if cell == c.last && cell >= 0 {
		return true
	}
	if !c.locator.Prepare(cell) {
		c.Clear()
		return false
	}
	c.last = cell
	c.loc = mesh.NoLocation
	return true
}

// Clear drops the hint.
func (c *LocationCache) Clear() {
	c.last = -1
	c.loc = mesh.NoLocation
}

// adopt installs a location found against an identical geometry.
func (c *LocationCache) adopt(loc mesh.Location) {
	c.last = loc.Cell
	c.loc = loc
}

// gradient differentiates data at the last location.
func (c *LocationCache) gradient(data []r3.Vec) (mesh.Jacobian, bool) {
	if c.loc.Cell < 0 {
		return mesh.Jacobian{}, false
	}
	return c.locator.Gradient(c.loc, data)
}
