package field

import (
	"fmt"
	"sort"

	"github.com/pthm-cable/tracer/mesh"
	"github.com/pthm-cable/tracer/telemetry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Stats counts how point queries were answered. Diagnostic only.
type Stats struct {
	CellHits    uint64 // Answered by the current cache's hinted cell
	DatasetHits uint64 // Answered by a full search of some block
	Misses      uint64 // Outside every block
}

// Add returns the sum of two counters.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		CellHits:    s.CellHits + o.CellHits,
		DatasetHits: s.DatasetHits + o.DatasetHits,
		Misses:      s.Misses + o.Misses,
	}
}

// CachedField evaluates a named vector array across the blocks of one
// snapshot, probing the block that answered the previous query first.
type CachedField struct {
	vectors         string
	strategy        mesh.Strategy
	toleranceFactor float64

	caches  []*LocationCache
	current int // Index into caches, -1 when none
	stats   Stats
}

// NewCachedField creates an empty evaluator for the named vector array.
func NewCachedField(vectors string, strategy mesh.Strategy, toleranceFactor float64) *CachedField {
	return &CachedField{
		vectors:         vectors,
		strategy:        strategy,
		toleranceFactor: toleranceFactor,
		current:         -1,
	}
}

// Register appends a cache for b. A non-nil shared index built for an
// identical geometry is reused instead of building a new one.
func (f *CachedField) Register(b *mesh.Block, static bool, shared *mesh.Index) (*LocationCache, error) {
	if _, ok := b.Vectors[f.vectors]; !ok {
		return nil, fmt.Errorf("%w: block %d has no %q array", ErrMissingVectors, len(f.caches), f.vectors)
	}
	c, err := newLocationCache(b, f.strategy, f.toleranceFactor, static, shared)
	if err != nil {
		return nil, fmt.Errorf("registering block %d: %w", len(f.caches), err)
	}
	f.caches = append(f.caches, c)
	return c, nil
}

// Len returns the number of registered blocks.
func (f *CachedField) Len() int { return len(f.caches) }

// Cache returns the cache of block i.
func (f *CachedField) Cache(i int) *LocationCache { return f.caches[i] }

// Current returns the index of the block that answered the last query, or -1.
func (f *CachedField) Current() int { return f.current }

// Evaluate interpolates the velocity at p.
func (f *CachedField) Evaluate(p r3.Vec) (r3.Vec, bool) {
	if !f.find(p) {
		return r3.Vec{}, false
	}
	c := f.caches[f.current]
	loc := c.Location()
	return loc.Vector(c.block.Vectors[f.vectors]), true
}

// Contains reports whether p lies in any block, using the same search as
// Evaluate.
func (f *CachedField) Contains(p r3.Vec) bool {
	return f.find(p)
}

// find checks the current cache's hint, then searches the current block and
// every other block in registration order.
func (f *CachedField) find(p r3.Vec) bool {
	if f.current >= 0 {
		if _, ok := f.caches[f.current].CheckLastHit(p); ok {
			f.stats.CellHits++
			telemetry.LocateCellHits.Inc()
			return true
		}
		if _, ok := f.caches[f.current].Locate(p); ok {
			f.stats.DatasetHits++
			telemetry.LocateDatasetHits.Inc()
			return true
		}
	}
	for i, c := range f.caches {
		if i == f.current {
			continue
		}
		if _, ok := c.Locate(p); ok {
			f.current = i
			f.stats.DatasetHits++
			telemetry.LocateDatasetHits.Inc()
			return true
		}
	}
	f.stats.Misses++
	telemetry.LocateMisses.Inc()
	f.current = -1
	return false
}

// LastLocation returns the location found by the last successful query.
func (f *CachedField) LastLocation() mesh.Location {
	if f.current < 0 {
		return mesh.NoLocation
	}
	return f.caches[f.current].Location()
}

// FastCompute interpolates other's vector array at the location last found
// here. Both evaluators must hold the same geometry at the current block;
// other's cache for that block adopts the location as its hint.
func (f *CachedField) FastCompute(other *CachedField) (r3.Vec, bool) {
	if f.current < 0 || f.current >= len(other.caches) {
		return r3.Vec{}, false
	}
	loc := f.caches[f.current].Location()
	if loc.Cell < 0 {
		return r3.Vec{}, false
	}
	oc := other.caches[f.current]
	oc.adopt(loc)
	other.current = f.current
	return loc.Vector(oc.block.Vectors[other.vectors]), true
}

// Interpolate fetches a named scalar at the last location.
func (f *CachedField) Interpolate(name string) (float64, bool) {
	if f.current < 0 {
		return 0, false
	}
	c := f.caches[f.current]
	data, ok := c.block.Scalars[name]
	if !ok {
		return 0, false
	}
	loc := c.Location()
	if loc.Cell < 0 {
		return 0, false
	}
	return loc.Scalar(data), true
}

// Gradient returns the velocity gradient at the last location.
func (f *CachedField) Gradient() (mesh.Jacobian, bool) {
	if f.current < 0 {
		return mesh.Jacobian{}, false
	}
	c := f.caches[f.current]
	return c.gradient(c.block.Vectors[f.vectors])
}

// SetHint makes block current with cell as its hint. An invalid block
// clears the cache.
func (f *CachedField) SetHint(block, cell int) {
	if block < 0 || block >= len(f.caches) {
		f.ClearCache()
		return
	}
	f.current = block
	f.caches[block].SetLastHit(cell)
}

// Hint returns the current block and its hinted cell.
func (f *CachedField) Hint() mesh.Hint {
	if f.current < 0 {
		return mesh.NoHint
	}
	return mesh.Hint{Block: f.current, Cell: f.caches[f.current].LastHit()}
}

// ClearCache drops the current block and every hint.
func (f *CachedField) ClearCache() {
	f.current = -1
	for _, c := range f.caches {
		c.Clear()
	}
}

// Stats returns the query counters.
func (f *CachedField) Stats() Stats { return f.stats }

// ResetStats zeroes the query counters.
func (f *CachedField) ResetStats() { f.stats = Stats{} }

// ScalarNames returns the scalar arrays present on every block.
func (f *CachedField) ScalarNames() []string {
	if len(f.caches) == 0 {
		return nil
	}
	var names []string
	for name := range f.caches[0].block.Scalars {
		all := true
		for _, c := range f.caches[1:] {
			if _, ok := c.block.Scalars[name]; !ok {
				all = false
				break
			}
		}
		if all {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
