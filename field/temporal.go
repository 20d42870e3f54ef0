// Package field interpolates velocity fields over mesh blocks and blends two
// snapshots in time.
package field

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/tracer/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrBlockMismatch  = errors.New("field: snapshots have different block counts")
	ErrStaticChanged  = errors.New("field: static block geometry changed")
	ErrMissingVectors = errors.New("field: block lacks the velocity array")
	ErrNotPopulated   = errors.New("field: snapshots not set")
)

// weightEpsilon snaps blend weights near 0 or 1 to the boundary.
const weightEpsilon = 1e-6

// State classifies a point against the two resident snapshots.
type State uint8

const (
	InsideAll  State = iota // Inside at T0 and T1
	OutsideAll              // Outside at both
	OutsideT0               // Inside only at T1
	OutsideT1               // Inside only at T0
)

func (s State) String() string {
	switch s {
	case InsideAll:
		return "inside_all"
	case OutsideAll:
		return "outside_all"
	case OutsideT0:
		return "outside_t0"
	case OutsideT1:
		return "outside_t1"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Options configures a Temporal field.
type Options struct {
	Vectors         string
	Strategy        mesh.Strategy
	ToleranceFactor float64
	StaticMesh      bool // Geometry of unmodified blocks is fixed for the run
}

// Temporal blends the velocity of two snapshots at times T0 <= T1.
type Temporal struct {
	opts   Options
	fields [2]*CachedField
	times  [2]float64
	w      float64

	static    []bool
	allStatic bool
	lastGood  r3.Vec
}

// NewTemporal creates an empty temporal field.
func NewTemporal(opts Options) *Temporal {
	return &Temporal{opts: opts}
}

// Populated reports whether two snapshots are resident.
func (tf *Temporal) Populated() bool { return tf.fields[0] != nil }

// Times returns T0 and T1.
func (tf *Temporal) Times() (float64, float64) { return tf.times[0], tf.times[1] }

// Field returns the evaluator of snapshot i (0 for T0, 1 for T1).
func (tf *Temporal) Field(i int) *CachedField { return tf.fields[i] }

// Static reports whether block i uses the static fast path.
func (tf *Temporal) Static(i int) bool { return tf.static[i] }

// SetSnapshots discards any resident state and loads s0 and s1. Static flags
// are computed here and hold until the next SetSnapshots.
func (tf *Temporal) SetSnapshots(s0, s1 *mesh.Snapshot) error {
	if len(s0.Blocks) != len(s1.Blocks) {
		return fmt.Errorf("%w: %d at t=%g, %d at t=%g", ErrBlockMismatch,
			len(s0.Blocks), s0.Time, len(s1.Blocks), s1.Time)
	}

	static := make([]bool, len(s0.Blocks))
	allStatic := len(static) > 0
	for i, b := range s0.Blocks {
		static[i] = tf.opts.StaticMesh && b.Unmodified
		allStatic = allStatic && static[i]
	}

	f0, err := tf.build(s0, static, nil)
	if err != nil {
		return err
	}
	f1, err := tf.build(s1, static, f0)
	if err != nil {
		return err
	}

	tf.fields = [2]*CachedField{f0, f1}
	tf.times = [2]float64{s0.Time, s1.Time}
	tf.static = static
	tf.allStatic = allStatic
	tf.w = 0
	tf.lastGood = r3.Vec{}
	return nil
}

// Advance moves T1 into the T0 slot and loads next as the new T1. Spatial
// indexes of static blocks carry over.
func (tf *Temporal) Advance(next *mesh.Snapshot) error {
	if !tf.Populated() {
		return ErrNotPopulated
	}
	if len(next.Blocks) != len(tf.static) {
		return fmt.Errorf("%w: %d at t=%g, expected %d", ErrBlockMismatch,
			len(next.Blocks), next.Time, len(tf.static))
	}
	f1, err := tf.build(next, tf.static, tf.fields[1])
	if err != nil {
		return err
	}
	tf.fields[0], tf.fields[1] = tf.fields[1], f1
	tf.times = [2]float64{tf.times[1], next.Time}
	return nil
}

// build registers every block of s. Static blocks share prev's index and
// must be marked unmodified when prev exists.
func (tf *Temporal) build(s *mesh.Snapshot, static []bool, prev *CachedField) (*CachedField, error) {
	f := NewCachedField(tf.opts.Vectors, tf.opts.Strategy, tf.opts.ToleranceFactor)
	for i, b := range s.Blocks {
		var shared *mesh.Index
		if static[i] && prev != nil {
			if !b.Unmodified {
				return nil, fmt.Errorf("%w: block %d at t=%g", ErrStaticChanged, i, s.Time)
			}
			shared = prev.Cache(i).Index()
		}
		if _, err := f.Register(b, static[i], shared); err != nil {
			return nil, fmt.Errorf("snapshot t=%g: %w", s.Time, err)
		}
	}
	return f, nil
}

// Weight returns the blend weight of t in [T0,T1], snapped to 0 or 1 within
// a small epsilon. A zero-length window always weighs 0.
func (tf *Temporal) Weight(t float64) float64 {
	span := tf.times[1] - tf.times[0]
	if span <= 0 {
		return 0
	}
	w := (t - tf.times[0]) / span
	if w < weightEpsilon {
		return 0
	}
	if w > 1-weightEpsilon {
		return 1
	}
	return w
}

// TestPoint classifies x = (x, y, z, t) and returns the velocity that is
// authoritative for the resulting state: the blend when inside both, the
// single available sample when inside one, zero when outside both.
func (tf *Temporal) TestPoint(x [4]float64) (State, r3.Vec) {
	tf.w = tf.Weight(x[3])
	p := r3.Vec{X: x[0], Y: x[1], Z: x[2]}
	f0, f1 := tf.fields[0], tf.fields[1]

	v0, ok := f0.Evaluate(p)
	if ok {
		if tf.static[f0.Current()] {
			v1, _ := f0.FastCompute(f1)
			return tf.settle(InsideAll, blend(v0, v1, tf.w))
		}
		if v1, ok := f1.Evaluate(p); ok {
			return tf.settle(InsideAll, blend(v0, v1, tf.w))
		}
		return tf.settle(OutsideT1, v0)
	}

	if tf.allStatic {
		return tf.settle(OutsideAll, r3.Vec{})
	}
	if v1, ok := f1.Evaluate(p); ok {
		return tf.settle(OutsideT0, v1)
	}
	return tf.settle(OutsideAll, r3.Vec{})
}

func (tf *Temporal) settle(s State, v r3.Vec) (State, r3.Vec) {
	if s != OutsideAll {
		tf.lastGood = v
	}
	return s, v
}

// QuickTest reports containment only.
func (tf *Temporal) QuickTest(x [4]float64) bool {
	p := r3.Vec{X: x[0], Y: x[1], Z: x[2]}
	if tf.fields[0].Contains(p) {
		return true
	}
	if tf.allStatic {
		return false
	}
	return tf.fields[1].Contains(p)
}

// Velocity implements integrator.Field. Points inside either snapshot have a
// velocity.
func (tf *Temporal) Velocity(x [4]float64) (r3.Vec, bool) {
	s, v := tf.TestPoint(x)
	return v, s != OutsideAll
}

// LastGoodVelocity returns the most recent velocity sampled inside a block.
func (tf *Temporal) LastGoodVelocity() r3.Vec { return tf.lastGood }

// LastWeight returns the blend weight of the most recent TestPoint.
func (tf *Temporal) LastWeight() float64 { return tf.w }

// SetHints seeds both evaluators with a particle's cached cells.
func (tf *Temporal) SetHints(h [2]mesh.Hint) {
	tf.fields[0].SetHint(h[0].Block, h[0].Cell)
	tf.fields[1].SetHint(h[1].Block, h[1].Cell)
}

// Hints returns the cached cells of both evaluators.
func (tf *Temporal) Hints() [2]mesh.Hint {
	return [2]mesh.Hint{tf.fields[0].Hint(), tf.fields[1].Hint()}
}

// ClearHints drops the cached cells of both evaluators.
func (tf *Temporal) ClearHints() {
	tf.fields[0].ClearCache()
	tf.fields[1].ClearCache()
}

// Authoritative returns the snapshot whose data describes a point in state s:
// T0 when the point has left T1, T1 otherwise.
func Authoritative(s State) int {
	if s == OutsideT1 {
		return 0
	}
	return 1
}

// Interpolate fetches a named scalar from the authoritative snapshot at the
// location of the most recent TestPoint.
func (tf *Temporal) Interpolate(s State, name string) (float64, bool) {
	if s == OutsideAll {
		return math.NaN(), false
	}
	return tf.fields[Authoritative(s)].Interpolate(name)
}

// Vorticity returns the curl of the authoritative velocity at the location
// of the most recent TestPoint.
func (tf *Temporal) Vorticity(s State) (r3.Vec, bool) {
	if s == OutsideAll {
		return r3.Vec{}, false
	}
	jac, ok := tf.fields[Authoritative(s)].Gradient()
	if !ok {
		return r3.Vec{}, false
	}
	return jac.Curl(), true
}

// ScalarNames lists the scalar arrays shared by every T1 block.
func (tf *Temporal) ScalarNames() []string {
	if !tf.Populated() {
		return nil
	}
	return tf.fields[1].ScalarNames()
}

// Stats sums the query counters of both evaluators.
func (tf *Temporal) Stats() Stats {
	if !tf.Populated() {
		return Stats{}
	}
	return tf.fields[0].Stats().Add(tf.fields[1].Stats())
}

// ResetStats zeroes the query counters of both evaluators.
func (tf *Temporal) ResetStats() {
	if !tf.Populated() {
		return
	}
	tf.fields[0].ResetStats()
	tf.fields[1].ResetStats()
}

// blend returns v0 + w*(v1-v0), exactly v0 when the samples agree.
func blend(v0, v1 r3.Vec, w float64) r3.Vec {
	return r3.Add(v0, r3.Scale(w, r3.Sub(v1, v0)))
}
