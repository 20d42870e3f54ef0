// Package integrator advances a point through a time-dependent velocity field
// with explicit Runge-Kutta schemes.
package integrator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrOutOfDomain = errors.New("integrator: no velocity at trial position")
	ErrUnknown     = errors.New("integrator: unknown scheme")
)

// Field supplies the velocity at (x, y, z, t). ok is false where the field
// has no value.
type Field interface {
	Velocity(x [4]float64) (v r3.Vec, ok bool)
}

// Control bounds the step size of adaptive schemes.
type Control struct {
	MinStep  float64
	MaxStep  float64
	MaxError float64
}

// Result is one completed step.
type Result struct {
	X     [4]float64
	Taken float64 // Step actually used, never more than requested
	Next  float64 // Suggested size of the following step
	Error float64 // Local error estimate, 0 for fixed schemes
}

type Integrator interface {
	Name() string
	Adaptive() bool
	Step(f Field, x [4]float64, dt float64, c Control) (Result, error)
}

// New returns the scheme registered under name: rk2, rk4 or rk45.
func New(name string) (Integrator, error) {
	switch name {
	case "rk2":
		return &explicit{name: name, tab: &midpoint}, nil
	case "rk4":
		return &explicit{name: name, tab: &classic}, nil
	case "rk45":
		return &embedded{explicit{name: name, tab: &cashKarp}}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknown, name)
	}
}

// tableau is a Butcher tableau. bStar, when present, gives the embedded
// lower-order solution used for error estimation.
type tableau struct {
	order int
	c     []float64
	a     [][]float64
	b     []float64
	bStar []float64
}

var midpoint = tableau{
	order: 2,
	c:     []float64{0, 0.5},
	a:     [][]float64{nil, {0.5}},
	b:     []float64{0, 1},
}

var classic = tableau{
	order: 4,
	c:     []float64{0, 0.5, 0.5, 1},
	a:     [][]float64{nil, {0.5}, {0, 0.5}, {0, 0, 1}},
	b:     []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
}

// Cash-Karp 5(4).
var cashKarp = tableau{
	order: 5,
	c:     []float64{0, 1.0 / 5, 3.0 / 10, 3.0 / 5, 1, 7.0 / 8},
	a: [][]float64{
		nil,
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{3.0 / 10, -9.0 / 10, 6.0 / 5},
		{-11.0 / 54, 5.0 / 2, -70.0 / 27, 35.0 / 27},
		{1631.0 / 55296, 175.0 / 512, 575.0 / 13824, 44275.0 / 110592, 253.0 / 4096},
	},
	b:     []float64{37.0 / 378, 0, 250.0 / 621, 125.0 / 594, 0, 512.0 / 1771},
	bStar: []float64{2825.0 / 27648, 0, 18575.0 / 48384, 13525.0 / 55296, 277.0 / 14336, 1.0 / 4},
}

type explicit struct {
	name string
	tab  *tableau
	k    []r3.Vec
}

func (e *explicit) Name() string   { return e.name }
func (e *explicit) Adaptive() bool { return false }

func (e *explicit) Step(f Field, x [4]float64, dt float64, _ Control) (Result, error) {
	p, _, err := e.trial(f, x, dt)
	if err != nil {
		return Result{}, err
	}
	return Result{X: p, Taken: dt, Next: dt}, nil
}

// trial evaluates every stage and returns the high-order solution and the
// distance to the embedded solution, if the tableau has one.
func (e *explicit) trial(f Field, x [4]float64, dt float64) ([4]float64, float64, error) {
	tab := e.tab
	if cap(e.k) < len(tab.b) {
		e.k = make([]r3.Vec, len(tab.b))
	}
	k := e.k[:len(tab.b)]
	origin := r3.Vec{X: x[0], Y: x[1], Z: x[2]}

	for i := range k {
		p := origin
		for j, a := range tab.a[i] {
			p = r3.Add(p, r3.Scale(dt*a, k[j]))
		}
		v, ok := f.Velocity([4]float64{p.X, p.Y, p.Z, x[3] + tab.c[i]*dt})
		if !ok {
			return x, 0, fmt.Errorf("%w: stage %d at t=%g", ErrOutOfDomain, i+1, x[3]+tab.c[i]*dt)
		}
		k[i] = v
	}

	var hi, lo r3.Vec
	for i := range k {
		hi = r3.Add(hi, r3.Scale(tab.b[i], k[i]))
		if tab.bStar != nil {
			lo = r3.Add(lo, r3.Scale(tab.bStar[i], k[i]))
		}
	}
	next := r3.Add(origin, r3.Scale(dt, hi))
	var errEst float64
	if tab.bStar != nil {
		errEst = dt * r3.Norm(r3.Sub(hi, lo))
	}
	return [4]float64{next.X, next.Y, next.Z, x[3] + dt}, errEst, nil
}

// embedded adapts the step to keep the local error under Control.MaxError.
type embedded struct {
	explicit
}

const (
	safety    = 0.9
	maxGrowth = 5.0
	minShrink = 0.1
)

func (e *embedded) Adaptive() bool { return true }

// Step shrinks dt until the error estimate is acceptable or dt reaches
// MinStep, then suggests the next step from the accepted error.
func (e *embedded) Step(f Field, x [4]float64, dt float64, c Control) (Result, error) {
	if c.MaxError <= 0 {
		return e.explicit.Step(f, x, dt, c)
	}
	for {
		p, errEst, err := e.trial(f, x, dt)
		if err != nil {
			return Result{}, err
		}
		if errEst <= c.MaxError || dt <= c.MinStep {
			return Result{X: p, Taken: dt, Next: e.grow(dt, errEst, c), Error: errEst}, nil
		}
		shrink := safety * math.Pow(c.MaxError/errEst, 1/float64(e.tab.order-1))
		dt *= math.Max(shrink, minShrink)
		if dt < c.MinStep {
			dt = c.MinStep
		}
	}
}

func (e *embedded) grow(dt, errEst float64, c Control) float64 {
	factor := maxGrowth
	if errEst > 0 {
		factor = math.Min(maxGrowth, safety*math.Pow(c.MaxError/errEst, 1/float64(e.tab.order)))
	}
	next := dt * factor
	if c.MaxStep > 0 && next > c.MaxStep {
		next = c.MaxStep
	}
	if next < c.MinStep {
		next = c.MinStep
	}
	return next
}
