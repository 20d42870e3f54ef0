// Package scenario builds the synthetic analytic flows run by the tracer
// binaries: the field, its per-rank mesh slab and the seed line.
package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/mesh"
	"github.com/pthm-cable/tracer/tracer"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrUnknownField = errors.New("scenario: unknown field")
	ErrUnknownMesh  = errors.New("scenario: unknown mesh kind")
)

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// Center returns the middle of the scenario box.
func Center(sc config.ScenarioConfig) r3.Vec {
	return r3.Scale(0.5, r3.Add(vec(sc.Min), vec(sc.Max)))
}

// Flow returns the analytic velocity field named by sc.Field.
func Flow(sc config.ScenarioConfig) (mesh.Flow, error) {
	switch sc.Field {
	case "uniform":
		return mesh.Uniform(vec(sc.Velocity)), nil
	case "vortex":
		return mesh.Vortex(Center(sc), sc.Omega), nil
	case "shear":
		return mesh.Shear(vec(sc.Velocity), sc.Omega), nil
	case "pulse":
		return mesh.Pulse(vec(sc.Velocity), sc.Period), nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownField, sc.Field)
	}
}

// Exact returns the position at time t of the particle that was at p at
// time t0.
func Exact(sc config.ScenarioConfig, p r3.Vec, t0, t float64) (r3.Vec, error) {
	dt := t - t0
	v := vec(sc.Velocity)
	switch sc.Field {
	case "uniform":
		return r3.Add(p, r3.Scale(dt, v)), nil
	case "vortex":
		c := Center(sc)
		d := r3.Sub(p, c)
		sin, cos := math.Sincos(sc.Omega * dt)
		return r3.Add(c, r3.Vec{X: d.X*cos - d.Y*sin, Y: d.X*sin + d.Y*cos, Z: d.Z}), nil
	case "shear":
		return r3.Vec{
			X: p.X + v.X*dt + sc.Omega*(p.Y*dt+0.5*v.Y*dt*dt),
			Y: p.Y + v.Y*dt,
			Z: p.Z + v.Z*dt,
		}, nil
	case "pulse":
		s := dt
		if sc.Period > 0 {
			w := 2 * math.Pi / sc.Period
			s -= (math.Cos(w*t) - math.Cos(w*t0)) / (2 * w)
		}
		return r3.Add(p, r3.Scale(s, v)), nil
	default:
		return r3.Vec{}, fmt.Errorf("%w %q", ErrUnknownField, sc.Field)
	}
}

// Geometry returns the blocks owned by rank when the box is split along x
// into size slabs.
func Geometry(sc config.ScenarioConfig, rank, size int) ([]*mesh.Block, error) {
	parts := mesh.SplitX(vec(sc.Min), vec(sc.Max), sc.Resolution, size)
	if rank < 0 || rank >= len(parts) {
		return nil, fmt.Errorf("scenario: rank %d has no slab (%d slabs)", rank, len(parts))
	}
	part := parts[rank]
	g := mesh.NewGrid(part.Min, part.Max, part.Cells)
	switch sc.Mesh {
	case "structured":
		return []*mesh.Block{g}, nil
	case "unstructured":
		return []*mesh.Block{mesh.Tetrahedralize(g)}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMesh, sc.Mesh)
	}
}

// Snapshots samples the flow on rank's slab at Windows+1 times.
func Snapshots(cfg *config.Config, rank, size int) ([]*mesh.Snapshot, error) {
	sc := cfg.Scenario
	flow, err := Flow(sc)
	if err != nil {
		return nil, err
	}
	geom, err := Geometry(sc, rank, size)
	if err != nil {
		return nil, err
	}
	return mesh.Series(geom, cfg.Locator.Vectors, flow, 0, sc.Dt, sc.Windows+1), nil
}

// Seeds returns the seed line.
func Seeds(sc config.ScenarioConfig) []r3.Vec {
	return tracer.Line(vec(sc.Seeds.From), vec(sc.Seeds.To), sc.Seeds.Count)
}
