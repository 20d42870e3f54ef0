package tracer

import (
	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/exchange"
	"github.com/pthm-cable/tracer/field"
	"github.com/pthm-cable/tracer/mesh"
	"gonum.org/v1/gonum/spatial/r3"
)

func toRecord(pos *components.Position, tr *components.Tracer, sp *components.Spin) exchange.Record {
	return exchange.Record{
		ID:              tr.ID,
		SourceID:        tr.SourceID,
		InjectedPointID: tr.InjectedPointID,
		InjectedStepID:  tr.InjectedStepID,
		X:               pos.X4(),
		Age:             tr.Age,
		TimeStepAge:     tr.TimeStepAge,
		ErrorCode:       int(tr.ErrorCode),
		Speed:           tr.Speed,
		State:           uint8(tr.State),
		Step:            tr.Step,
		Vorticity:       [3]float64{sp.Vorticity.X, sp.Vorticity.Y, sp.Vorticity.Z},
		Rotation:        sp.Rotation,
		AngularVelocity: sp.AngularVelocity,
		SpinTime:        sp.Time,
		Sampled:         sp.Sampled,
	}
}

// fromRecord rebuilds a particle. Cache hints refer to the sender's blocks
// and are not carried.
func fromRecord(r *exchange.Record) (components.Position, components.Tracer, components.Spin) {
	var pos components.Position
	pos.Set(r.X)
	tr := components.Tracer{
		ID:              r.ID,
		SourceID:        r.SourceID,
		InjectedPointID: r.InjectedPointID,
		InjectedStepID:  r.InjectedStepID,
		Hints:           [2]mesh.Hint{mesh.NoHint, mesh.NoHint},
		State:           field.State(r.State),
		Age:             r.Age,
		TimeStepAge:     r.TimeStepAge,
		ErrorCode:       components.ErrorCode(r.ErrorCode),
		Speed:           r.Speed,
		Step:            r.Step,
	}
	sp := components.Spin{
		Vorticity:       r3.Vec{X: r.Vorticity[0], Y: r.Vorticity[1], Z: r.Vorticity[2]},
		Rotation:        r.Rotation,
		AngularVelocity: r.AngularVelocity,
		Time:            r.SpinTime,
		Sampled:         r.Sampled,
	}
	return pos, tr, sp
}
