package tracer

import (
	"context"
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/exchange"
	"github.com/pthm-cable/tracer/field"
	"github.com/pthm-cable/tracer/telemetry"
	"gonum.org/v1/gonum/spatial/r3"
)

type handOffResult uint8

const (
	handDropped handOffResult = iota
	handNudged
	handSent
)

// inject classifies every seed at T0 and adds those inside the domain.
// Ids are reserved collectively, so every rank calls it together.
func (t *Tracer) inject(ctx context.Context) error {
	t0, _ := t.field.Times()
	type candidate struct {
		pos components.Position
		tr  components.Tracer
	}
	var accepted []candidate

	for si, src := range t.seeds {
		for pi, p := range src {
			t.field.ClearHints()
			state, v := t.field.TestPoint([4]float64{p.X, p.Y, p.Z, t0})
			if state == field.OutsideAll {
				t.collector.RecordSeedOutside()
				continue
			}
			accepted = append(accepted, candidate{
				pos: components.Position{X: p.X, Y: p.Y, Z: p.Z, T: t0},
				tr: components.Tracer{
					SourceID:        si,
					InjectedPointID: pi,
					InjectedStepID:  t.window,
					Hints:           t.field.Hints(),
					State:           state,
					Speed:           r3.Norm(v),
					Step:            t.cfg.Integration.InitialStep,
				},
			})
		}
	}

	first, err := t.xch.AssignIDs(ctx, len(accepted))
	if err != nil {
		return fmt.Errorf("assigning particle ids: %w", err)
	}
	for i := range accepted {
		c := &accepted[i]
		c.tr.ID = first + int64(i)
		t.store.add(&c.pos, &c.tr, &components.Spin{})
		t.collector.RecordInjected()
	}
	t.lastInjected = t.window
	t.seedsChanged = false
	return nil
}

// integrate runs the passes of one window. Pass 1 covers every live
// particle; each later pass covers the particles received in the exchange
// before it. Hand-offs stop once no rank has anything to send.
func (t *Tracer) integrate(ctx context.Context) error {
	passes := max(t.cfg.Derived.Passes, 2)
	batch := t.store.entities()
	for pass := 1; ; pass++ {
		t.perf.StartPhase(telemetry.PhaseIntegrate)
		t.collector.RecordPass()
		final := pass >= passes

		var done []ecs.Entity
		for _, e := range batch {
			if !t.advance(e, final) {
				done = append(done, e)
			}
		}
		// Query iteration is complete, safe to remove
		for _, e := range done {
			t.store.remove(e)
		}
		if final {
			return nil
		}

		t.perf.StartPhase(telemetry.PhaseExchange)
		in, err := t.xch.Exchange(ctx)
		if err != nil {
			return err
		}
		if t.xch.LastTotal() == 0 {
			return nil
		}
		t.perf.StartPhase(telemetry.PhaseReceive)
		batch = t.receive(in)
	}
}

// advance integrates one particle to T1 and emits it. It returns false when
// the particle must be removed from this rank.
func (t *Tracer) advance(e ecs.Entity, final bool) bool {
	pos, tr, sp := t.store.get(e)
	_, t1 := t.field.Times()
	eps := t.epsilon()
	maxSubsteps := t.cfg.Integration.MaxSubsteps

	t.checkTime(tr, pos.T, "integration start")
	t.field.SetHints(tr.Hints)
	tr.Substeps = 0
	defer func() { t.collector.RecordSubsteps(tr.Substeps) }()

	for {
		for t1-pos.T > eps {
			if maxSubsteps > 0 && tr.Substeps >= maxSubsteps {
				t.log.Debug("particle exhausted sub-steps", "id", tr.ID, "t", pos.T, "window", t.window)
				t.collector.RecordExhausted()
				return false
			}
			tr.Substeps++
			want := t.step(tr)
			dt := math.Min(t1-pos.T, want)
			res, err := t.integ.Step(t.field, pos.X4(), dt, t.control)
			if err != nil {
				tr.ErrorCode = components.CodeStepFailed
				if t.handOff(pos, tr, sp, dt, final) == handNudged {
					continue
				}
				return false
			}
			pos.Set(res.X)
			tr.Age += res.Taken
			tr.TimeStepAge++
			// A step clipped to the window end and accepted as is says
			// nothing about the step the flow allows.
			if t.cfg.Derived.Adaptive && (dt == want || res.Taken < dt) {
				tr.Step = res.Next
			}
		}
		pos.T = t1

		state, v := t.field.TestPoint(pos.X4())
		if state == field.OutsideAll {
			tr.ErrorCode = components.CodeFinalOutside
			if t.handOff(pos, tr, sp, t.step(tr), final) == handNudged {
				continue
			}
			return false
		}
		return t.finish(pos, tr, sp, state, v)
	}
}

func (t *Tracer) step(tr *components.Tracer) float64 {
	if t.cfg.Derived.Adaptive && tr.Step > 0 {
		return tr.Step
	}
	return t.cfg.Integration.InitialStep
}

func (t *Tracer) epsilon() float64 {
	t0, t1 := t.field.Times()
	return t.cfg.Integration.TimeEpsilon * (t1 - t0)
}

// handOff deals with a particle that has left the local domain. A short
// push along the last good velocity that lands back inside is committed.
// Otherwise the particle is queued for the other ranks, or dropped when
// there are none or no exchange follows.
func (t *Tracer) handOff(pos *components.Position, tr *components.Tracer, sp *components.Spin, dt float64, final bool) handOffResult {
	_, t1 := t.field.Times()
	delta := dt * t.cfg.Integration.NudgeFactor
	v := t.field.LastGoodVelocity()

	nudged := *pos
	nudged.X += v.X * delta
	nudged.Y += v.Y * delta
	nudged.Z += v.Z * delta
	nudged.T += math.Min(delta, t1-pos.T)

	if delta > 0 && t.field.QuickTest(nudged.X4()) {
		tr.Age += nudged.T - pos.T
		*pos = nudged
		tr.ErrorCode = components.CodeNudged
		t.collector.RecordNudged()
		return handNudged
	}

	if t.comm.Size() > 1 && !final {
		switch tr.State {
		case field.OutsideAll:
			tr.ErrorCode = components.CodeSentOutsideAll
		case field.OutsideT0:
			tr.ErrorCode = components.CodeSentOutsideT0
		case field.OutsideT1:
			tr.ErrorCode = components.CodeSentOutsideT1
		}
		t.checkTime(tr, nudged.T, "hand-off")
		t.xch.Collect(toRecord(&nudged, tr, sp))
		t.collector.RecordSent()
		return handSent
	}

	if final && t.comm.Size() > 1 {
		t.log.Debug("particle left during final pass", "id", tr.ID, "t", pos.T, "window", t.window)
	} else {
		t.log.Debug("particle left domain", "id", tr.ID, "t", pos.T, "window", t.window)
	}
	t.collector.RecordLeft()
	return handDropped
}

// receive adds the records that lie inside this rank's domain.
func (t *Tracer) receive(in []exchange.Record) []ecs.Entity {
	var out []ecs.Entity
	for i := range in {
		pos, tr, sp := fromRecord(&in[i])
		t.field.ClearHints()
		state, _ := t.field.TestPoint(pos.X4())
		if state == field.OutsideAll {
			continue
		}
		t.checkTime(&tr, pos.T, "receive")
		tr.State = state
		tr.Hints = t.field.Hints()
		out = append(out, t.store.add(&pos, &tr, &sp))
		t.collector.RecordReceived()
	}
	return out
}

// finish records the final state of a particle and emits it, or removes it
// when it has stagnated.
func (t *Tracer) finish(pos *components.Position, tr *components.Tracer, sp *components.Spin, state field.State, v r3.Vec) bool {
	tr.State = state
	tr.Hints = t.field.Hints()
	tr.Speed = r3.Norm(v)

	if ts := t.cfg.Integration.TerminalSpeed; ts > 0 && tr.Speed <= ts {
		t.log.Debug("particle stagnated", "id", tr.ID, "speed", tr.Speed, "window", t.window)
		t.collector.RecordStagnant()
		return false
	}
	if t.cfg.Output.Vorticity {
		t.spin(sp, state, v, pos.T)
	}
	t.emit(pos, tr, sp, state, v)
	return true
}

// spin samples the vorticity at the particle and integrates its rotation
// with the trapezoid rule.
func (t *Tracer) spin(sp *components.Spin, state field.State, v r3.Vec, time float64) {
	curl, ok := t.field.Vorticity(state)
	if !ok {
		curl = r3.Vec{}
	}
	omega := 0.0
	if speed := r3.Norm(v); speed > 0 {
		omega = 0.5 * r3.Dot(curl, v) / speed
	}
	if sp.Sampled {
		sp.Rotation += 0.5 * (omega + sp.AngularVelocity) * (time - sp.Time)
	}
	sp.Vorticity = curl
	sp.AngularVelocity = omega
	sp.Time = time
	sp.Sampled = true
}

// emit appends the particle to the window's frame. Scalars come from the
// snapshot that is authoritative for state, at the last located cell.
func (t *Tracer) emit(pos *components.Position, tr *components.Tracer, sp *components.Spin, state field.State, v r3.Vec) {
	f := t.frame
	f.Points = append(f.Points, pos.Vec())
	f.IDs = append(f.IDs, tr.ID)
	f.States = append(f.States, state)
	f.Velocity = append(f.Velocity, v)
	if t.cfg.Output.Vorticity {
		f.Spin = append(f.Spin, sp.Vorticity)
	}
	for _, d := range t.fields {
		f.Arrays[d.ID] = append(f.Arrays[d.ID], components.GetTracerValue(tr, sp, d.ID))
	}
	for _, name := range f.Names[len(t.fields):] {
		val, ok := t.field.Interpolate(state, name)
		if !ok {
			val = math.NaN()
		}
		f.Arrays[name] = append(f.Arrays[name], val)
	}
	t.collector.RecordOutput(tr.Speed)
}

func (t *Tracer) checkTime(tr *components.Tracer, time float64, where string) {
	t0, t1 := t.field.Times()
	eps := t.epsilon()
	if time >= t0-eps && time <= t1+eps {
		return
	}
	t.log.Warn("particle time outside window",
		"id", tr.ID, "t", time, "t0", t0, "t1", t1, "window", t.window, "at", where)
	t.collector.RecordTimeWarning()
}
