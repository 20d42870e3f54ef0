package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/tracer/config"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()
	raw := pv.ExtractFromConfig(cfg)
	back := pv.Denormalize(pv.Normalize(raw))
	for i := range raw {
		if math.Abs(back[i]-raw[i]) > 1e-12 {
			t.Errorf("%s: %g != %g", pv.Specs[i].Name, back[i], raw[i])
		}
	}

	other := config.Default()
	pv.ApplyToConfig(other, raw)
	got := pv.ExtractFromConfig(other)
	for i := range raw {
		if math.Abs(got[i]-raw[i]) > 1e-9 {
			t.Errorf("%s: applied %g, extracted %g", pv.Specs[i].Path, raw[i], got[i])
		}
	}
}

func TestApplyClampsAndKeepsStepOrder(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()
	cfg.Integration.MinStep = 0.2
	pv.ApplyToConfig(cfg, []float64{10, 0.01, -20, -1})

	in := cfg.Integration
	if in.InitialStep != 0.2 || in.MaxStep != 0.01 || in.NudgeFactor != 0 {
		t.Errorf("values not clamped: %+v", in)
	}
	if math.Abs(in.MaxError-1e-9) > 1e-21 {
		t.Errorf("max_error = %g, want 1e-9", in.MaxError)
	}
	if in.MinStep > in.MaxStep {
		t.Errorf("min_step %g above max_step %g", in.MinStep, in.MaxStep)
	}
	if err := cfg.Refresh(); err != nil {
		t.Errorf("clamped config invalid: %v", err)
	}
}

// A rigid vortex is linear in space, so the mesh reproduces it exactly and
// positional errors stay at roundoff. The work spent is what the controls
// change.
func TestEvaluateChargesTightControls(t *testing.T) {
	base := config.Default()
	base.Integration.Integrator = "rk45"
	base.Scenario.Windows = 3
	base.Scenario.Resolution = [3]int{8, 8, 2}
	if err := base.Refresh(); err != nil {
		t.Fatal(err)
	}
	pv := NewParamVector()
	fe, err := NewFitnessEvaluator(pv, []string{"vortex"}, base, 1e-4, 1)
	if err != nil {
		t.Fatal(err)
	}

	tight := fe.Evaluate([]float64{0.01, 0.05, -9, 1})
	tightErr, tightSteps := fe.LastError(), fe.LastSubsteps()
	loose := fe.Evaluate([]float64{0.2, 1, -3, 1})
	looseErr, looseSteps := fe.LastError(), fe.LastSubsteps()
	if math.IsInf(tight, 0) || math.IsInf(loose, 0) {
		t.Fatalf("evaluation failed: %g, %g", tight, loose)
	}
	if tightErr > 1e-6 || looseErr > 1e-6 {
		t.Errorf("errors %g and %g, want both below 1e-6", tightErr, looseErr)
	}
	if tightSteps <= looseSteps {
		t.Errorf("tight controls took %g substeps per particle window, loose %g", tightSteps, looseSteps)
	}
	if tight <= loose {
		t.Errorf("tight fitness %g not above loose %g with a substep cost", tight, loose)
	}
}
