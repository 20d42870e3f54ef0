package main

import (
	"context"
	"io"
	"log/slog"
	"math"
	"sync"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/mesh"
	"github.com/pthm-cable/tracer/scenario"
	"github.com/pthm-cable/tracer/tracer"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Fitness weights.
const (
	lostPenalty = 1.0  // Per particle dropped while its exact path is well inside the box
	innerMargin = 0.05 // Fraction of the box span treated as boundary layer
)

// FitnessEvaluator runs the tracer over analytic flows and scores step
// controls by positional error and work.
type FitnessEvaluator struct {
	params     *ParamVector
	flows      []string
	baseConfig *config.Config
	accuracy   float64 // Mean error that costs as much as one substep per particle window
	cost       float64 // Weight of substeps per particle window

	snaps map[string][]*mesh.Snapshot

	// Last evaluation
	mu        sync.Mutex
	lastError float64
	lastSteps float64
}

// NewFitnessEvaluator creates a new evaluator. Snapshots for every flow are
// sampled once up front.
func NewFitnessEvaluator(params *ParamVector, flows []string, baseCfg *config.Config, accuracy, cost float64) (*FitnessEvaluator, error) {
	fe := &FitnessEvaluator{
		params:     params,
		flows:      flows,
		baseConfig: baseCfg,
		accuracy:   accuracy,
		cost:       cost,
		snaps:      make(map[string][]*mesh.Snapshot, len(flows)),
	}
	for _, name := range flows {
		cfg := fe.configFor(name)
		snaps, err := scenario.Snapshots(cfg, 0, 1)
		if err != nil {
			return nil, err
		}
		fe.snaps[name] = snaps
	}
	return fe, nil
}

// LastError returns the mean positional error of the most recent evaluation.
func (fe *FitnessEvaluator) LastError() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastError
}

// LastSubsteps returns the mean substeps per particle window of the most
// recent evaluation.
func (fe *FitnessEvaluator) LastSubsteps() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastSteps
}

// runResult holds the results from a single flow.
type runResult struct {
	meanError float64
	substeps  float64 // Per particle window
	lost      int
	failed    bool
}

// Evaluate computes fitness for a raw parameter vector (lower = better).
func (fe *FitnessEvaluator) Evaluate(raw []float64) float64 {
	results := make([]runResult, len(fe.flows))
	var wg sync.WaitGroup
	for i, name := range fe.flows {
		wg.Add(1)
		go func(idx int, flow string) {
			defer wg.Done()
			results[idx] = fe.runFlow(raw, flow)
		}(i, name)
	}
	wg.Wait()

	errs := make([]float64, len(results))
	steps := make([]float64, len(results))
	fitness := 0.0
	for i, r := range results {
		if r.failed {
			return math.Inf(1)
		}
		errs[i], steps[i] = r.meanError, r.substeps
		fitness += fe.computeFitness(r)
	}

	n := float64(len(results))
	fe.mu.Lock()
	fe.lastError = floats.Sum(errs) / n
	fe.lastSteps = floats.Sum(steps) / n
	fe.mu.Unlock()

	return fitness / n
}

func (fe *FitnessEvaluator) computeFitness(r runResult) float64 {
	return r.meanError/fe.accuracy + fe.cost*r.substeps + lostPenalty*float64(r.lost)
}

// configFor returns a copy of the base config set up for one flow.
func (fe *FitnessEvaluator) configFor(flow string) *config.Config {
	cfg := *fe.baseConfig
	cfg.Scenario.Field = flow
	cfg.Injection.ReinjectEvery = 0
	cfg.Output.Dir = ""
	return &cfg
}

// runFlow traces the seed line through one flow and compares every emitted
// particle with the exact trajectory of its seed.
func (fe *FitnessEvaluator) runFlow(raw []float64, flow string) runResult {
	cfg := fe.configFor(flow)
	fe.params.ApplyToConfig(cfg, raw)
	if err := cfg.Refresh(); err != nil {
		return runResult{failed: true}
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	tr, err := tracer.New(cfg, nil, tracer.WithLogger(quiet))
	if err != nil {
		return runResult{failed: true}
	}
	seeds := scenario.Seeds(cfg.Scenario)
	tr.SetSeeds(seeds)

	sc := cfg.Scenario
	lo, hi := inner(sc)
	var sumErr float64
	var samples, substeps, particleWindows, lost int
	sink := tracer.SinkFunc(func(f *tracer.Frame) error {
		ids := f.Array("injected_point_id")
		for i, p := range f.Points {
			want, err := scenario.Exact(sc, seeds[int(ids[i])], 0, f.Time)
			if err != nil {
				return err
			}
			sumErr += r3.Norm(r3.Sub(p, want))
			samples++
		}
		expected := 0
		for _, s := range seeds {
			want, _ := scenario.Exact(sc, s, 0, f.Time)
			if inside(want, lo, hi) {
				expected++
			}
		}
		if expected > f.Len() {
			lost += expected - f.Len()
		}
		substeps += tr.Stats().Substeps
		particleWindows += f.Len()
		return nil
	})
	if err := tr.Run(context.Background(), fe.snaps[flow], sink); err != nil {
		return runResult{failed: true}
	}

	r := runResult{lost: lost}
	if samples > 0 {
		r.meanError = sumErr / float64(samples)
	}
	if particleWindows > 0 {
		r.substeps = float64(substeps) / float64(particleWindows)
	}
	return r
}

// inner returns the box shrunk by innerMargin of its span on every side.
func inner(sc config.ScenarioConfig) (r3.Vec, r3.Vec) {
	min := r3.Vec{X: sc.Min[0], Y: sc.Min[1], Z: sc.Min[2]}
	max := r3.Vec{X: sc.Max[0], Y: sc.Max[1], Z: sc.Max[2]}
	m := r3.Scale(innerMargin, r3.Sub(max, min))
	return r3.Add(min, m), r3.Sub(max, m)
}

func inside(p, lo, hi r3.Vec) bool {
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}
