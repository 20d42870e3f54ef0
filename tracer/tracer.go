// Package tracer advects massless particles through a sequence of velocity
// snapshots, one window [T0,T1] at a time. Ranks that each own part of the
// domain hand particles to one another through an exchange.Communicator.
package tracer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/exchange"
	"github.com/pthm-cable/tracer/field"
	"github.com/pthm-cable/tracer/integrator"
	"github.com/pthm-cable/tracer/mesh"
	"github.com/pthm-cable/tracer/telemetry"
	"gonum.org/v1/gonum/spatial/r3"
)

// Option configures a Tracer.
type Option func(*Tracer)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option { return func(t *Tracer) { t.log = l } }

// WithPerf enables phase timing.
func WithPerf(p *telemetry.PerfCollector) Option { return func(t *Tracer) { t.perf = p } }

// WithCollector replaces the window statistics collector.
func WithCollector(c *telemetry.Collector) Option { return func(t *Tracer) { t.collector = c } }

// WithOutput writes window statistics and timings after every window.
func WithOutput(om *telemetry.OutputManager) Option { return func(t *Tracer) { t.output = om } }

// Tracer owns one rank's particles and velocity field.
type Tracer struct {
	cfg     *config.Config
	comm    exchange.Communicator
	xch     *exchange.Exchanger
	integ   integrator.Integrator
	control integrator.Control
	opts    field.Options
	field   *field.Temporal
	store   *store
	fields  []components.FieldDescriptor

	log       *slog.Logger
	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	output    *telemetry.OutputManager

	seeds        [][]r3.Vec
	seedsChanged bool
	window       int
	lastInjected int            // Window of the last injection, -1 before the first
	resident     *mesh.Snapshot // T1 of the previous window

	frame *Frame
	stats telemetry.WindowStats
}

// New creates a tracer for one rank. A nil comm runs a single rank.
func New(cfg *config.Config, comm exchange.Communicator, opts ...Option) (*Tracer, error) {
	if cfg.Integration.Direction != "forward" {
		return nil, fmt.Errorf("%w: direction %q", ErrBackward, cfg.Integration.Direction)
	}
	integ, err := integrator.New(cfg.Integration.Integrator)
	if err != nil {
		return nil, err
	}
	strategy, err := mesh.ParseStrategy(cfg.Locator.Strategy)
	if err != nil {
		return nil, err
	}
	if comm == nil {
		comm = exchange.Single{}
	}

	t := &Tracer{
		cfg:   cfg,
		comm:  comm,
		xch:   exchange.NewExchanger(comm),
		integ: integ,
		control: integrator.Control{
			MinStep:  cfg.Integration.MinStep,
			MaxStep:  cfg.Integration.MaxStep,
			MaxError: cfg.Integration.MaxError,
		},
		opts: field.Options{
			Vectors:         cfg.Locator.Vectors,
			Strategy:        strategy,
			ToleranceFactor: cfg.Locator.ToleranceFactor,
			StaticMesh:      cfg.Locator.StaticMesh,
		},
		store:        newStore(),
		fields:       components.TracerFieldDescriptors(cfg.Output.Vorticity),
		log:          slog.Default(),
		lastInjected: -1,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.collector == nil {
		t.collector = telemetry.NewCollector(comm.Rank())
	}
	t.log = t.log.With("rank", comm.Rank())
	t.field = field.NewTemporal(t.opts)
	return t, nil
}

// SetSeeds replaces the seed sources. Particles are injected from them at
// the start of the next window. Every rank must be given the same sources.
func (t *Tracer) SetSeeds(sources ...[]r3.Vec) {
	t.seeds = make([][]r3.Vec, len(sources))
	for i, src := range sources {
		t.seeds[i] = append([]r3.Vec(nil), src...)
	}
	t.seedsChanged = true
}

// Len returns the number of live particles on this rank.
func (t *Tracer) Len() int { return t.store.len() }

// Windows returns the number of completed windows.
func (t *Tracer) Windows() int { return t.window }

// Stats returns the statistics of the last completed window.
func (t *Tracer) Stats() telemetry.WindowStats { return t.stats }

// Reset drops every particle and restarts window and id counters. Seeds are
// kept and injected again on the next window.
func (t *Tracer) Reset() {
	t.store.reset()
	t.xch.Reset()
	t.field = field.NewTemporal(t.opts)
	t.window = 0
	t.lastInjected = -1
	t.resident = nil
	t.stats = telemetry.WindowStats{}
}

// Run advances the particles through every consecutive pair of snapshots and
// passes each window's frame to sink.
func (t *Tracer) Run(ctx context.Context, snaps []*mesh.Snapshot, sink Sink) error {
	if err := checkTimes(snaps); err != nil {
		return err
	}
	if sink == nil {
		sink = Discard
	}
	for i := 1; i < len(snaps); i++ {
		f, err := t.Window(ctx, snaps[i-1], snaps[i])
		if err != nil {
			return fmt.Errorf("window %d [%g,%g]: %w", t.window, snaps[i-1].Time, snaps[i].Time, err)
		}
		if err := sink.Write(f); err != nil {
			return fmt.Errorf("writing window %d: %w", f.Window, err)
		}
	}
	return nil
}

func checkTimes(snaps []*mesh.Snapshot) error {
	distinct := map[float64]struct{}{}
	for _, s := range snaps {
		distinct[s.Time] = struct{}{}
	}
	if len(distinct) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewTimeSteps, len(distinct))
	}
	for i := 1; i < len(snaps); i++ {
		if snaps[i].Time <= snaps[i-1].Time {
			return fmt.Errorf("%w: t=%g follows t=%g", ErrNonIncreasing, snaps[i].Time, snaps[i-1].Time)
		}
	}
	return nil
}

// Window advances every particle from s0.Time to s1.Time. When s0 is the
// T1 snapshot of the previous window the field is advanced in place;
// otherwise both snapshots are loaded afresh.
func (t *Tracer) Window(ctx context.Context, s0, s1 *mesh.Snapshot) (*Frame, error) {
	if s1.Time <= s0.Time {
		return nil, fmt.Errorf("%w: t=%g follows t=%g", ErrNonIncreasing, s1.Time, s0.Time)
	}
	start := time.Now()
	t.perf.StartWindow()

	t.perf.StartPhase(telemetry.PhaseLoad)
	if err := t.load(s0, s1); err != nil {
		return nil, err
	}
	t0, t1 := t.field.Times()
	t.collector.Begin(t.window, t0, t1)
	t.field.ResetStats()
	t.frame = newFrame(t.window, t.comm.Rank(), t1, t.fields, t.field.ScalarNames())

	t.perf.StartPhase(telemetry.PhaseInject)
	if t.injectionDue() {
		if err := t.inject(ctx); err != nil {
			return nil, err
		}
	}

	if err := t.integrate(ctx); err != nil {
		return nil, err
	}

	t.perf.StartPhase(telemetry.PhaseBarrier)
	if err := t.comm.Barrier(ctx); err != nil {
		return nil, fmt.Errorf("end of window barrier: %w", err)
	}

	t.perf.StartPhase(telemetry.PhaseEmit)
	fs := t.field.Stats()
	elapsed := time.Since(start)
	t.stats = t.collector.Flush(t.store.len(), telemetry.CacheCounts{
		CellHits:    fs.CellHits,
		DatasetHits: fs.DatasetHits,
		Misses:      fs.Misses,
	}, elapsed)
	telemetry.WindowDuration.Observe(elapsed.Seconds())
	t.log.Info("window", "stats", t.stats)

	if err := t.output.WriteWindow(t.stats); err != nil {
		t.log.Error("failed to write window stats", "error", err)
	}
	t.perf.EndWindow()
	if t.perf != nil {
		if err := t.output.WritePerf(t.perf.Stats(), t.window); err != nil {
			t.log.Error("failed to write perf", "error", err)
		}
	}

	f := t.frame
	t.frame = nil
	t.window++
	return f, nil
}

// load installs s0 and s1 and moves the particles' hints to match.
func (t *Tracer) load(s0, s1 *mesh.Snapshot) error {
	if t.field.Populated() && s0 == t.resident {
		if err := t.field.Advance(s1); err != nil {
			return err
		}
		t.eachTracer(func(tr *components.Tracer) { tr.Hints[0] = tr.Hints[1] })
	} else {
		if err := t.field.SetSnapshots(s0, s1); err != nil {
			return err
		}
		t.eachTracer(func(tr *components.Tracer) { tr.Hints = [2]mesh.Hint{mesh.NoHint, mesh.NoHint} })
	}
	t.resident = s1
	return nil
}

func (t *Tracer) eachTracer(fn func(tr *components.Tracer)) {
	query := t.store.filter.Query()
	for query.Next() {
		_, tr, _ := query.Get()
		fn(tr)
	}
}

func (t *Tracer) injectionDue() bool {
	if t.lastInjected < 0 || t.seedsChanged {
		return true
	}
	every := t.cfg.Injection.ReinjectEvery
	return every > 0 && t.window-t.lastInjected >= every
}
