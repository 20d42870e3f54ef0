package tracer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/exchange"
	"github.com/pthm-cable/tracer/field"
	"github.com/pthm-cable/tracer/mesh"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig(t *testing.T, mutate func(c *config.Config)) *config.Config {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	if err := cfg.Refresh(); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func newTracer(t *testing.T, cfg *config.Config, comm exchange.Communicator) *Tracer {
	t.Helper()
	tr, err := New(cfg, comm, WithLogger(quiet))
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

// series samples f on one structured block at t = 0, 1, ..., n-1.
func series(min, max r3.Vec, cells [3]int, f mesh.Flow, n int) []*mesh.Snapshot {
	return mesh.Series([]*mesh.Block{mesh.NewGrid(min, max, cells)}, "velocity", f, 0, 1, n)
}

// collect returns a sink that keeps every frame.
func collect(frames *[]*Frame) Sink {
	return SinkFunc(func(f *Frame) error {
		*frames = append(*frames, f)
		return nil
	})
}

func near(a, b r3.Vec, tol float64) bool {
	return r3.Norm(r3.Sub(a, b)) <= tol
}

func TestUniformFlowSingleBlock(t *testing.T) {
	cfg := testConfig(t, nil)
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{}})

	snaps := series(r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{6, 4, 4}, mesh.Uniform(r3.Vec{X: 1}), 2)
	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	f := frames[0]
	if f.Len() != 1 {
		t.Fatalf("expected 1 point, got %d", f.Len())
	}
	if !near(f.Points[0], r3.Vec{X: 1}, 1e-9) || f.Time != 1 {
		t.Errorf("particle at %v t=%g, want (1,0,0) t=1", f.Points[0], f.Time)
	}
	if f.States[0] != field.InsideAll {
		t.Errorf("state = %v, want inside_all", f.States[0])
	}
	if code := f.Array("error_code")[0]; code != 0 {
		t.Errorf("error code = %v, want 0", code)
	}
	if f.IDs[0] != 0 {
		t.Errorf("id = %d, want 0", f.IDs[0])
	}
	if age := f.Array("age")[0]; math.Abs(age-1) > 1e-9 {
		t.Errorf("age = %v, want 1", age)
	}
	if s := tr.Stats(); s.Injected != 1 || s.Output != 1 || s.Live != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestSeedOutsideIsDiscarded(t *testing.T) {
	cfg := testConfig(t, nil)
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{X: 2.001}})

	snaps := series(r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{6, 4, 4}, mesh.Uniform(r3.Vec{X: 1}), 2)
	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatalf("seed outside should not fail the run: %v", err)
	}
	if frames[0].Len() != 0 || tr.Len() != 0 {
		t.Errorf("expected no particles, frame has %d, tracer has %d", frames[0].Len(), tr.Len())
	}
	if s := tr.Stats(); s.SeedsOut != 1 || s.Injected != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestLeavingT1UsesT0Attributes(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.Locator.StaticMesh = false })
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})

	v := mesh.Uniform(r3.Vec{X: 1})
	b0 := mesh.NewGrid(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{4, 2, 2})
	b1 := mesh.NewGrid(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 2, 2})
	mesh.Sample(b0, "velocity", v, 0)
	mesh.Sample(b1, "velocity", v, 1)
	b0.Scalars["marker"] = make([]float64, b0.NumPoints())
	b1.Scalars["marker"] = make([]float64, b1.NumPoints())
	for i := range b1.Scalars["marker"] {
		b1.Scalars["marker"][i] = 1
	}
	b1.Unmodified = false

	snaps := []*mesh.Snapshot{{Time: 0, Blocks: []*mesh.Block{b0}}, {Time: 1, Blocks: []*mesh.Block{b1}}}
	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	f := frames[0]
	if f.Len() != 1 {
		t.Fatalf("expected 1 point, got %d", f.Len())
	}
	if f.States[0] != field.OutsideT1 {
		t.Errorf("state = %v, want outside_t1", f.States[0])
	}
	if !near(f.Points[0], r3.Vec{X: 1.5, Y: 0.5, Z: 0.5}, 1e-9) {
		t.Errorf("particle at %v, want (1.5,0.5,0.5)", f.Points[0])
	}
	if code := f.Array("error_code")[0]; code != 0 {
		t.Errorf("error code = %v, want 0", code)
	}
	if m := f.Array("marker")[0]; m != 0 {
		t.Errorf("marker = %v, want the T0 value 0", m)
	}
}

func TestHandOffBetweenRanks(t *testing.T) {
	cfg := testConfig(t, nil)
	domainMin, domainMax := r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}
	parts := mesh.SplitX(domainMin, domainMax, [3]int{4, 2, 2}, 2)
	flow := mesh.Uniform(r3.Vec{X: 0.5})

	comms := exchange.NewLocalGroup(2)
	frames := make([][]*Frame, 2)
	tracers := make([]*Tracer, 2)
	g, ctx := errgroup.WithContext(context.Background())
	for rank, comm := range comms {
		tracers[rank] = newTracer(t, cfg, comm)
		tracers[rank].SetSeeds([]r3.Vec{{X: 0.1, Y: 0.5, Z: 0.5}})
		snaps := series(parts[rank].Min, parts[rank].Max, parts[rank].Cells, flow, 2)
		g.Go(func() error {
			return tracers[rank].Run(ctx, snaps, collect(&frames[rank]))
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}

	if n := frames[0][0].Len(); n != 0 || tracers[0].Len() != 0 {
		t.Errorf("sender still holds the particle: frame %d, live %d", n, tracers[0].Len())
	}
	f := frames[1][0]
	if f.Len() != 1 {
		t.Fatalf("receiver frame has %d points, want 1", f.Len())
	}
	if f.IDs[0] != 0 {
		t.Errorf("id = %d, want 0", f.IDs[0])
	}
	if code := components.ErrorCode(f.Array("error_code")[0]); code != components.CodeStepFailed {
		t.Errorf("error code = %v, want step_failed", code)
	}
	if !near(f.Points[0], r3.Vec{X: 0.6, Y: 0.5, Z: 0.5}, 1e-9) {
		t.Errorf("particle at %v, want (0.6,0.5,0.5)", f.Points[0])
	}
	if s := tracers[0].Stats(); s.Sent != 1 || s.Injected != 1 {
		t.Errorf("sender stats %+v", s)
	}
	if s := tracers[1].Stats(); s.Received != 1 || s.SeedsOut != 1 {
		t.Errorf("receiver stats %+v", s)
	}
}

func TestStationaryParticleKeepsHint(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.Integration.TerminalSpeed = 0 })
	tr := newTracer(t, cfg, nil)
	seed := r3.Vec{X: 0.3, Y: 0.6, Z: 0.8}
	tr.SetSeeds([]r3.Vec{seed})

	snaps := series(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{4, 4, 4}, mesh.Uniform(r3.Vec{}), 3)

	ref := field.NewTemporal(tr.opts)
	if err := ref.SetSnapshots(snaps[0], snaps[1]); err != nil {
		t.Fatal(err)
	}
	ref.TestPoint([4]float64{seed.X, seed.Y, seed.Z, 0})
	want := ref.Hints()

	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected the particle to survive, have %d", tr.Len())
	}
	for _, e := range tr.store.entities() {
		pos, p, _ := tr.store.get(e)
		if pos.Vec() != seed {
			t.Errorf("particle moved to %v", pos.Vec())
		}
		if p.Hints != want {
			t.Errorf("hints = %v, want %v", p.Hints, want)
		}
	}
}

func TestReinjectionAssignsFreshIDs(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Injection.ReinjectEvery = 1
		c.Integration.TerminalSpeed = 0
	})
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, {X: 5}})

	snaps := series(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 2, 2}, mesh.Uniform(r3.Vec{}), 3)
	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	last := frames[len(frames)-1]
	if last.Len() != 2 || last.Index(0) < 0 || last.Index(1) < 0 {
		t.Fatalf("expected ids 0 and 1, got %v", last.IDs)
	}
	if step := last.Array("injected_step_id")[last.Index(1)]; step != 1 {
		t.Errorf("second particle injected in window %v, want 1", step)
	}
	if s := tr.Stats(); s.Injected != 1 || s.SeedsOut != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestVorticityAndRotation(t *testing.T) {
	const a = 0.5
	cfg := testConfig(t, func(c *config.Config) { c.Output.Vorticity = true })
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{}})

	// Swirl about the x axis: curl is (2a, 0, 0) everywhere.
	swirl := func(p r3.Vec, _ float64) r3.Vec { return r3.Vec{X: 1, Y: -a * p.Z, Z: a * p.Y} }
	snaps := series(r3.Vec{X: -1, Y: -1, Z: -1}, r3.Vec{X: 3, Y: 1, Z: 1}, [3]int{4, 2, 2}, swirl, 3)

	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		window   int
		rotation float64
	}{
		{0, 0},
		{1, a},
	}
	for _, tt := range tests {
		f := frames[tt.window]
		if f.Len() != 1 {
			t.Fatalf("window %d has %d points", tt.window, f.Len())
		}
		if !near(f.Spin[0], r3.Vec{X: 2 * a}, 1e-9) {
			t.Errorf("window %d vorticity = %v", tt.window, f.Spin[0])
		}
		if w := f.Array("angular_velocity")[0]; math.Abs(w-a) > 1e-9 {
			t.Errorf("window %d angular velocity = %v, want %v", tt.window, w, a)
		}
		if r := f.Array("rotation")[0]; math.Abs(r-tt.rotation) > 1e-9 {
			t.Errorf("window %d rotation = %v, want %v", tt.window, r, tt.rotation)
		}
	}
}

func TestConfigurationErrors(t *testing.T) {
	cfg := testConfig(t, nil)
	snap := func(tm float64) *mesh.Snapshot {
		s := series(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{1, 1, 1}, mesh.Uniform(r3.Vec{}), 1)[0]
		s.Time = tm
		return s
	}
	tests := []struct {
		name  string
		snaps []*mesh.Snapshot
		want  error
	}{
		{"single", []*mesh.Snapshot{snap(0)}, ErrTooFewTimeSteps},
		{"repeated", []*mesh.Snapshot{snap(1), snap(1)}, ErrTooFewTimeSteps},
		{"decreasing", []*mesh.Snapshot{snap(0), snap(2), snap(1)}, ErrNonIncreasing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracer(t, cfg, nil)
			if err := tr.Run(context.Background(), tt.snaps, nil); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	t.Run("backward", func(t *testing.T) {
		bad := testConfig(t, func(c *config.Config) { c.Integration.Direction = "backward" })
		if _, err := New(bad, nil); !errors.Is(err, ErrBackward) {
			t.Errorf("expected ErrBackward, got %v", err)
		}
	})

	t.Run("block mismatch", func(t *testing.T) {
		tr := newTracer(t, cfg, nil)
		s0, s1 := snap(0), snap(1)
		s1.Blocks = append(s1.Blocks, s1.Blocks[0])
		if _, err := tr.Window(context.Background(), s0, s1); !errors.Is(err, field.ErrBlockMismatch) {
			t.Errorf("expected ErrBlockMismatch, got %v", err)
		}
	})
}

func TestLine(t *testing.T) {
	got := Line(r3.Vec{}, r3.Vec{X: 1, Y: 2}, 3)
	want := []r3.Vec{{}, {X: 0.5, Y: 1}, {X: 1, Y: 2}}
	if len(got) != len(want) {
		t.Fatalf("got %d points", len(got))
	}
	for i := range want {
		if !near(got[i], want[i], 1e-15) {
			t.Errorf("point %d = %v, want %v", i, got[i], want[i])
		}
	}
	if len(Line(r3.Vec{}, r3.Vec{X: 1}, 0)) != 0 || len(Line(r3.Vec{}, r3.Vec{X: 1}, 1)) != 1 {
		t.Error("degenerate counts")
	}
}

func TestRows(t *testing.T) {
	cfg := testConfig(t, nil)
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{X: 0.25, Y: 0.5, Z: 0.5}})
	snaps := series(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{4, 2, 2}, mesh.Uniform(r3.Vec{X: 0.5}), 2)
	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	rows := Rows(frames[0])
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	r := rows[0]
	if r.State != "inside_all" || r.T != 1 || math.Abs(r.X-0.75) > 1e-9 || math.Abs(r.Speed-0.5) > 1e-12 || math.Abs(r.VX-0.5) > 1e-12 {
		t.Errorf("unexpected row %+v", r)
	}
}

// tetraSeries samples f on tetrahedralised grids at t = 0, 1, ..., n-1.
func tetraSeries(grids []*mesh.Block, f mesh.Flow, n int) []*mesh.Snapshot {
	blocks := make([]*mesh.Block, len(grids))
	for i, g := range grids {
		blocks[i] = mesh.Tetrahedralize(g)
	}
	return mesh.Series(blocks, "velocity", f, 0, 1, n)
}

func TestUnstructuredBlock(t *testing.T) {
	for _, strategy := range []string{"tree", "exhaustive"} {
		t.Run(strategy, func(t *testing.T) {
			cfg := testConfig(t, func(c *config.Config) { c.Locator.Strategy = strategy })
			tr := newTracer(t, cfg, nil)
			tr.SetSeeds([]r3.Vec{{X: 0.25, Y: 0.3, Z: 0.5}})

			grid := mesh.NewGrid(r3.Vec{}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{4, 2, 2})
			snaps := tetraSeries([]*mesh.Block{grid}, mesh.Uniform(r3.Vec{X: 0.5, Y: 0.25}), 3)
			var frames []*Frame
			if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
				t.Fatal(err)
			}
			want := []r3.Vec{{X: 0.75, Y: 0.55, Z: 0.5}, {X: 1.25, Y: 0.8, Z: 0.5}}
			for w, f := range frames {
				if f.Len() != 1 {
					t.Fatalf("window %d has %d points", w, f.Len())
				}
				if !near(f.Points[0], want[w], 1e-9) {
					t.Errorf("window %d particle at %v, want %v", w, f.Points[0], want[w])
				}
				if f.States[0] != field.InsideAll {
					t.Errorf("window %d state = %v", w, f.States[0])
				}
			}
		})
	}
}

func TestNudgeAcrossGap(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) { c.Integration.NudgeFactor = 2 })
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{X: 0.535, Y: 0.5, Z: 0.5}})

	// Blocks leave a gap at x in (1, 1.02). The step from x=0.985 fails in
	// the gap and the push along the last velocity lands in the second block.
	grids := []*mesh.Block{
		mesh.NewGrid(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 2, 2}),
		mesh.NewGrid(r3.Vec{X: 1.02}, r3.Vec{X: 2, Y: 1, Z: 1}, [3]int{2, 2, 2}),
	}
	snaps := tetraSeries(grids, mesh.Uniform(r3.Vec{X: 0.5}), 2)
	var frames []*Frame
	if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
		t.Fatal(err)
	}
	f := frames[0]
	if f.Len() != 1 {
		t.Fatalf("expected 1 point, got %d", f.Len())
	}
	if code := components.ErrorCode(f.Array("error_code")[0]); code != components.CodeNudged {
		t.Errorf("error code = %v, want nudged", code)
	}
	if f.States[0] != field.InsideAll {
		t.Errorf("state = %v, want inside_all", f.States[0])
	}
	if !near(f.Points[0], r3.Vec{X: 1.035, Y: 0.5, Z: 0.5}, 1e-9) {
		t.Errorf("particle at %v, want (1.035,0.5,0.5)", f.Points[0])
	}
	if s := tr.Stats(); s.Nudged != 1 || s.Left != 0 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestParticleRemoval(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		velocity r3.Vec
		removed  bool
		count    func(tr *Tracer) int
	}{
		{
			name:     "at terminal speed",
			mutate:   func(c *config.Config) { c.Integration.TerminalSpeed = 0.2 + 1e-9 },
			velocity: r3.Vec{X: 0.2},
			removed:  true,
			count:    func(tr *Tracer) int { return tr.Stats().Stagnant },
		},
		{
			name:     "above terminal speed",
			mutate:   func(c *config.Config) { c.Integration.TerminalSpeed = 0.1 },
			velocity: r3.Vec{X: 0.2},
			count:    func(tr *Tracer) int { return tr.Stats().Stagnant },
		},
		{
			name:     "sub-step limit",
			mutate:   func(c *config.Config) { c.Integration.MaxSubsteps = 3 },
			velocity: r3.Vec{X: 0.2},
			removed:  true,
			count:    func(tr *Tracer) int { return tr.Stats().Exhausted },
		},
		{
			name:     "leaves the domain",
			velocity: r3.Vec{X: 1},
			removed:  true,
			count:    func(tr *Tracer) int { return tr.Stats().Left },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, tt.mutate)
			tr := newTracer(t, cfg, nil)
			tr.SetSeeds([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})

			snaps := series(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{4, 2, 2}, mesh.Uniform(tt.velocity), 2)
			var frames []*Frame
			if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
				t.Fatal(err)
			}
			wantLive, wantCount := 1, 0
			if tt.removed {
				wantLive, wantCount = 0, 1
			}
			if frames[0].Len() != wantLive || tr.Len() != wantLive {
				t.Errorf("frame has %d points, tracer %d live, want %d", frames[0].Len(), tr.Len(), wantLive)
			}
			if n := tt.count(tr); n != wantCount {
				t.Errorf("removal count = %d, want %d (stats %+v)", n, wantCount, tr.Stats())
			}
		})
	}
}

// Fixed rk45 steps, and steps clipped to the window end, must not shrink the
// step carried into the next window.
func TestCarriedStepSurvivesWindowEnd(t *testing.T) {
	const step = 0.3333333
	tests := []struct {
		name     string
		maxError float64
	}{
		{"fixed", 0},
		{"adaptive", 1e-6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, func(c *config.Config) {
				c.Integration.Integrator = "rk45"
				c.Integration.MaxError = tt.maxError
				c.Integration.InitialStep = step
				c.Integration.MaxStep = step
			})
			tr := newTracer(t, cfg, nil)
			tr.SetSeeds([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})

			snaps := series(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{10, 1, 1}, mesh.Uniform(r3.Vec{X: 0.1}), 3)
			var frames []*Frame
			if err := tr.Run(context.Background(), snaps, collect(&frames)); err != nil {
				t.Fatal(err)
			}
			last := frames[len(frames)-1]
			if last.Len() != 1 {
				t.Fatalf("last window has %d points (stats %+v)", last.Len(), tr.Stats())
			}
			if !near(last.Points[0], r3.Vec{X: 0.7, Y: 0.5, Z: 0.5}, 1e-9) {
				t.Errorf("particle at %v, want (0.7,0.5,0.5)", last.Points[0])
			}
			if s := tr.Stats(); s.Exhausted != 0 || s.Substeps > 4 {
				t.Errorf("unexpected stats %+v", s)
			}
			for _, e := range tr.store.entities() {
				if _, p, _ := tr.store.get(e); p.Step != step {
					t.Errorf("carried step = %g, want %g", p.Step, step)
				}
			}
		})
	}
}

func TestStaticGeometryChangeFailsRun(t *testing.T) {
	cfg := testConfig(t, nil)
	tr := newTracer(t, cfg, nil)
	tr.SetSeeds([]r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}})

	snaps := series(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 2, 2}, mesh.Uniform(r3.Vec{X: 0.1}), 3)
	snaps[2].Blocks[0].Unmodified = false
	var frames []*Frame
	err := tr.Run(context.Background(), snaps, collect(&frames))
	if !errors.Is(err, field.ErrStaticChanged) {
		t.Fatalf("expected ErrStaticChanged, got %v", err)
	}
	if len(frames) != 1 {
		t.Errorf("expected the first window to complete, got %d frames", len(frames))
	}
}
