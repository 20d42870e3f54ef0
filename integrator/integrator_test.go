package integrator

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

type fieldFunc func(x [4]float64) (r3.Vec, bool)

func (f fieldFunc) Velocity(x [4]float64) (r3.Vec, bool) { return f(x) }

// growth is dx/dt = x, so x(t) = x0 * e^t.
var growth = fieldFunc(func(x [4]float64) (r3.Vec, bool) {
	return r3.Vec{X: x[0]}, true
})

func integrate(t *testing.T, in Integrator, f Field, steps int) float64 {
	t.Helper()
	x := [4]float64{1, 0, 0, 0}
	dt := 1 / float64(steps)
	for i := 0; i < steps; i++ {
		res, err := in.Step(f, x, dt, Control{})
		if err != nil {
			t.Fatal(err)
		}
		x = res.X
	}
	return x[0]
}

func TestNew(t *testing.T) {
	for _, name := range []string{"rk2", "rk4", "rk45"} {
		in, err := New(name)
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if in.Name() != name {
			t.Errorf("Name() = %q, want %q", in.Name(), name)
		}
		if in.Adaptive() != (name == "rk45") {
			t.Errorf("%s Adaptive() = %v", name, in.Adaptive())
		}
	}
	if _, err := New("euler"); !errors.Is(err, ErrUnknown) {
		t.Errorf("expected ErrUnknown, got %v", err)
	}
}

func TestUniformFieldIsExact(t *testing.T) {
	uniform := fieldFunc(func(x [4]float64) (r3.Vec, bool) {
		return r3.Vec{X: 1, Y: -2, Z: 0.5}, true
	})
	for _, name := range []string{"rk2", "rk4", "rk45"} {
		in, _ := New(name)
		res, err := in.Step(uniform, [4]float64{0, 0, 0, 3}, 0.25, Control{MinStep: 1e-6, MaxStep: 1, MaxError: 1e-9})
		if err != nil {
			t.Fatal(err)
		}
		want := [4]float64{0.25, -0.5, 0.125, 3.25}
		for i := range want {
			if math.Abs(res.X[i]-want[i]) > 1e-14 {
				t.Errorf("%s: X = %v, want %v", name, res.X, want)
				break
			}
		}
		if res.Taken != 0.25 {
			t.Errorf("%s: Taken = %v, want 0.25", name, res.Taken)
		}
	}
}

func TestConvergenceOrder(t *testing.T) {
	tests := []struct {
		name  string
		order float64
	}{
		{"rk2", 2},
		{"rk4", 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, _ := New(tt.name)
			e1 := math.Abs(integrate(t, in, growth, 10) - math.E)
			e2 := math.Abs(integrate(t, in, growth, 20) - math.E)
			got := math.Log2(e1 / e2)
			if math.Abs(got-tt.order) > 0.3 {
				t.Errorf("observed order %.2f, want %.0f", got, tt.order)
			}
		})
	}
}

func TestAdaptiveMeetsTolerance(t *testing.T) {
	in, _ := New("rk45")
	c := Control{MinStep: 1e-6, MaxStep: 1, MaxError: 1e-10}
	x := [4]float64{1, 0, 0, 0}
	step := 1.0
	for n := 0; x[3] < 1-1e-12; n++ {
		if n > 1000 {
			t.Fatal("too many steps")
		}
		dt := math.Min(step, 1-x[3])
		res, err := in.Step(growth, x, dt, c)
		if err != nil {
			t.Fatal(err)
		}
		if res.Taken > dt {
			t.Fatalf("took %v, requested %v", res.Taken, dt)
		}
		if res.Error > c.MaxError {
			t.Fatalf("accepted error %v above tolerance", res.Error)
		}
		x, step = res.X, res.Next
	}
	if math.Abs(x[0]-math.E) > 1e-8 {
		t.Errorf("x(1) = %v, want e", x[0])
	}
}

func TestAdaptiveShrinksLargeStep(t *testing.T) {
	in, _ := New("rk45")
	res, err := in.Step(growth, [4]float64{1, 0, 0, 0}, 1, Control{MinStep: 1e-6, MaxStep: 1, MaxError: 1e-12})
	if err != nil {
		t.Fatal(err)
	}
	if res.Taken >= 1 {
		t.Errorf("expected the step to shrink, took %v", res.Taken)
	}
	if res.X[3] != res.Taken {
		t.Errorf("time advanced to %v, taken %v", res.X[3], res.Taken)
	}
}

func TestAdaptiveStopsAtMinStep(t *testing.T) {
	in, _ := New("rk45")
	res, err := in.Step(growth, [4]float64{1, 0, 0, 0}, 0.5, Control{MinStep: 0.25, MaxStep: 1, MaxError: 1e-30})
	if err != nil {
		t.Fatal(err)
	}
	if res.Taken != 0.25 {
		t.Errorf("Taken = %v, want MinStep", res.Taken)
	}
}

func TestOutOfDomain(t *testing.T) {
	// Velocity exists only for x < 0.5
	half := fieldFunc(func(x [4]float64) (r3.Vec, bool) {
		if x[0] >= 0.5 {
			return r3.Vec{}, false
		}
		return r3.Vec{X: 1}, true
	})
	for _, name := range []string{"rk2", "rk4", "rk45"} {
		in, _ := New(name)
		if _, err := in.Step(half, [4]float64{0.4, 0, 0, 0}, 0.5, Control{MinStep: 1e-3, MaxStep: 1, MaxError: 1e-6}); !errors.Is(err, ErrOutOfDomain) {
			t.Errorf("%s: expected ErrOutOfDomain, got %v", name, err)
		}
		if _, err := in.Step(half, [4]float64{0, 0, 0, 0}, 0.1, Control{MinStep: 1e-3, MaxStep: 1, MaxError: 1e-6}); err != nil {
			t.Errorf("%s: unexpected error %v", name, err)
		}
	}
}
