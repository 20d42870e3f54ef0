package tracer

import (
	"github.com/pthm-cable/tracer/components"
	"github.com/pthm-cable/tracer/field"
	"gonum.org/v1/gonum/spatial/r3"
)

// Frame holds one output point per surviving particle at the end of a
// window. Columns share an index.
type Frame struct {
	Window int
	Time   float64
	Rank   int

	Points   []r3.Vec
	IDs      []int64
	States   []field.State
	Velocity []r3.Vec
	Spin     []r3.Vec // Vorticity vectors, empty when disabled

	// Named per-point arrays: the tracer attributes plus every scalar
	// array the authoritative snapshot carries.
	Arrays map[string][]float64
	Names  []string // Keys of Arrays in emission order
}

func newFrame(window, rank int, t float64, fields []components.FieldDescriptor, scalars []string) *Frame {
	f := &Frame{Window: window, Time: t, Rank: rank, Arrays: map[string][]float64{}}
	for _, d := range fields {
		f.Names = append(f.Names, d.ID)
		f.Arrays[d.ID] = nil
	}
	for _, name := range scalars {
		if _, dup := f.Arrays[name]; dup {
			continue
		}
		f.Names = append(f.Names, name)
		f.Arrays[name] = nil
	}
	return f
}

// Len returns the number of points.
func (f *Frame) Len() int { return len(f.Points) }

// Array returns the named column, or nil.
func (f *Frame) Array(name string) []float64 { return f.Arrays[name] }

// Index returns the row of the particle with the given id, or -1.
func (f *Frame) Index(id int64) int {
	for i, v := range f.IDs {
		if v == id {
			return i
		}
	}
	return -1
}

// Sink receives one frame per window.
type Sink interface {
	Write(f *Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(f *Frame) error

func (fn SinkFunc) Write(f *Frame) error { return fn(f) }

// Discard drops every frame.
var Discard Sink = SinkFunc(func(*Frame) error { return nil })
