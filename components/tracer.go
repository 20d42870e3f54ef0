package components

import (
	"github.com/pthm-cable/tracer/field"
	"github.com/pthm-cable/tracer/mesh"
)

// Tracer bundles identity, cache hints and integration state.
type Tracer struct {
	ID              int64
	SourceID        int // Index of the seed source
	InjectedPointID int // Index of the seed within its source
	InjectedStepID  int // Window in which the particle was injected

	// Cached cells for the T0 and T1 evaluators. Hints only.
	Hints [2]mesh.Hint
	State field.State

	Age         float64 // Integrated time since injection
	TimeStepAge int     // Accepted integrator steps since injection
	ErrorCode   ErrorCode
	Speed       float64
	Substeps    int     // Integrator attempts in the current window
	Step        float64 // Adaptive step carried between sub-steps
}
