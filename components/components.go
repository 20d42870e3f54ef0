// Package components defines the ECS components of a tracer particle.
package components

import "fmt"

// ErrorCode records why a particle left the normal integration path. Codes
// persist until the particle is reinjected.
type ErrorCode uint8

const (
	CodeNone          ErrorCode = iota
	CodeStepFailed              // Integrator could not evaluate a trial position
	CodeFinalOutside            // Final position outside every block
	CodeSentOutsideAll          // Handed off while outside both snapshots
	CodeSentOutsideT0           // Handed off while outside T0 only
	CodeSentOutsideT1           // Handed off while outside T1 only
	CodeNudged                  // Pushed back inside along the last velocity
)

// String returns the display name for an ErrorCode.
func (c ErrorCode) String() string {
	names := ErrorCodeNames()
	if int(c) < len(names) {
		return names[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", uint8(c))
}

// ErrorCodeNames returns the display names for all error codes.
// The order matches the ErrorCode constants.
func ErrorCodeNames() []string {
	return []string{"none", "step_failed", "final_outside", "sent_outside_all", "sent_outside_t0", "sent_outside_t1", "nudged"}
}
