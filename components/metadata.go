package components

import "gonum.org/v1/gonum/spatial/r3"

// FieldDescriptor describes a per-particle output array.
type FieldDescriptor struct {
	ID string // Array name in frames and files
}

// TracerFieldDescriptors returns metadata for the arrays emitted for every
// particle. Spin arrays are included only when vorticity is enabled.
// Field IDs must match cases in GetTracerValue().
func TracerFieldDescriptors(vorticity bool) []FieldDescriptor {
	fields := []FieldDescriptor{
		{ID: "source_id"},
		{ID: "injected_point_id"},
		{ID: "injected_step_id"},
		{ID: "error_code"},
		{ID: "age"},
		{ID: "time_step_age"},
		{ID: "speed"},
	}
	if vorticity {
		fields = append(fields, SpinFieldDescriptors()...)
	}
	return fields
}

// SpinFieldDescriptors returns metadata for Spin fields.
func SpinFieldDescriptors() []FieldDescriptor {
	return []FieldDescriptor{
		{ID: "vorticity"},
		{ID: "rotation"},
		{ID: "angular_velocity"},
	}
}

// GetTracerValue extracts a field value by ID. Vorticity is reported as its
// magnitude; the vector is available on Spin.
func GetTracerValue(tr *Tracer, sp *Spin, fieldID string) float64 {
	switch fieldID {
	case "source_id":
		return float64(tr.SourceID)
	case "injected_point_id":
		return float64(tr.InjectedPointID)
	case "injected_step_id":
		return float64(tr.InjectedStepID)
	case "error_code":
		return float64(tr.ErrorCode)
	case "age":
		return tr.Age
	case "time_step_age":
		return float64(tr.TimeStepAge)
	case "speed":
		return tr.Speed
	case "vorticity":
		return r3.Norm(sp.Vorticity)
	case "rotation":
		return sp.Rotation
	case "angular_velocity":
		return sp.AngularVelocity
	default:
		return 0
	}
}
