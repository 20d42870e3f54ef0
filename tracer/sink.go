package tracer

import (
	"github.com/pthm-cable/tracer/telemetry"
)

// CSVSink writes every frame as particle rows.
type CSVSink struct {
	w *telemetry.ParticleWriter
}

// NewCSVSink wraps w. A nil writer discards frames.
func NewCSVSink(w *telemetry.ParticleWriter) *CSVSink {
	return &CSVSink{w: w}
}

func (s *CSVSink) Write(f *Frame) error {
	if s.w == nil || f.Len() == 0 {
		return nil
	}
	return s.w.Write(Rows(f))
}

// Rows converts a frame to particle rows.
func Rows(f *Frame) []telemetry.ParticleRow {
	col := func(name string, i int) float64 {
		if a := f.Arrays[name]; i < len(a) {
			return a[i]
		}
		return 0
	}
	rows := make([]telemetry.ParticleRow, f.Len())
	for i := range rows {
		p, v := f.Points[i], f.Velocity[i]
		rows[i] = telemetry.ParticleRow{
			Window:          f.Window,
			Rank:            f.Rank,
			ID:              f.IDs[i],
			SourceID:        int(col("source_id", i)),
			InjectedPointID: int(col("injected_point_id", i)),
			InjectedStepID:  int(col("injected_step_id", i)),
			X:               p.X,
			Y:               p.Y,
			Z:               p.Z,
			T:               f.Time,
			State:           f.States[i].String(),
			ErrorCode:       int(col("error_code", i)),
			Age:             col("age", i),
			TimeStepAge:     int(col("time_step_age", i)),
			Speed:           col("speed", i),
			VX:              v.X,
			VY:              v.Y,
			VZ:              v.Z,
			Vorticity:       col("vorticity", i),
			Rotation:        col("rotation", i),
			AngularVelocity: col("angular_velocity", i),
		}
	}
	return rows
}
