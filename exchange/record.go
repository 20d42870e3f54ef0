package exchange

// Record is the wire form of a particle in transit between ranks.
type Record struct {
	ID              int64      `json:"id"`
	SourceID        int        `json:"source_id"`
	InjectedPointID int        `json:"injected_point_id"`
	InjectedStepID  int        `json:"injected_step_id"`
	X               [4]float64 `json:"x"`
	Age             float64    `json:"age"`
	TimeStepAge     int        `json:"time_step_age"`
	ErrorCode       int        `json:"error_code"`
	Speed           float64    `json:"speed"`
	State           uint8      `json:"state"`
	Step            float64    `json:"step"`

	Vorticity       [3]float64 `json:"vorticity"`
	Rotation        float64    `json:"rotation"`
	AngularVelocity float64    `json:"angular_velocity"`
	SpinTime        float64    `json:"spin_time"`
	Sampled         bool       `json:"sampled"`
}
