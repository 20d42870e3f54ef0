package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one integration window.
const (
	PhaseLoad      = "load"
	PhaseInject    = "inject"
	PhaseIntegrate = "integrate"
	PhaseExchange  = "exchange"
	PhaseReceive   = "receive"
	PhaseBarrier   = "barrier"
	PhaseEmit      = "emit"
)

var phaseOrder = []string{
	PhaseLoad, PhaseInject, PhaseIntegrate, PhaseExchange,
	PhaseReceive, PhaseBarrier, PhaseEmit,
}

// PerfSample holds timing data for a single window.
type PerfSample struct {
	WindowDuration time.Duration
	Phases         map[string]time.Duration
}

// PerfCollector tracks window timings over a rolling buffer.
// A nil collector ignores every call.
type PerfCollector struct {
	size          int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	windowStart   time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over the last size windows.
func NewPerfCollector(size int) *PerfCollector {
	if size < 1 {
		size = 16
	}
	return &PerfCollector{
		size:          size,
		samples:       make([]PerfSample, size),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartWindow begins timing a new window.
func (p *PerfCollector) StartWindow() {
	if p == nil {
		return
	}
	p.windowStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
// Phases may repeat within a window; their durations add up.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndWindow finishes timing the current window, records the sample and
// returns the window duration.
func (p *PerfCollector) EndWindow() time.Duration {
	if p == nil {
		return 0
	}
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	sample := PerfSample{
		WindowDuration: now.Sub(p.windowStart),
		Phases:         p.currentPhases,
	}

	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.size
	if p.sampleCount < p.size {
		p.sampleCount++
	}
	p.lastPhase = ""
	return sample.WindowDuration
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgWindowDuration time.Duration
	MinWindowDuration time.Duration
	MaxWindowDuration time.Duration

	// Phase breakdown (average durations)
	PhaseAvg map[string]time.Duration

	// Phase percentages of total window time
	PhasePct map[string]float64

	WindowsPerSecond float64
}

// Stats computes aggregated statistics over the recorded windows.
func (p *PerfCollector) Stats() PerfStats {
	if p == nil || p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total time.Duration
	var minDur, maxDur time.Duration
	phaseSum := make(map[string]time.Duration)

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.WindowDuration

		if i == 0 || s.WindowDuration < minDur {
			minDur = s.WindowDuration
		}
		if s.WindowDuration > maxDur {
			maxDur = s.WindowDuration
		}

		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)

	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgWindowDuration: avg,
		MinWindowDuration: minDur,
		MaxWindowDuration: maxDur,
		PhaseAvg:          phaseAvg,
		PhasePct:          phasePct,
		WindowsPerSecond:  perSec,
	}
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_window_us", s.AvgWindowDuration.Microseconds()),
		slog.Int64("min_window_us", s.MinWindowDuration.Microseconds()),
		slog.Int64("max_window_us", s.MaxWindowDuration.Microseconds()),
		slog.Float64("windows_per_sec", s.WindowsPerSecond),
	}

	for _, phase := range phaseOrder {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}

	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat struct for CSV export of performance stats.
type PerfStatsCSV struct {
	Window        int     `csv:"window"`
	AvgWindowUS   int64   `csv:"avg_window_us"`
	MinWindowUS   int64   `csv:"min_window_us"`
	MaxWindowUS   int64   `csv:"max_window_us"`
	WindowsPerSec float64 `csv:"windows_per_sec"`
	LoadPct       float64 `csv:"load_pct"`
	InjectPct     float64 `csv:"inject_pct"`
	IntegratePct  float64 `csv:"integrate_pct"`
	ExchangePct   float64 `csv:"exchange_pct"`
	ReceivePct    float64 `csv:"receive_pct"`
	BarrierPct    float64 `csv:"barrier_pct"`
	EmitPct       float64 `csv:"emit_pct"`
}

// ToCSV converts PerfStats to a flat CSV-friendly struct.
func (s PerfStats) ToCSV(window int) PerfStatsCSV {
	return PerfStatsCSV{
		Window:        window,
		AvgWindowUS:   s.AvgWindowDuration.Microseconds(),
		MinWindowUS:   s.MinWindowDuration.Microseconds(),
		MaxWindowUS:   s.MaxWindowDuration.Microseconds(),
		WindowsPerSec: s.WindowsPerSecond,
		LoadPct:       s.PhasePct[PhaseLoad],
		InjectPct:     s.PhasePct[PhaseInject],
		IntegratePct:  s.PhasePct[PhaseIntegrate],
		ExchangePct:   s.PhasePct[PhaseExchange],
		ReceivePct:    s.PhasePct[PhaseReceive],
		BarrierPct:    s.PhasePct[PhaseBarrier],
		EmitPct:       s.PhasePct[PhaseEmit],
	}
}
