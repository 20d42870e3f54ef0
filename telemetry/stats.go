package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// WindowStats holds aggregated statistics for one integration window on one rank.
type WindowStats struct {
	Window int     `csv:"window"`
	Rank   int     `csv:"rank"`
	T0     float64 `csv:"t0"`
	T1     float64 `csv:"t1"`

	// Population at window end
	Live   int `csv:"live"`
	Output int `csv:"output"`

	// Events during window
	Injected   int `csv:"injected"`
	SeedsOut   int `csv:"seeds_outside"`
	Stagnant   int `csv:"stagnant"`
	Left       int `csv:"left_domain"`
	Exhausted  int `csv:"substep_limit"`
	Sent       int `csv:"sent"`
	Received   int `csv:"received"`
	Nudged     int `csv:"nudged"`
	Passes     int `csv:"passes"`
	Substeps   int `csv:"substeps"`
	TimeWarned int `csv:"time_warnings"`

	// Location cache counters for both snapshots
	CellHits    uint64 `csv:"cell_hits"`
	DatasetHits uint64 `csv:"dataset_hits"`
	Misses      uint64 `csv:"misses"`

	// Speed distribution of emitted particles
	SpeedMean float64 `csv:"speed_mean"`
	SpeedP10  float64 `csv:"speed_p10"`
	SpeedP50  float64 `csv:"speed_p50"`
	SpeedP90  float64 `csv:"speed_p90"`

	DurationUS int64 `csv:"duration_us"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// Distribution returns the mean and the 10th, 50th and 90th percentiles.
func Distribution(values []float64) (mean, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}
	mean = floats.Sum(values) / float64(n)

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return mean, Percentile(sorted, 0.10), Percentile(sorted, 0.50), Percentile(sorted, 0.90)
}

// HitRate is the share of location queries answered by the cached cell.
func (s WindowStats) HitRate() float64 {
	total := s.CellHits + s.DatasetHits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.CellHits) / float64(total)
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window", s.Window),
		slog.Int("rank", s.Rank),
		slog.Float64("t0", s.T0),
		slog.Float64("t1", s.T1),
		slog.Int("live", s.Live),
		slog.Int("output", s.Output),
		slog.Int("injected", s.Injected),
		slog.Int("seeds_outside", s.SeedsOut),
		slog.Int("stagnant", s.Stagnant),
		slog.Int("left_domain", s.Left),
		slog.Int("substep_limit", s.Exhausted),
		slog.Int("sent", s.Sent),
		slog.Int("received", s.Received),
		slog.Int("nudged", s.Nudged),
		slog.Int("passes", s.Passes),
		slog.Int("substeps", s.Substeps),
		slog.Float64("hit_rate", s.HitRate()),
		slog.Float64("speed_mean", s.SpeedMean),
		slog.Float64("speed_p50", s.SpeedP50),
		slog.Int64("duration_us", s.DurationUS),
	)
}
