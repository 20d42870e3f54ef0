// Package telemetry provides window statistics, performance timing, metrics
// and CSV output for the tracer.
package telemetry

import "time"

// Collector accumulates particle events within one window and produces
// WindowStats. Every Record call also feeds the process-wide counters.
type Collector struct {
	window int
	rank   int
	t0, t1 float64

	injected   int
	seedsOut   int
	stagnant   int
	left       int
	exhausted  int
	sent       int
	received   int
	nudged     int
	passes     int
	substeps   int
	timeWarned int
	speeds     []float64
}

// NewCollector creates a collector for the given rank.
func NewCollector(rank int) *Collector {
	return &Collector{rank: rank}
}

// Begin resets counters for a new window.
func (c *Collector) Begin(window int, t0, t1 float64) {
	*c = Collector{rank: c.rank, window: window, t0: t0, t1: t1, speeds: c.speeds[:0]}
}

// RecordInjected records a seed accepted as a particle.
func (c *Collector) RecordInjected() {
	c.injected++
	ParticlesInjected.Inc()
}

// RecordSeedOutside records a seed discarded at injection.
func (c *Collector) RecordSeedOutside() {
	c.seedsOut++
	ParticlesRemoved.WithLabelValues(RemovedSeedOutside).Inc()
}

// RecordStagnant records a particle removed at terminal speed.
func (c *Collector) RecordStagnant() {
	c.stagnant++
	ParticlesRemoved.WithLabelValues(RemovedStagnant).Inc()
}

// RecordLeft records a particle dropped after leaving every domain.
func (c *Collector) RecordLeft() {
	c.left++
	ParticlesRemoved.WithLabelValues(RemovedLeft).Inc()
}

// RecordExhausted records a particle dropped at the sub-step limit.
func (c *Collector) RecordExhausted() {
	c.exhausted++
	ParticlesRemoved.WithLabelValues(RemovedSubsteps).Inc()
}

// RecordSent records a particle queued for another rank.
func (c *Collector) RecordSent() {
	c.sent++
	ParticlesSent.Inc()
	ParticlesRemoved.WithLabelValues(RemovedSent).Inc()
}

// RecordReceived records a particle accepted from another rank.
func (c *Collector) RecordReceived() {
	c.received++
	ParticlesReceived.Inc()
}

// RecordNudged records a particle pushed back inside.
func (c *Collector) RecordNudged() { c.nudged++ }

// RecordPass records one integration pass.
func (c *Collector) RecordPass() { c.passes++ }

// RecordSubsteps adds integrator attempts.
func (c *Collector) RecordSubsteps(n int) { c.substeps += n }

// RecordTimeWarning records a particle time outside the window.
func (c *Collector) RecordTimeWarning() { c.timeWarned++ }

// RecordOutput records the speed of an emitted particle.
func (c *Collector) RecordOutput(speed float64) {
	c.speeds = append(c.speeds, speed)
}

// CacheCounts are location cache counters summed over both snapshots.
type CacheCounts struct {
	CellHits, DatasetHits, Misses uint64
}

// Flush produces the WindowStats of the current window.
func (c *Collector) Flush(live int, cache CacheCounts, elapsed time.Duration) WindowStats {
	mean, p10, p50, p90 := Distribution(c.speeds)
	return WindowStats{
		Window:      c.window,
		Rank:        c.rank,
		T0:          c.t0,
		T1:          c.t1,
		Live:        live,
		Output:      len(c.speeds),
		Injected:    c.injected,
		SeedsOut:    c.seedsOut,
		Stagnant:    c.stagnant,
		Left:        c.left,
		Exhausted:   c.exhausted,
		Sent:        c.sent,
		Received:    c.received,
		Nudged:      c.nudged,
		Passes:      c.passes,
		Substeps:    c.substeps,
		TimeWarned:  c.timeWarned,
		CellHits:    cache.CellHits,
		DatasetHits: cache.DatasetHits,
		Misses:      cache.Misses,
		SpeedMean:   mean,
		SpeedP10:    p10,
		SpeedP50:    p50,
		SpeedP90:    p90,
		DurationUS:  elapsed.Microseconds(),
	}
}
