package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Process-wide counters. Location cache counters mirror the per-evaluator
// Stats and are diagnostic only.
var (
	LocateCellHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracer_locate_cell_hits_total",
		Help: "Point queries answered by the cached cell",
	})

	LocateDatasetHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracer_locate_dataset_hits_total",
		Help: "Point queries answered by a full block search",
	})

	LocateMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracer_locate_misses_total",
		Help: "Point queries outside every block",
	})

	ParticlesInjected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracer_particles_injected_total",
		Help: "Seeds accepted as particles",
	})

	ParticlesRemoved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracer_particles_removed_total",
		Help: "Particles removed from the local population",
	}, []string{"reason"})

	ParticlesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracer_particles_sent_total",
		Help: "Particles handed off to other ranks",
	})

	ParticlesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracer_particles_received_total",
		Help: "Particles accepted from other ranks",
	})

	WindowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tracer_window_duration_seconds",
		Help:    "Wall time spent advancing one window",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
	})
)

// Removal reasons used as the ParticlesRemoved label.
const (
	RemovedSeedOutside = "seed_outside"
	RemovedStagnant    = "stagnant"
	RemovedLeft        = "left_domain"
	RemovedSubsteps    = "substeps"
	RemovedSent        = "sent"
)

// MetricsHandler serves the default registry.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
