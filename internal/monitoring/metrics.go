package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Partition run statuses
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusFailed   = "failed"
	StatusSkipped  = "skipped"

	StatusInterrupted = "interrupted"
)

// Gate candidate outcomes
const (
	OutcomePassed  = "passed"
	OutcomeRescued = "rescued"
	OutcomeFailed  = "failed"
)

var (
	// Search metrics
	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dna_evolution_generations_total",
			Help: "Total number of evaluated generations",
		},
		[]string{"partition"},
	)

	bestFitness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dna_evolution_best_fitness",
			Help: "Best fitness of the latest generation",
		},
		[]string{"partition"},
	)

	mutationRate = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dna_evolution_mutation_rate",
			Help: "Mutation rate in effect for the latest generation",
		},
		[]string{"partition"},
	)

	radiationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dna_evolution_radiation_events_total",
			Help: "Total number of stagnation-triggered mutation boosts",
		},
		[]string{"partition"},
	)

	checkpointsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dna_evolution_checkpoints_total",
			Help: "Total number of checkpoints written",
		},
		[]string{"partition", "reason"},
	)

	// Gate and run metrics
	gateCandidatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dna_evolution_gate_candidates_total",
			Help: "Robustness gate verdicts per candidate",
		},
		[]string{"partition", "outcome"},
	)

	partitionRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dna_evolution_partition_runs_total",
			Help: "Completed partition runs by resulting document status",
		},
		[]string{"partition", "status"},
	)

	partitionRunSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dna_evolution_partition_run_seconds",
			Help:    "Wall time of one partition run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
		[]string{"partition"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dna_evolution_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(generationsTotal)
	prometheus.MustRegister(bestFitness)
	prometheus.MustRegister(mutationRate)
	prometheus.MustRegister(radiationTotal)
	prometheus.MustRegister(checkpointsTotal)
	prometheus.MustRegister(gateCandidatesTotal)
	prometheus.MustRegister(partitionRunsTotal)
	prometheus.MustRegister(partitionRunSeconds)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct{}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// RecordGeneration records one evaluated generation
func RecordGeneration(partition string, best, rate float64) {
	generationsTotal.WithLabelValues(partition).Inc()
	bestFitness.WithLabelValues(partition).Set(best)
	mutationRate.WithLabelValues(partition).Set(rate)
}

// RecordRadiation records a mutation boost
func RecordRadiation(partition string) {
	radiationTotal.WithLabelValues(partition).Inc()
}

// RecordCheckpoint records a checkpoint write
func RecordCheckpoint(partition, reason string) {
	checkpointsTotal.WithLabelValues(partition, reason).Inc()
}

// RecordGateOutcome records one candidate verdict
func RecordGateOutcome(partition, outcome string) {
	gateCandidatesTotal.WithLabelValues(partition, outcome).Inc()
}

// RecordPartitionRun records a finished partition run
func RecordPartitionRun(partition, status string, elapsed time.Duration) {
	partitionRunsTotal.WithLabelValues(partition, status).Inc()
	partitionRunSeconds.WithLabelValues(partition).Observe(elapsed.Seconds())
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
