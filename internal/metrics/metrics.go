package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// platformRequests counts storefront requests by host and status class.
	platformRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_platform_requests_total",
		Help: "Total platform requests by host and HTTP status",
	}, []string{"host", "status"})

	// platformRetries counts transport-level retries by host.
	platformRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_platform_retries_total",
		Help: "Total platform request retries by host",
	}, []string{"host"})

	// warmups counts session warm-up cycles by host.
	warmups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_session_warmups_total",
		Help: "Total session warm-up cycles by host",
	}, []string{"host"})

	// probes counts probe outcomes by host and outcome kind.
	probes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_probes_total",
		Help: "Total availability probes by host and outcome",
	}, []string{"host", "outcome"}) // outcome: available, unavailable, error

	// probeDuration tracks single-probe latency.
	probeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "availability_probe_duration_seconds",
		Help:    "Time taken for one availability probe",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 90},
	}, []string{"host"})

	// commitRows tracks the size of committed result chunks.
	commitRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_commit_rows",
		Help:    "Rows per committed availability chunk",
		Buckets: []float64{1, 10, 50, 100, 200},
	})

	// commitDuration tracks chunk commit latency.
	commitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_commit_duration_seconds",
		Help:    "Time taken to commit one availability chunk",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	// sweepsRunning gauges active sweeps by type.
	sweepsRunning = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "availability_sweeps_running",
		Help: "Number of sweeps currently running by type",
	}, []string{"type"})

	// workUnits counts generated probe work units per host.
	workUnits = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "availability_work_units",
		Help: "Work units in the most recent probe run by host",
	}, []string{"host"})

	// catalogUpserts counts catalog entity upserts by host and entity.
	catalogUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_catalog_upserts_total",
		Help: "Total catalog upserts by host and entity",
	}, []string{"host", "entity"}) // entity: category, product, sku, seller, offer
)

// Recorder provides methods to record availability pipeline metrics.
type Recorder struct{}

// NewRecorder creates a new metrics recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordPlatformRequest records one storefront response by status.
func (m *Recorder) RecordPlatformRequest(host string, status string) {
	platformRequests.WithLabelValues(host, status).Inc()
}

// RecordPlatformRetry records a transport retry.
func (m *Recorder) RecordPlatformRetry(host string) {
	platformRetries.WithLabelValues(host).Inc()
}

// RecordWarmup records one warm-up cycle.
func (m *Recorder) RecordWarmup(host string) {
	warmups.WithLabelValues(host).Inc()
}

// RecordProbe records a probe outcome and its duration.
func (m *Recorder) RecordProbe(host, outcome string, duration time.Duration) {
	probes.WithLabelValues(host, outcome).Inc()
	probeDuration.WithLabelValues(host).Observe(duration.Seconds())
}

// RecordCommit records a committed chunk.
func (m *Recorder) RecordCommit(rows int, duration time.Duration) {
	commitRows.Observe(float64(rows))
	commitDuration.Observe(duration.Seconds())
}

// SweepStarted bumps the running gauge for a sweep type.
func (m *Recorder) SweepStarted(sweepType string) {
	sweepsRunning.WithLabelValues(sweepType).Inc()
}

// SweepFinished drops the running gauge for a sweep type.
func (m *Recorder) SweepFinished(sweepType string) {
	sweepsRunning.WithLabelValues(sweepType).Dec()
}

// RecordWorkUnits records the work set size of a probe run.
func (m *Recorder) RecordWorkUnits(host string, count int) {
	workUnits.WithLabelValues(host).Set(float64(count))
}

// RecordCatalogUpsert records one catalog entity upsert.
func (m *Recorder) RecordCatalogUpsert(host, entity string) {
	catalogUpserts.WithLabelValues(host, entity).Inc()
}
