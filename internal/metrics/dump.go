package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dump outcome label values.
const (
	// OutcomeComplete means every segment reached the sink.
	OutcomeComplete = "complete"
	// OutcomePartial means the dump finished with one or more sink faults.
	OutcomePartial = "partial"
	// OutcomeFailed means the dump stopped on a codec fault.
	OutcomeFailed = "failed"
)

// Dump phase label values.
const (
	PhaseA = "a"
	PhaseB = "b"
)

// DumpMetrics holds metrics for on-demand reconstruction.
type DumpMetrics struct {
	// DumpsTotal counts dumps by outcome.
	DumpsTotal *prometheus.CounterVec

	// EmittedBytesHistogram tracks plaintext bytes reconstructed per dump.
	EmittedBytesHistogram prometheus.Histogram

	// DurationHistogram tracks dump duration in seconds.
	DurationHistogram prometheus.Histogram

	// CompressedBytesTotal counts compressed bytes decoded per phase.
	CompressedBytesTotal *prometheus.CounterVec
}

// DefaultDumpSizeBuckets span reconstructed sizes from a few KiB to 1GiB.
var DefaultDumpSizeBuckets = prometheus.ExponentialBuckets(4096, 4, 10)

// DefaultDumpDurationBuckets cover in-memory dumps to slow sinks.
var DefaultDumpDurationBuckets = []float64{
	0.001, // 1ms
	0.005, // 5ms
	0.01,  // 10ms
	0.05,  // 50ms
	0.1,   // 100ms
	0.5,   // 500ms
	1.0,   // 1s
	5.0,   // 5s
	30.0,  // 30s
}

// NewDumpMetrics creates and registers dump metrics with the default registry.
func NewDumpMetrics() *DumpMetrics {
	return newDumpMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewDumpMetricsWithRegistry creates dump metrics registered with a custom registry.
func NewDumpMetricsWithRegistry(reg prometheus.Registerer) *DumpMetrics {
	return newDumpMetrics(promauto.With(reg))
}

func newDumpMetrics(f promauto.Factory) *DumpMetrics {
	return &DumpMetrics{
		DumpsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "dump",
			Name:      "total",
			Help:      "Total dumps, broken down by outcome.",
		}, []string{"outcome"}),
		EmittedBytesHistogram: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "circular",
			Subsystem: "dump",
			Name:      "emitted_bytes",
			Help:      "Plaintext bytes reconstructed per dump.",
			Buckets:   DefaultDumpSizeBuckets,
		}),
		DurationHistogram: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "circular",
			Subsystem: "dump",
			Name:      "duration_seconds",
			Help:      "Dump duration in seconds.",
			Buckets:   DefaultDumpDurationBuckets,
		}),
		CompressedBytesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "dump",
			Name:      "compressed_bytes_total",
			Help:      "Compressed bytes decoded by dumps, broken down by phase (a, b).",
		}, []string{"phase"}),
	}
}

// RecordDump records one finished dump.
func (m *DumpMetrics) RecordDump(outcome string, emitted int64, phaseA, phaseB int, durationSeconds float64) {
	m.DumpsTotal.WithLabelValues(outcome).Inc()
	m.EmittedBytesHistogram.Observe(float64(emitted))
	m.DurationHistogram.Observe(durationSeconds)
	m.CompressedBytesTotal.WithLabelValues(PhaseA).Add(float64(phaseA))
	m.CompressedBytesTotal.WithLabelValues(PhaseB).Add(float64(phaseB))
}
