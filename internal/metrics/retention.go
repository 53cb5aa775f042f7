package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fault kind label values.
const (
	FaultInput = "input"
	FaultSink  = "sink"
	FaultCodec = "codec"
)

// RetentionMetrics holds metrics for the ingest and reclaim paths.
type RetentionMetrics struct {
	// IngestedBytesTotal counts plaintext bytes accepted from the input source.
	IngestedBytesTotal prometheus.Counter

	// CompressedBytesTotal counts compressed bytes committed to the ring.
	CompressedBytesTotal prometheus.Counter

	// ReclaimedBytesTotal counts compressed bytes released by the reclaim decompressor.
	ReclaimedBytesTotal prometheus.Counter

	// ReclaimStepsTotal counts reclaim steps taken because the ring was full.
	ReclaimStepsTotal prometheus.Counter

	// WrapsTotal counts write cursor wraparounds.
	WrapsTotal prometheus.Counter

	// ResidentBytes is the compressed byte count currently retained.
	ResidentBytes prometheus.Gauge

	// CapacityBytes is the fixed ring capacity.
	CapacityBytes prometheus.Gauge

	// FaultsTotal counts faults by kind (input, sink, codec).
	FaultsTotal *prometheus.CounterVec
}

// NewRetentionMetrics creates and registers retention metrics.
// Uses promauto for automatic registration with the default registry.
func NewRetentionMetrics() *RetentionMetrics {
	return newRetentionMetrics(promauto.With(prometheus.DefaultRegisterer))
}

// NewRetentionMetricsWithRegistry creates retention metrics registered with a custom registry.
// Useful for testing to avoid conflicts with the default registry.
func NewRetentionMetricsWithRegistry(reg prometheus.Registerer) *RetentionMetrics {
	return newRetentionMetrics(promauto.With(reg))
}

func newRetentionMetrics(f promauto.Factory) *RetentionMetrics {
	return &RetentionMetrics{
		IngestedBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "ingest",
			Name:      "bytes_total",
			Help:      "Total plaintext bytes accepted from the input.",
		}),
		CompressedBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "ring",
			Name:      "compressed_bytes_total",
			Help:      "Total compressed bytes written into the ring.",
		}),
		ReclaimedBytesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "ring",
			Name:      "reclaimed_bytes_total",
			Help:      "Total compressed bytes released for overwrite.",
		}),
		ReclaimStepsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "ring",
			Name:      "reclaim_steps_total",
			Help:      "Total reclaim steps taken while the ring was full.",
		}),
		WrapsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: "circular",
			Subsystem: "ring",
			Name:      "wraps_total",
			Help:      "Total wraparounds of the write cursor.",
		}),
		ResidentBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "circular",
			Subsystem: "ring",
			Name:      "resident_bytes",
			Help:      "Compressed bytes currently retained in the ring.",
		}),
		CapacityBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "circular",
			Subsystem: "ring",
			Name:      "capacity_bytes",
			Help:      "Fixed capacity of the ring in bytes.",
		}),
		FaultsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "circular",
			Name:      "faults_total",
			Help:      "Total faults, broken down by kind (input, sink, codec).",
		}, []string{"kind"}),
	}
}

// RecordIngest records one ingested chunk and the compressed bytes it produced.
func (m *RetentionMetrics) RecordIngest(plainBytes, compressedBytes int) {
	m.IngestedBytesTotal.Add(float64(plainBytes))
	m.CompressedBytesTotal.Add(float64(compressedBytes))
}

// RecordReclaim records one reclaim step that released n compressed bytes.
func (m *RetentionMetrics) RecordReclaim(n int) {
	m.ReclaimStepsTotal.Inc()
	m.ReclaimedBytesTotal.Add(float64(n))
}

// RecordWraps adds wraparounds observed since the last call.
func (m *RetentionMetrics) RecordWraps(n uint64) {
	if n > 0 {
		m.WrapsTotal.Add(float64(n))
	}
}

// SetRing updates the ring gauges.
func (m *RetentionMetrics) SetRing(resident, capacity int) {
	m.ResidentBytes.Set(float64(resident))
	m.CapacityBytes.Set(float64(capacity))
}

// RecordFault increments the fault counter for kind.
func (m *RetentionMetrics) RecordFault(kind string) {
	m.FaultsTotal.WithLabelValues(kind).Inc()
}
