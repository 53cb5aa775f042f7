// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for the retention engine:
//   - Bytes ingested, compressed into the ring and reclaimed from it
//   - Reclaim steps and ring wraparounds
//   - Ring resident and capacity gauges
//   - Dump counts by outcome, emitted bytes and dump duration
//   - Input, sink and codec faults
//   - Object store upload latency and bytes for the object store dump sink
//
// Metrics are exposed via a dedicated HTTP server on /metrics in Prometheus format.
//
// Usage:
//
//	retentionMetrics := metrics.NewRetentionMetrics()
//	dumpMetrics := metrics.NewDumpMetrics()
//
//	engine, err := retention.New(cfg,
//		retention.WithMetrics(retentionMetrics),
//		retention.WithDumpMetrics(dumpMetrics),
//	)
//
//	metricsServer := metrics.NewServer(":9090")
//	metricsServer.Start()
package metrics

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)
