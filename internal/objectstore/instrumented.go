package objectstore

import (
	"context"
	"io"
	"time"
)

// MetricsRecorder records object store operation metrics. It keeps this
// package decoupled from the metrics package.
type MetricsRecorder interface {
	RecordPut(durationSeconds float64, success bool, bytes int64)
	RecordHead(durationSeconds float64, success bool)
}

// InstrumentedStore wraps a Store and records metrics for writes and heads.
// Reads and listing pass through.
type InstrumentedStore struct {
	Store
	metrics MetricsRecorder
}

// NewInstrumentedStore wraps store. A nil metrics passes every call through.
func NewInstrumentedStore(store Store, metrics MetricsRecorder) *InstrumentedStore {
	return &InstrumentedStore{Store: store, metrics: metrics}
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	return s.PutWithOptions(ctx, key, reader, size, contentType, PutOptions{})
}

func (s *InstrumentedStore) PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error {
	start := time.Now()
	err := s.Store.PutWithOptions(ctx, key, reader, size, contentType, opts)
	if s.metrics != nil {
		s.metrics.RecordPut(time.Since(start).Seconds(), err == nil, size)
	}
	return err
}

func (s *InstrumentedStore) Head(ctx context.Context, key string) (ObjectMeta, error) {
	start := time.Now()
	meta, err := s.Store.Head(ctx, key)
	if s.metrics != nil {
		s.metrics.RecordHead(time.Since(start).Seconds(), err == nil)
	}
	return meta, err
}

var _ Store = (*InstrumentedStore)(nil)
