package main

import (
	"context"
	"io"

	"github.com/dray-io/circular/internal/config"
	"github.com/dray-io/circular/internal/objectstore"
	"github.com/dray-io/circular/internal/objectstore/s3"
	"github.com/dray-io/circular/internal/output"
)

// openObjectStore is replaced in tests.
var openObjectStore = func(ctx context.Context, c config.ObjectStoreConfig) (objectstore.Store, error) {
	return s3.New(ctx, s3.Config{
		Bucket:          c.Bucket,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKey,
		SecretAccessKey: c.SecretKey,
		UsePathStyle:    c.UsePathStyle,
	})
}

// buildSink picks the dump destination: the object store when a bucket is
// configured, a file when a path is, stdout otherwise. The returned store is
// nil unless one was opened; the caller closes it.
func buildSink(ctx context.Context, cfg *config.Config, stdout io.Writer, rec objectstore.MetricsRecorder) (output.Sink, objectstore.Store, error) {
	switch {
	case cfg.Output.ObjectStore.Enabled():
		store, err := openObjectStore(ctx, cfg.Output.ObjectStore)
		if err != nil {
			return nil, nil, err
		}
		var wrapped objectstore.Store = store
		if rec != nil {
			wrapped = objectstore.NewInstrumentedStore(store, rec)
		}
		return output.NewObjectStoreSink(wrapped, cfg.Output.ObjectStore.Prefix), wrapped, nil
	case cfg.Output.Path != "" && cfg.Output.Path != "-":
		return output.NewFileSink(cfg.Output.Path), nil, nil
	default:
		return output.NewWriterSink(stdout), nil, nil
	}
}
