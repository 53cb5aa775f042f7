package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/dray-io/circular/internal/objectstore"
)

const (
	dumpContentType   = "application/octet-stream"
	defaultPutTimeout = 30 * time.Second
)

// ObjectStoreSink uploads each dump as one object when its writer closes.
type ObjectStoreSink struct {
	store   objectstore.Store
	prefix  string
	timeout time.Duration
	now     func() time.Time
}

// ObjectStoreOption configures an ObjectStoreSink.
type ObjectStoreOption func(*ObjectStoreSink)

// WithPutTimeout bounds each upload. The default is 30s.
func WithPutTimeout(d time.Duration) ObjectStoreOption {
	return func(s *ObjectStoreSink) { s.timeout = d }
}

// WithClock replaces time.Now for key timestamps.
func WithClock(now func() time.Time) ObjectStoreOption {
	return func(s *ObjectStoreSink) { s.now = now }
}

// NewObjectStoreSink returns a sink writing <prefix>/<UTC timestamp>-<dumpID>.log objects.
func NewObjectStoreSink(store objectstore.Store, prefix string, opts ...ObjectStoreOption) *ObjectStoreSink {
	s := &ObjectStoreSink{
		store:   store,
		prefix:  prefix,
		timeout: defaultPutTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ObjectStoreSink) Open(dumpID string) (io.WriteCloser, error) {
	return &objectWriter{
		sink:   s,
		dumpID: dumpID,
		key:    objectstore.DumpKey(s.prefix, s.now(), dumpID),
	}, nil
}

// objectWriter buffers one dump. The ring bounds a dump to the plaintext of
// the resident compressed bytes, so holding it in memory is acceptable.
type objectWriter struct {
	sink   *ObjectStoreSink
	dumpID string
	key    string
	buf    bytes.Buffer
	closed bool
}

func (w *objectWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, &SinkFault{Sink: "objectstore", Op: "write", DumpID: w.dumpID, Err: errors.New("writer closed")}
	}
	return w.buf.Write(p)
}

func (w *objectWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	ctx, cancel := context.WithTimeout(context.Background(), w.sink.timeout)
	defer cancel()

	data := w.buf.Bytes()
	err := w.sink.store.PutWithOptions(ctx, w.key, bytes.NewReader(data), int64(len(data)), dumpContentType,
		objectstore.PutOptions{
			IfNoneMatch: "*",
			Metadata:    map[string]string{"dump-id": w.dumpID},
		})
	return AsSinkFault("objectstore", "close", w.dumpID, err)
}

// Location returns the object key.
func (w *objectWriter) Location() string {
	return w.key
}

var _ Sink = (*ObjectStoreSink)(nil)
