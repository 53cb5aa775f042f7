// Package output provides the dump sinks that receive reconstructed bytes.
//
// A Sink opens one writer per dump. Writers report every failure as a
// *SinkFault; the dump treats those as best-effort and carries on.
package output

import (
	"errors"
	"fmt"
	"io"
)

// Sink receives one dump per Open. The returned writer is closed when the
// dump finishes, even after write faults.
type Sink interface {
	Open(dumpID string) (io.WriteCloser, error)
}

// SinkFault reports a failed sink operation.
type SinkFault struct {
	Sink   string // sink kind: "writer", "file", "objectstore"
	Op     string // "open", "write", "close"
	DumpID string
	Err    error
}

func (e *SinkFault) Error() string {
	return fmt.Sprintf("output: %s sink %s (dump %s): %v", e.Sink, e.Op, e.DumpID, e.Err)
}

func (e *SinkFault) Unwrap() error {
	return e.Err
}

// AsSinkFault returns err unchanged when it already is a *SinkFault and
// wraps it otherwise. A nil err stays nil.
func AsSinkFault(sink, op, dumpID string, err error) error {
	if err == nil {
		return nil
	}
	var sf *SinkFault
	if errors.As(err, &sf) {
		return err
	}
	return &SinkFault{Sink: sink, Op: op, DumpID: dumpID, Err: err}
}

// Locator is implemented by dump writers that know where their bytes land.
type Locator interface {
	Location() string
}

// Location returns w's destination, or "" when it has none to report.
func Location(w io.Writer) string {
	if l, ok := w.(Locator); ok {
		return l.Location()
	}
	return ""
}

// faultWriter wraps a writer so errors surface as SinkFaults.
type faultWriter struct {
	w        io.Writer
	close    func() error
	sink     string
	dumpID   string
	location string
}

func (f *faultWriter) Location() string {
	return f.location
}

func (f *faultWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	if err == nil && n < len(p) {
		err = io.ErrShortWrite
	}
	return n, AsSinkFault(f.sink, "write", f.dumpID, err)
}

func (f *faultWriter) Close() error {
	if f.close == nil {
		return nil
	}
	return AsSinkFault(f.sink, "close", f.dumpID, f.close())
}

// WriterSink writes every dump to one shared writer, stdout by default.
type WriterSink struct {
	w io.Writer
}

// NewWriterSink returns a sink over w. Closing a dump never closes w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Open(dumpID string) (io.WriteCloser, error) {
	return &faultWriter{w: s.w, sink: "writer", dumpID: dumpID}, nil
}

var _ Sink = (*WriterSink)(nil)
