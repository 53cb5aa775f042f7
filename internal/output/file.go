package output

import (
	"io"
	"os"
)

// FileSink appends each dump to a file, opening it once per dump so that
// external rotation is picked up.
type FileSink struct {
	path string
	perm os.FileMode
}

// NewFileSink returns a sink appending to path (created with mode 0644).
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path, perm: 0o644}
}

// Path returns the target file.
func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Open(dumpID string) (io.WriteCloser, error) {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, s.perm)
	if err != nil {
		return nil, &SinkFault{Sink: "file", Op: "open", DumpID: dumpID, Err: err}
	}
	return &faultWriter{w: f, close: f.Close, sink: "file", dumpID: dumpID, location: s.path}, nil
}

var _ Sink = (*FileSink)(nil)
