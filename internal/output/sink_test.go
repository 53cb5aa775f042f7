package output

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dray-io/circular/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingWriter struct {
	err   error
	short bool
}

func (f failingWriter) Write(p []byte) (int, error) {
	if f.short {
		return len(p) / 2, nil
	}
	return 0, f.err
}

func TestWriterSink(t *testing.T) {
	var buf strings.Builder
	sink := NewWriterSink(&buf)

	for _, id := range []string{"d1", "d2"} {
		w, err := sink.Open(id)
		require.NoError(t, err)
		_, err = io.WriteString(w, id+"\n")
		require.NoError(t, err)
		require.NoError(t, w.Close())
		assert.Equal(t, "", Location(w))
	}
	assert.Equal(t, "d1\nd2\n", buf.String())
}

func TestWriterSinkFaults(t *testing.T) {
	boom := errors.New("broken pipe")

	w, err := NewWriterSink(failingWriter{err: boom}).Open("d1")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))

	var sf *SinkFault
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "writer", sf.Sink)
	assert.Equal(t, "write", sf.Op)
	assert.Equal(t, "d1", sf.DumpID)
	assert.ErrorIs(t, err, boom)

	w, err = NewWriterSink(failingWriter{short: true}).Open("d2")
	require.NoError(t, err)
	n, err := w.Write([]byte("abcd"))
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestAsSinkFault(t *testing.T) {
	assert.NoError(t, AsSinkFault("file", "write", "d", nil))

	inner := &SinkFault{Sink: "file", Op: "open", DumpID: "d", Err: os.ErrPermission}
	assert.Same(t, inner, AsSinkFault("writer", "write", "x", inner))

	wrapped := AsSinkFault("writer", "write", "x", os.ErrClosed)
	var sf *SinkFault
	require.ErrorAs(t, wrapped, &sf)
	assert.Equal(t, `output: writer sink write (dump x): file already closed`, wrapped.Error())
}

func TestFileSinkAppendsPerDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dumps.log")
	sink := NewFileSink(path)
	assert.Equal(t, path, sink.Path())

	for _, chunk := range []string{"first dump\n", "second dump\n"} {
		w, err := sink.Open("d")
		require.NoError(t, err)
		assert.Equal(t, path, Location(w))
		_, err = io.WriteString(w, chunk)
		require.NoError(t, err)
		require.NoError(t, w.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "first dump\nsecond dump\n", string(data))
}

func TestFileSinkOpenFault(t *testing.T) {
	sink := NewFileSink(filepath.Join(t.TempDir(), "missing-dir", "dumps.log"))

	_, err := sink.Open("d9")
	var sf *SinkFault
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "open", sf.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestObjectStoreSink(t *testing.T) {
	store := objectstore.NewMockStore()
	at := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	sink := NewObjectStoreSink(store, "dumps", WithClock(func() time.Time { return at }))

	w, err := sink.Open("abc")
	require.NoError(t, err)
	_, err = io.WriteString(w, "part one ")
	require.NoError(t, err)
	_, err = io.WriteString(w, "part two")
	require.NoError(t, err)
	assert.Empty(t, store.Keys(), "nothing uploads before Close")

	require.NoError(t, w.Close())
	require.NoError(t, w.Close(), "second close is a no-op")
	assert.Equal(t, 1, store.PutCount())

	key := "dumps/20261014T090000.000Z-abc.log"
	assert.Equal(t, key, Location(w))
	require.Equal(t, []string{key}, store.Keys())

	meta, err := store.Head(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, "abc", meta.Metadata["dump-id"])

	rc, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "part one part two", string(data))

	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
}

func TestObjectStoreSinkUploadFault(t *testing.T) {
	store := objectstore.NewMockStore()
	store.FailPuts(objectstore.ErrAccessDenied)
	sink := NewObjectStoreSink(store, "dumps", WithPutTimeout(time.Second))

	w, err := sink.Open("d")
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)

	err = w.Close()
	var sf *SinkFault
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "objectstore", sf.Sink)
	assert.Equal(t, "close", sf.Op)
	assert.ErrorIs(t, err, objectstore.ErrAccessDenied)
}
