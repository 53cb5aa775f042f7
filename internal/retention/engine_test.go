package retention

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/dray-io/circular/internal/codec"
	"github.com/dray-io/circular/internal/logging"
	"github.com/dray-io/circular/internal/metrics"
	"github.com/dray-io/circular/internal/output"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// safeBuffer is a bytes.Buffer shared between the engine and a test goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func (b *safeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

func logLines(n int) []byte {
	var buf bytes.Buffer
	for i := 0; buf.Len() < n; i++ {
		fmt.Fprintf(&buf, "2026-10-14T12:%02d:%02d level=info msg=\"request served\" seq=%d status=%d\n", (i/60)%60, i%60, i, 200+i%5)
	}
	return buf.Bytes()[:n]
}

func randomBytes(n int, seed int64) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(seed)).Read(b)
	return b
}

func testConfig(capacity, chunk int, name string, level int) Config {
	return Config{
		Capacity:  capacity,
		ChunkSize: chunk,
		Codec:     codec.Config{Name: name, Level: level},
	}
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *safeBuffer) {
	t.Helper()
	out := &safeBuffer{}
	opts = append([]Option{
		WithLogger(logging.Discard()),
		WithSink(output.NewWriterSink(out)),
	}, opts...)
	e, err := New(cfg, opts...)
	require.NoError(t, err)
	return e, out
}

// ingestAll feeds input in chunks of the configured size, checking the ring
// never holds more than its capacity.
func ingestAll(t *testing.T, e *Engine, input []byte) {
	t.Helper()
	for len(input) > 0 {
		n := min(len(input), e.cfg.ChunkSize)
		require.NoError(t, e.Ingest(input[:n]))
		input = input[n:]

		st := e.Stats()
		require.LessOrEqual(t, st.Resident, st.Capacity)
		require.Equal(t, st.Compressed-st.Reclaimed, uint64(st.Resident))
	}
}

func dump(t *testing.T, e *Engine, out *safeBuffer) ([]byte, DumpResult) {
	t.Helper()
	out.Reset()
	res, err := e.Dump()
	require.NoError(t, err)
	return out.Bytes(), res
}

func TestNewRejectsBadGeometry(t *testing.T) {
	_, err := New(testConfig(0, 4096, "deflate", 9))
	require.Error(t, err)

	_, err = New(testConfig(4096, 0, "deflate", 9))
	require.Error(t, err)
}

func TestNewCodecInitFault(t *testing.T) {
	_, err := New(testConfig(4096, 1024, "brotli", 1), WithLogger(logging.Discard()))
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrFault)
	assert.True(t, IsFatal(err))
}

func TestDumpBeforeWrap(t *testing.T) {
	e, out := newTestEngine(t, testConfig(64<<10, 4096, "deflate", 9))

	require.NoError(t, e.Ingest([]byte("hello, ")))
	require.NoError(t, e.Ingest([]byte("world\n")))

	got, res := dump(t, e, out)
	assert.Equal(t, "hello, world\n", string(got))
	assert.False(t, res.Primed)
	assert.Zero(t, res.PhaseB, "a ring that never wrapped has no second segment")
	assert.Equal(t, e.Stats().Resident, res.PhaseA)
	assert.Equal(t, int64(13), res.Emitted)
	assert.Equal(t, int64(13), res.Written)
	assert.True(t, res.Complete())
	assert.NotEmpty(t, res.ID)
}

func TestDumpEmptyEngine(t *testing.T) {
	e, out := newTestEngine(t, testConfig(4096, 1024, "zstd", 3))

	got, res := dump(t, e, out)
	assert.Empty(t, got)
	assert.Zero(t, res.Emitted)
	assert.Zero(t, res.PhaseA)
	assert.Zero(t, res.PhaseB)
	assert.Equal(t, uint64(1), e.Stats().Dumps)
}

func TestDumpIsRetainedSuffix(t *testing.T) {
	inputs := map[string][]byte{
		"lines":  logLines(4 << 20),
		"random": randomBytes(256<<10, 42),
	}
	configs := []Config{
		testConfig(64<<10, 4096, "deflate", 9),
		testConfig(64<<10, 4096, "deflate", 1),
		testConfig(32<<10, 1024, "zstd", 3),
		testConfig(48<<10, 4096, "snappy", 0),
		testConfig(40<<10, 2048, "lz4", 0),
		testConfig(40<<10, 2048, "lz4", 9),
		// Frames larger than the ring.
		testConfig(3000, 4096, "deflate", 6),
	}

	for _, cfg := range configs {
		for name, input := range inputs {
			t.Run(fmt.Sprintf("%s-%d-%d/%s", cfg.Codec.Name, cfg.Codec.Level, cfg.Capacity, name), func(t *testing.T) {
				e, out := newTestEngine(t, cfg)
				ingestAll(t, e, input)

				st := e.Stats()
				require.True(t, st.Primed)
				require.GreaterOrEqual(t, st.Wraps, uint64(2))

				got, res := dump(t, e, out)
				require.NotEmpty(t, got)
				assert.True(t, bytes.HasSuffix(input, got), "dump must be a suffix of the input")
				assert.Equal(t, int64(len(got)), res.Emitted)
				assert.True(t, res.Primed)
				assert.Equal(t, st.Resident, res.PhaseA+res.PhaseB)
			})
		}
	}
}

func TestDumpRetainsMoreThanCapacityForCompressibleInput(t *testing.T) {
	e, out := newTestEngine(t, testConfig(64<<10, 4096, "deflate", 9))
	input := logLines(10 << 20)
	ingestAll(t, e, input)

	got, _ := dump(t, e, out)
	assert.True(t, bytes.HasSuffix(input, got))
	assert.Greater(t, len(got), 64<<10)
	assert.Less(t, len(got), len(input))
}

func TestReclaimIsMonotonic(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(16<<10, 1024, "deflate", 6))
	input := logLines(512 << 10)

	var last uint64
	for len(input) > 0 {
		n := min(len(input), 1024)
		require.NoError(t, e.Ingest(input[:n]))
		input = input[n:]

		st := e.Stats()
		require.GreaterOrEqual(t, st.Reclaimed, last)
		last = st.Reclaimed
	}
	assert.Greater(t, last, uint64(0))
	assert.Greater(t, e.Stats().ReclaimSteps, uint64(0))
}

func TestDumpDoesNotDisturbEngine(t *testing.T) {
	cfg := testConfig(24<<10, 2048, "deflate", 9)
	a, outA := newTestEngine(t, cfg)
	b, outB := newTestEngine(t, cfg)

	input := logLines(600 << 10)
	half := len(input) / 2

	ingestAll(t, a, input[:half])
	ingestAll(t, b, input[:half])

	first, _ := dump(t, a, outA)
	second, _ := dump(t, a, outA)
	assert.Equal(t, first, second, "repeated dumps see the same suffix")

	ingestAll(t, a, input[half:])
	ingestAll(t, b, input[half:])

	stA, stB := a.Stats(), b.Stats()
	assert.Equal(t, stB.Resident, stA.Resident)
	assert.Equal(t, stB.Reclaimed, stA.Reclaimed)
	assert.Equal(t, stB.Compressed, stA.Compressed)

	gotA, _ := dump(t, a, outA)
	gotB, _ := dump(t, b, outB)
	assert.Equal(t, gotB, gotA)
}

func TestLatchCoalescesNotifications(t *testing.T) {
	e, out := newTestEngine(t, testConfig(8<<10, 1024, "snappy", 0))
	require.NoError(t, e.Ingest([]byte("first\n")))

	e.Latch().Set()
	e.Latch().Set()
	require.NoError(t, e.Ingest([]byte("second\n")))

	assert.Equal(t, uint64(1), e.Stats().Dumps)
	assert.Equal(t, "first\n", string(out.Bytes()), "the dump runs before the new chunk")

	require.NoError(t, e.Ingest([]byte("third\n")))
	assert.Equal(t, uint64(1), e.Stats().Dumps)
}

// relatchSink raises the engine's latch from inside the first write of each
// dump, until budget runs out, so the next dump is served from the ingest
// loop between compress and reclaim steps.
type relatchSink struct {
	e      *Engine
	budget int
	dumps  [][]byte
}

func (s *relatchSink) Open(string) (io.WriteCloser, error) {
	return &relatchWriter{sink: s}, nil
}

type relatchWriter struct {
	sink  *relatchSink
	armed bool
	buf   bytes.Buffer
}

func (w *relatchWriter) Write(p []byte) (int, error) {
	if !w.armed && w.sink.budget > 0 {
		w.sink.e.Latch().Set()
		w.sink.budget--
		w.armed = true
	}
	return w.buf.Write(p)
}

func (w *relatchWriter) Close() error {
	w.sink.dumps = append(w.sink.dumps, append([]byte(nil), w.buf.Bytes()...))
	return nil
}

func TestDumpServedInsideIngestLoop(t *testing.T) {
	configs := []Config{
		testConfig(4<<10, 512, "deflate", 6),
		testConfig(4<<10, 512, "zstd", 3),
		testConfig(4<<10, 512, "lz4", 0),
		testConfig(4<<10, 512, "snappy", 0),
	}
	const (
		prefix = 16 << 10
		chunk  = 64 << 10
		budget = 40
	)
	input := logLines(prefix + chunk + 32<<10)

	for _, cfg := range configs {
		t.Run(cfg.Codec.Name, func(t *testing.T) {
			sink := &relatchSink{budget: budget}
			a, err := New(cfg, WithLogger(logging.Discard()), WithSink(sink))
			require.NoError(t, err)
			sink.e = a
			b, outB := newTestEngine(t, cfg)

			ingestAll(t, a, input[:prefix])
			ingestAll(t, b, input[:prefix])

			// One oversized chunk: every dump after the first is served
			// between steps of this single Ingest call.
			a.Latch().Set()
			require.NoError(t, a.Ingest(input[prefix:prefix+chunk]))
			require.NoError(t, b.Ingest(input[prefix:prefix+chunk]))

			require.Len(t, sink.dumps, budget+1)
			assert.Equal(t, uint64(budget+1), a.Stats().Dumps)
			assert.Zero(t, sink.budget)

			ingested := input[:prefix+chunk]
			lastEnd := 0
			for i, d := range sink.dumps {
				require.NotEmpty(t, d, "dump %d", i)
				idx := bytes.Index(ingested, d)
				require.GreaterOrEqual(t, idx, 0, "dump %d is not a contiguous run of the input", i)
				end := idx + len(d)
				assert.GreaterOrEqual(t, end, lastEnd, "dump %d ends before its predecessor", i)
				lastEnd = end
			}
			assert.True(t, bytes.HasSuffix(input[:prefix], sink.dumps[0]), "the first dump runs before the chunk")
			assert.Greater(t, lastEnd, prefix, "later dumps see frames of the chunk in progress")

			stA, stB := a.Stats(), b.Stats()
			assert.Equal(t, stB.Compressed, stA.Compressed)
			assert.Equal(t, stB.Reclaimed, stA.Reclaimed)
			assert.Equal(t, stB.Resident, stA.Resident)
			assert.Equal(t, stB.Wraps, stA.Wraps)

			ingestAll(t, a, input[prefix+chunk:])
			ingestAll(t, b, input[prefix+chunk:])
			_, err = a.Dump()
			require.NoError(t, err)
			gotB, _ := dump(t, b, outB)
			assert.Equal(t, gotB, sink.dumps[len(sink.dumps)-1])
		})
	}
}

func TestStatsAndState(t *testing.T) {
	reg := prometheus.NewRegistry()
	rm := metrics.NewRetentionMetricsWithRegistry(reg)
	dm := metrics.NewDumpMetricsWithRegistry(reg)
	e, _ := newTestEngine(t, testConfig(8<<10, 1024, "lz4", 0), WithMetrics(rm), WithDumpMetrics(dm))

	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, "idle", e.State().String())
	assert.Equal(t, "engine", e.Name())
	assert.NotEmpty(t, e.InstanceID())
	assert.NoError(t, e.CheckReady(t.Context()))

	input := randomBytes(40<<10, 9)
	ingestAll(t, e, input)
	_, err := e.Dump()
	require.NoError(t, err)

	st := e.Stats()
	assert.Equal(t, StateIdle, e.State())
	assert.Equal(t, uint64(len(input)), st.Ingested)
	assert.Equal(t, 8<<10, st.Capacity)
	assert.Equal(t, uint64(1), st.Dumps)

	assert.Equal(t, float64(len(input)), testutil.ToFloat64(rm.IngestedBytesTotal))
	assert.Equal(t, float64(st.Compressed), testutil.ToFloat64(rm.CompressedBytesTotal))
	assert.Equal(t, float64(st.Reclaimed), testutil.ToFloat64(rm.ReclaimedBytesTotal))
	assert.Equal(t, float64(st.Wraps), testutil.ToFloat64(rm.WrapsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(dm.DumpsTotal.WithLabelValues(metrics.OutcomeComplete)))
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "compressing", StateCompressing.String())
	assert.Equal(t, "reclaiming", StateReclaiming.String())
	assert.Equal(t, "unknown", State(9).String())
}

// brokenWriter accepts limit bytes, then fails every write.
type brokenWriter struct {
	limit   int
	written int
}

func (w *brokenWriter) Write(p []byte) (int, error) {
	if w.written >= w.limit {
		return 0, errors.New("disk full")
	}
	n := min(len(p), w.limit-w.written)
	w.written += n
	if n < len(p) {
		return n, errors.New("disk full")
	}
	return n, nil
}

type failingOpenSink struct{}

func (failingOpenSink) Open(string) (io.WriteCloser, error) {
	return nil, errors.New("no such bucket")
}

func TestDumpContinuesAfterSinkFault(t *testing.T) {
	reg := prometheus.NewRegistry()
	rm := metrics.NewRetentionMetricsWithRegistry(reg)
	dm := metrics.NewDumpMetricsWithRegistry(reg)

	cfg := testConfig(16<<10, 1024, "deflate", 9)
	w := &brokenWriter{limit: 1500}
	e, err := New(cfg,
		WithLogger(logging.Discard()),
		WithSink(output.NewWriterSink(w)),
		WithMetrics(rm),
		WithDumpMetrics(dm),
	)
	require.NoError(t, err)

	ingestAll(t, e, logLines(64<<10))

	res, err := e.Dump()
	require.NoError(t, err, "sink faults are not fatal")
	assert.False(t, res.Complete())
	assert.Greater(t, res.SinkFaults, 1)
	assert.Equal(t, int64(1500), res.Written)
	assert.Greater(t, res.Emitted, res.Written, "decoding continues past the fault")

	var sf *output.SinkFault
	require.ErrorAs(t, res.SinkErr, &sf)
	assert.Equal(t, "write", sf.Op)

	assert.Equal(t, uint64(res.SinkFaults), e.Stats().SinkFaults)
	assert.Equal(t, float64(res.SinkFaults), testutil.ToFloat64(rm.FaultsTotal.WithLabelValues(metrics.FaultSink)))
	assert.Equal(t, float64(1), testutil.ToFloat64(dm.DumpsTotal.WithLabelValues(metrics.OutcomePartial)))

	// The engine keeps working.
	require.NoError(t, e.Ingest([]byte("after\n")))
	assert.NoError(t, e.CheckReady(t.Context()))
}

func TestDumpWithFailingOpen(t *testing.T) {
	e, err := New(testConfig(8<<10, 1024, "zstd", 3),
		WithLogger(logging.Discard()),
		WithSink(failingOpenSink{}),
	)
	require.NoError(t, err)
	require.NoError(t, e.Ingest([]byte("lost line\n")))

	res, err := e.Dump()
	require.NoError(t, err)
	assert.Equal(t, 1, res.SinkFaults)
	assert.Equal(t, int64(10), res.Emitted)
	assert.Zero(t, res.Written)
	assert.Empty(t, res.Location)
}

func TestDumpWithoutSink(t *testing.T) {
	e, err := New(testConfig(8<<10, 1024, "deflate", 9), WithLogger(logging.Discard()))
	require.NoError(t, err)
	require.NoError(t, e.Ingest([]byte("decoded nowhere\n")))

	res, err := e.Dump()
	require.NoError(t, err)
	assert.Equal(t, int64(16), res.Emitted)
	assert.True(t, res.Complete())
}

func TestFaultedEngineRefusesWork(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(8<<10, 1024, "deflate", 9))
	fault := &codec.Fault{Codec: "deflate", Op: "decompress", Err: errors.New("corrupt")}
	require.Equal(t, error(fault), e.fail(fault))

	err := e.Ingest([]byte("x"))
	assert.ErrorIs(t, err, ErrFaulted)
	assert.ErrorIs(t, err, codec.ErrFault)

	_, err = e.Dump()
	assert.ErrorIs(t, err, ErrFaulted)

	assert.ErrorIs(t, e.CheckReady(t.Context()), codec.ErrFault)
}
