package retention

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dray-io/circular/internal/input"
	"github.com/dray-io/circular/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunExitsOnEOFWithDump(t *testing.T) {
	cfg := testConfig(8<<10, 1024, "deflate", 9)
	cfg.ExitOnEOF = true
	cfg.DumpOnExit = true
	e, out := newTestEngine(t, cfg)

	chunks := make(chan input.Chunk, 3)
	chunks <- input.Chunk{Data: []byte("alpha\n")}
	chunks <- input.Chunk{Data: []byte("beta\n")}
	chunks <- input.Chunk{EOF: true}
	close(chunks)

	require.NoError(t, e.Run(t.Context(), chunks))
	assert.Equal(t, "alpha\nbeta\n", string(out.Bytes()))
	assert.Equal(t, uint64(1), e.Stats().Dumps)
}

func TestRunExitsOnClosedChannel(t *testing.T) {
	cfg := testConfig(8<<10, 1024, "zstd", 3)
	cfg.ExitOnEOF = true
	e, out := newTestEngine(t, cfg)

	chunks := make(chan input.Chunk, 1)
	chunks <- input.Chunk{Data: []byte("gone\n")}
	close(chunks)

	require.NoError(t, e.Run(t.Context(), chunks))
	assert.Empty(t, out.Bytes(), "no dump without DumpOnExit")
	assert.Equal(t, uint64(5), e.Stats().Ingested)
}

func TestRunKeepsServingAfterEOF(t *testing.T) {
	e, out := newTestEngine(t, testConfig(8<<10, 1024, "snappy", 0))

	chunks := make(chan input.Chunk, 2)
	chunks <- input.Chunk{Data: []byte("still here\n")}
	chunks <- input.Chunk{EOF: true}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, chunks) }()

	require.Eventually(t, func() bool {
		return e.Stats().Ingested == 11
	}, 5*time.Second, 5*time.Millisecond)

	e.Latch().Set()
	require.Eventually(t, func() bool {
		return e.Stats().Dumps == 1
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "still here\n", string(out.Bytes()))

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunCountsInputFaults(t *testing.T) {
	cfg := testConfig(8<<10, 1024, "lz4", 0)
	cfg.ExitOnEOF = true
	e, _ := newTestEngine(t, cfg)

	chunks := make(chan input.Chunk, 4)
	chunks <- input.Chunk{Data: []byte("one\n")}
	chunks <- input.Chunk{Err: errors.New("read: connection reset")}
	chunks <- input.Chunk{Data: []byte("two\n")}
	chunks <- input.Chunk{EOF: true}

	require.NoError(t, e.Run(t.Context(), chunks))
	st := e.Stats()
	assert.Equal(t, uint64(1), st.InputFaults)
	assert.Equal(t, uint64(8), st.Ingested)
}

func TestRunDumpsOnCancel(t *testing.T) {
	cfg := testConfig(8<<10, 1024, "deflate", 6)
	cfg.DumpOnExit = true
	e, out := newTestEngine(t, cfg)

	chunks := make(chan input.Chunk)
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, chunks) }()

	chunks <- input.Chunk{Data: []byte("last words\n")}
	require.Eventually(t, func() bool {
		return e.Stats().Ingested == 11
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "last words\n", string(out.Bytes()))
}

func TestRunReturnsCodecFault(t *testing.T) {
	e, _ := newTestEngine(t, testConfig(8<<10, 1024, "deflate", 9))
	_ = e.fail(stallFault("deflate", "compress"))

	chunks := make(chan input.Chunk, 1)
	chunks <- input.Chunk{Data: []byte("x")}

	err := e.Run(t.Context(), chunks)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.ErrorIs(t, err, ErrFaulted)
}

func TestRunHeartbeatKeepsGoroutineFresh(t *testing.T) {
	health := server.NewHealthServer(":0", nil)
	health.SetGoroutineStaleAfter(250 * time.Millisecond)
	health.RegisterGoroutine("engine")

	var beats atomic.Int32
	e, _ := newTestEngine(t, testConfig(8<<10, 1024, "deflate", 6),
		WithHeartbeat(10*time.Millisecond, func() {
			beats.Add(1)
			health.UpdateGoroutine("engine")
		}))

	// No input at all: only the heartbeat wakes the loop.
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, nil) }()

	require.Eventually(t, func() bool { return beats.Load() >= 30 }, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, "ok", health.CheckHealth().Status)

	cancel()
	require.NoError(t, <-done)
	stopped := beats.Load()

	require.Eventually(t, func() bool {
		return health.CheckHealth().Status == "degraded"
	}, 5*time.Second, 10*time.Millisecond, "a stopped loop goes stale")
	assert.Equal(t, stopped, beats.Load(), "no heartbeat after Run returns")
}

func TestRunWithoutHeartbeat(t *testing.T) {
	var beats atomic.Int32
	e, _ := newTestEngine(t, testConfig(8<<10, 1024, "snappy", 0),
		WithHeartbeat(0, func() { beats.Add(1) }))

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, e.Run(ctx, nil))
	assert.Zero(t, beats.Load(), "a zero interval disables the heartbeat")
}
