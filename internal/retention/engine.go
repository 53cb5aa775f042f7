// Package retention implements the compressed ring-buffer retention engine.
//
// Arriving bytes are compressed into a fixed-capacity ring. When the ring
// fills, a live decompressor decodes (and discards) the oldest compressed
// bytes to release their space. On demand, a clone of that decompressor
// replays the resident bytes and emits the most recent plaintext that still
// fits, without moving the live reclaim cursor.
//
// An Engine is driven by a single goroutine. Set on the notification latch,
// Stats, State and CheckReady are the only calls safe from other goroutines.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dray-io/circular/internal/codec"
	"github.com/dray-io/circular/internal/config"
	"github.com/dray-io/circular/internal/latch"
	"github.com/dray-io/circular/internal/logging"
	"github.com/dray-io/circular/internal/metrics"
	"github.com/dray-io/circular/internal/output"
	"github.com/dray-io/circular/internal/ring"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Config fixes the engine's geometry at construction.
type Config struct {
	// Capacity is the ring size in bytes.
	Capacity int

	// ChunkSize bounds one input chunk, one frame of plaintext and both
	// scratch buffers.
	ChunkSize int

	// Codec selects the compression codec. FrameSize defaults to ChunkSize.
	Codec codec.Config

	// ExitOnEOF makes Run return once the input ends.
	ExitOnEOF bool

	// DumpOnExit makes Run dump before returning on EOF or cancellation.
	DumpOnExit bool
}

// FromConfig derives the engine configuration from the process config.
func FromConfig(c *config.Config) Config {
	return Config{
		Capacity:   c.Retention.Capacity.Int(),
		ChunkSize:  c.Retention.ChunkSize.Int(),
		Codec:      c.CodecConfig(),
		ExitOnEOF:  c.Retention.ExitOnEOF,
		DumpOnExit: c.Retention.DumpOnExit,
	}
}

// State is the engine's position in the ingest state machine.
type State int32

const (
	// StateIdle waits for input or a notification.
	StateIdle State = iota
	// StateCompressing drains an input chunk into the ring.
	StateCompressing
	// StateReclaiming frees ring space by advancing the live decompressor.
	StateReclaiming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCompressing:
		return "compressing"
	case StateReclaiming:
		return "reclaiming"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of the engine's counters.
type Stats struct {
	Capacity     int
	Resident     int
	Ingested     uint64 // plaintext bytes accepted
	Compressed   uint64 // compressed bytes committed to the ring
	Reclaimed    uint64 // compressed bytes released
	Primed       bool
	Wraps        uint64
	ReclaimSteps uint64
	Dumps        uint64
	InputFaults  uint64
	SinkFaults   uint64
}

// Engine is the retention engine.
type Engine struct {
	cfg        Config
	instanceID string

	ring    *ring.Store
	comp    codec.Compressor
	live    codec.Decompressor
	scratch []byte

	latch       *latch.Latch
	sink        output.Sink
	logger      *logging.Logger
	metrics     *metrics.RetentionMetrics
	dumpMetrics *metrics.DumpMetrics

	heartbeat      func()
	heartbeatEvery time.Duration

	state atomic.Int32

	// Counters owned by the driving goroutine; published under mu.
	ingested     uint64
	reclaimSteps uint64
	dumps        uint64
	inputFaults  uint64
	sinkFaults   uint64
	seenWraps    uint64

	mu        sync.Mutex
	published Stats
	fault     error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records ingest and reclaim metrics.
func WithMetrics(m *metrics.RetentionMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithDumpMetrics records dump metrics.
func WithDumpMetrics(m *metrics.DumpMetrics) Option {
	return func(e *Engine) { e.dumpMetrics = m }
}

// WithLatch sets the notification latch. New creates one when absent.
func WithLatch(l *latch.Latch) Option {
	return func(e *Engine) { e.latch = l }
}

// WithSink sets the dump sink. Without one, dumps decode but emit nowhere.
func WithSink(s output.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithHeartbeat makes Run call fn at start and then every interval, from the
// driving goroutine, for as long as the loop is responsive.
func WithHeartbeat(interval time.Duration, fn func()) Option {
	return func(e *Engine) {
		e.heartbeat = fn
		e.heartbeatEvery = interval
	}
}

// New builds an engine. An invalid geometry is an error; a codec that cannot
// be initialized is a *codec.Fault.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("retention: invalid capacity %d", cfg.Capacity)
	}
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("retention: invalid chunk size %d", cfg.ChunkSize)
	}
	if cfg.Codec.FrameSize == 0 {
		cfg.Codec.FrameSize = cfg.ChunkSize
	}

	comp, err := codec.NewCompressor(cfg.Codec)
	if err != nil {
		return nil, err
	}
	live, err := codec.NewDecompressor(cfg.Codec)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		ring:       ring.New(cfg.Capacity),
		comp:       comp,
		live:       live,
		scratch:    make([]byte, cfg.ChunkSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.latch == nil {
		e.latch = latch.New()
	}
	if e.logger == nil {
		e.logger = logging.Global()
	}
	e.logger = e.logger.WithComponent("engine").With(map[string]any{"instance": e.instanceID})

	if e.metrics != nil {
		e.metrics.SetRing(0, cfg.Capacity)
	}
	e.publish()

	e.logger.Infof("engine ready", map[string]any{
		"capacity":  humanize.IBytes(uint64(cfg.Capacity)),
		"chunkSize": humanize.IBytes(uint64(cfg.ChunkSize)),
		"codec":     cfg.Codec.Name,
		"level":     cfg.Codec.Level,
	})
	return e, nil
}

// InstanceID identifies this engine in logs.
func (e *Engine) InstanceID() string {
	return e.instanceID
}

// Latch returns the notification latch producers should Set.
func (e *Engine) Latch() *latch.Latch {
	return e.latch
}

// State returns the current state machine position.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
}

// Stats returns the counters as of the last completed ingest or dump.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.published
}

// Name identifies the engine in readiness reports.
func (e *Engine) Name() string {
	return "engine"
}

// CheckReady fails once a codec fault has been recorded.
func (e *Engine) CheckReady(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fault
}

// publish refreshes the stats view shared with other goroutines.
func (e *Engine) publish() {
	stats := Stats{
		Capacity:     e.ring.Capacity(),
		Resident:     e.ring.Resident(),
		Ingested:     e.ingested,
		Compressed:   e.ring.Written(),
		Reclaimed:    e.ring.Reclaimed(),
		Primed:       e.ring.Primed(),
		Wraps:        e.ring.Wraps(),
		ReclaimSteps: e.reclaimSteps,
		Dumps:        e.dumps,
		InputFaults:  e.inputFaults,
		SinkFaults:   e.sinkFaults,
	}

	e.mu.Lock()
	e.published = stats
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.SetRing(stats.Resident, stats.Capacity)
		e.metrics.RecordWraps(stats.Wraps - e.seenWraps)
	}
	e.seenWraps = stats.Wraps
}

// fail records a fatal codec fault and returns it.
func (e *Engine) fail(err error) error {
	e.mu.Lock()
	if e.fault == nil {
		e.fault = err
	}
	e.mu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordFault(metrics.FaultCodec)
	}
	e.logger.Errorf("codec fault", map[string]any{"error": err.Error()})
	return err
}

// faulted returns the recorded codec fault, if any.
func (e *Engine) faulted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fault
}

// ErrFaulted is returned by Ingest and Dump after a codec fault.
var ErrFaulted = errors.New("retention: engine stopped after codec fault")
