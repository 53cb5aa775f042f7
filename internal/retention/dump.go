package retention

import (
	"fmt"
	"io"
	"time"

	"github.com/dray-io/circular/internal/codec"
	"github.com/dray-io/circular/internal/logging"
	"github.com/dray-io/circular/internal/metrics"
	"github.com/dray-io/circular/internal/output"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// DumpResult describes one reconstruction.
type DumpResult struct {
	ID       string
	Location string // sink-reported destination, if any

	// PhaseA and PhaseB are the compressed bytes replayed from the reclaim
	// cursor towards the writer and from the ring start, respectively.
	PhaseA int
	PhaseB int

	// Primed reports whether any reclamation had happened before the dump.
	Primed bool

	Emitted    int64 // plaintext bytes reconstructed
	Written    int64 // bytes the sink accepted
	SinkFaults int
	SinkErr    error // first sink fault, if any

	Duration time.Duration
}

// Complete reports whether every reconstructed byte reached the sink.
func (r DumpResult) Complete() bool {
	return r.SinkFaults == 0
}

// Dump reconstructs the resident suffix of the stream and emits it to the
// sink. It reads a snapshot of the ring through a clone of the live
// decompressor, so neither the reclaim cursor nor later ingests are affected.
// Sink faults are counted and logged; the dump keeps emitting. Any returned
// error is a codec fault and is fatal.
func (e *Engine) Dump() (DumpResult, error) {
	if err := e.faulted(); err != nil {
		return DumpResult{}, fmt.Errorf("%w: %w", ErrFaulted, err)
	}

	start := time.Now()
	snap := e.ring.Snapshot()
	first, second := snap.Segments()
	res := DumpResult{
		ID:     uuid.NewString(),
		PhaseA: first.Len,
		PhaseB: second.Len,
		Primed: snap.Primed(),
	}
	log := e.logger.WithDumpID(res.ID)

	clone, err := e.live.Clone()
	if err != nil {
		return res, e.fail(err)
	}

	d := &dumper{
		name:    e.cfg.Codec.Name,
		dec:     clone,
		scratch: make([]byte, e.cfg.ChunkSize),
		res:     &res,
		log:     log,
	}
	if e.sink != nil {
		w, err := e.sink.Open(res.ID)
		if err != nil {
			d.fault(output.AsSinkFault("sink", "open", res.ID, err))
		} else {
			d.w = w
			res.Location = output.Location(w)
		}
	}

	err = d.replay(e.ring.Bytes(first))
	if err == nil {
		err = d.replay(e.ring.Bytes(second))
	}
	if err == nil {
		err = d.flush()
	}
	if d.w != nil {
		if cerr := d.w.Close(); cerr != nil {
			d.fault(output.AsSinkFault("sink", "close", res.ID, cerr))
		}
	}
	res.Duration = time.Since(start)

	e.dumps++
	e.sinkFaults += uint64(res.SinkFaults)
	if e.metrics != nil {
		for i := 0; i < res.SinkFaults; i++ {
			e.metrics.RecordFault(metrics.FaultSink)
		}
	}

	if err != nil {
		if e.dumpMetrics != nil {
			e.dumpMetrics.RecordDump(metrics.OutcomeFailed, res.Emitted, res.PhaseA, res.PhaseB, res.Duration.Seconds())
		}
		e.publish()
		return res, e.fail(err)
	}

	outcome := metrics.OutcomeComplete
	if !res.Complete() {
		outcome = metrics.OutcomePartial
	}
	if e.dumpMetrics != nil {
		e.dumpMetrics.RecordDump(outcome, res.Emitted, res.PhaseA, res.PhaseB, res.Duration.Seconds())
	}
	e.publish()

	fields := map[string]any{
		"outcome":  outcome,
		"emitted":  humanize.IBytes(uint64(res.Emitted)),
		"written":  res.Written,
		"phaseA":   res.PhaseA,
		"phaseB":   res.PhaseB,
		"primed":   res.Primed,
		"duration": res.Duration.String(),
	}
	if res.Location != "" {
		fields["location"] = res.Location
	}
	log.Infof("dump finished", fields)
	return res, nil
}

// dumper replays compressed ring segments through a cloned decompressor.
type dumper struct {
	name    string
	dec     codec.Decompressor
	scratch []byte
	w       io.WriteCloser
	res     *DumpResult
	log     *logging.Logger
}

// replay decodes in completely, emitting every scratch-full as it fills.
func (d *dumper) replay(in []byte) error {
	for len(in) > 0 {
		consumed, produced, err := d.dec.Decompress(in, d.scratch)
		if err != nil {
			return err
		}
		if consumed == 0 && produced == 0 {
			return stallFault(d.name, "dump")
		}
		d.emit(d.scratch[:produced])
		in = in[consumed:]
	}
	return nil
}

// flush drains plaintext still held by the decompressor.
func (d *dumper) flush() error {
	for {
		_, produced, err := d.dec.Decompress(nil, d.scratch)
		if err != nil {
			return err
		}
		if produced == 0 {
			return nil
		}
		d.emit(d.scratch[:produced])
	}
}

func (d *dumper) emit(p []byte) {
	if len(p) == 0 {
		return
	}
	d.res.Emitted += int64(len(p))
	if d.w == nil {
		return
	}
	n, err := d.w.Write(p)
	d.res.Written += int64(n)
	if err != nil {
		d.fault(output.AsSinkFault("sink", "write", d.res.ID, err))
	}
}

// fault records a sink fault. Only the first one per dump is logged.
func (d *dumper) fault(err error) {
	d.res.SinkFaults++
	if d.res.SinkErr != nil {
		return
	}
	d.res.SinkErr = err
	d.log.Warnf("sink fault, continuing dump", map[string]any{"error": err.Error()})
}
