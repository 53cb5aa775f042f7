package retention

import (
	"context"
	"time"

	"github.com/dray-io/circular/internal/input"
	"github.com/dray-io/circular/internal/metrics"
)

// Run drives the engine from chunks until ctx is done or, with ExitOnEOF, the
// input ends. It wakes for input and for notifications, whichever comes
// first. With a heartbeat configured it also wakes to report liveness.
// Input faults are counted and logged and the loop keeps waiting.
//
// Run returns nil on a clean stop and the codec fault otherwise.
func (e *Engine) Run(ctx context.Context, chunks <-chan input.Chunk) error {
	e.logger.Info("engine running")
	wake := e.latch.C()

	var beat <-chan time.Time
	if e.heartbeat != nil && e.heartbeatEvery > 0 {
		ticker := time.NewTicker(e.heartbeatEvery)
		defer ticker.Stop()
		beat = ticker.C
		e.heartbeat()
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping")
			return e.exitDump()

		case <-beat:
			e.heartbeat()

		case <-wake:
			if err := e.serveLatch(); err != nil {
				return err
			}

		case c, ok := <-chunks:
			switch {
			case !ok || c.EOF:
				// A nil channel blocks forever, leaving only ctx and
				// notifications as wake sources.
				chunks = nil
				e.logger.Info("input ended")
				if e.cfg.ExitOnEOF {
					return e.exitDump()
				}
			case c.Err != nil:
				e.inputFault(c.Err)
			default:
				if err := e.Ingest(c.Data); err != nil {
					return err
				}
			}
		}
	}
}

func (e *Engine) exitDump() error {
	if !e.cfg.DumpOnExit {
		return nil
	}
	if err := e.faulted(); err != nil {
		return nil
	}
	_, err := e.Dump()
	return err
}

func (e *Engine) inputFault(err error) {
	fault := &InputFault{Err: err}
	e.inputFaults++
	if e.metrics != nil {
		e.metrics.RecordFault(metrics.FaultInput)
	}
	e.publish()
	e.logger.Warnf("input fault", map[string]any{"error": fault.Error()})
}
