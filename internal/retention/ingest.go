package retention

import (
	"fmt"
)

// Ingest compresses chunk into the ring, reclaiming the oldest compressed
// bytes whenever the ring is full. A raised notification latch is served
// before the chunk and between compress and reclaim steps. Ingest returns
// once the whole chunk is encoded and drained into the ring, so every byte
// ingested so far is decodable from the ring afterwards.
//
// Any error returned is a codec fault and is fatal.
func (e *Engine) Ingest(chunk []byte) error {
	if err := e.faulted(); err != nil {
		return fmt.Errorf("%w: %w", ErrFaulted, err)
	}
	defer e.setState(StateIdle)
	defer e.publish()

	if err := e.serveLatch(); err != nil {
		return err
	}

	e.setState(StateCompressing)
	e.ingested += uint64(len(chunk))
	plain, committed := len(chunk), 0

	for len(chunk) > 0 || e.comp.Pending() > 0 {
		if e.ring.Free() == 0 {
			e.setState(StateReclaiming)
			if err := e.reclaim(); err != nil {
				return err
			}
			e.setState(StateCompressing)
		} else {
			out := e.ring.WritableSpan()
			consumed, produced, err := e.comp.Compress(chunk, out)
			if err != nil {
				return e.fail(err)
			}
			if consumed == 0 && produced == 0 {
				return e.fail(stallFault(e.cfg.Codec.Name, "compress"))
			}
			e.ring.Commit(produced)
			chunk = chunk[consumed:]
			committed += produced
		}

		if err := e.serveLatch(); err != nil {
			return err
		}
	}

	if e.metrics != nil {
		e.metrics.RecordIngest(plain, committed)
	}
	return nil
}

// reclaim advances the live decompressor over at most one scratch of
// plaintext, releasing the compressed bytes it consumed. The plaintext is
// discarded.
func (e *Engine) reclaim() error {
	span := e.ring.ReclaimableSpan()
	consumed, produced, err := e.live.Decompress(span, e.scratch)
	if err != nil {
		return e.fail(err)
	}
	if consumed == 0 && produced == 0 {
		return e.fail(stallFault(e.cfg.Codec.Name, "reclaim"))
	}
	e.ring.Release(consumed)
	e.reclaimSteps++
	if e.metrics != nil {
		e.metrics.RecordReclaim(consumed)
	}
	return nil
}

// serveLatch performs a dump if a notification is pending. Only codec faults
// are returned; sink faults are absorbed by the dump.
func (e *Engine) serveLatch() error {
	if !e.latch.PollAndClear() {
		return nil
	}
	_, err := e.Dump()
	return err
}
