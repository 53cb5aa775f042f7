package codec

import (
	"encoding/binary"
	"fmt"
)

// frameCompressor frames the output of a blockEncoder.
type frameCompressor struct {
	name      string
	enc       blockEncoder
	frameSize int

	body    []byte
	pending []byte // encoded frame being drained
	sent    int    // bytes of pending already handed out

	totalIn  uint64
	totalOut uint64
}

func (c *frameCompressor) Compress(in, out []byte) (consumed, produced int, err error) {
	defer func() {
		c.totalIn += uint64(consumed)
		c.totalOut += uint64(produced)
	}()

	for {
		if c.sent < len(c.pending) {
			n := copy(out[produced:], c.pending[c.sent:])
			c.sent += n
			produced += n
			if c.sent < len(c.pending) {
				return consumed, produced, nil
			}
		}
		if consumed == len(in) || produced == len(out) {
			return consumed, produced, nil
		}

		take := min(len(in)-consumed, c.frameSize)
		if err := c.encodeFrame(in[consumed : consumed+take]); err != nil {
			return consumed, produced, &Fault{Codec: c.name, Op: "compress", Err: err}
		}
		consumed += take
	}
}

func (c *frameCompressor) encodeFrame(src []byte) error {
	body, err := c.enc.encode(c.body[:0], src)
	if err != nil {
		return err
	}
	c.body = body
	if len(body) > MaxBodySize(len(src)) {
		return fmt.Errorf("%w: %d bytes for %d input bytes", errFrameTooLarge, len(body), len(src))
	}

	var hdr [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(hdr[:], uint64(len(body)))
	frame := append(c.pending[:0], hdr[:n]...)
	c.pending = append(frame, body...)
	c.sent = 0
	return nil
}

func (c *frameCompressor) Pending() int {
	return len(c.pending) - c.sent
}

func (c *frameCompressor) TotalIn() uint64 {
	return c.totalIn
}

func (c *frameCompressor) TotalOut() uint64 {
	return c.totalOut
}

// frameDecompressor reassembles frames from arbitrary byte ranges and decodes
// them with a blockDecoder.
type frameDecompressor struct {
	name      string
	dec       blockDecoder
	frameSize int
	maxBody   int

	carry   []byte // partial frame, header included
	hdrLen  int
	bodyLen int // -1 until the header is complete

	out  []byte // decoded plaintext not yet drained
	sent int

	totalIn  uint64
	totalOut uint64
}

func (d *frameDecompressor) Decompress(in, out []byte) (consumed, produced int, err error) {
	defer func() {
		d.totalIn += uint64(consumed)
		d.totalOut += uint64(produced)
	}()

	for {
		if d.sent < len(d.out) {
			n := copy(out[produced:], d.out[d.sent:])
			d.sent += n
			produced += n
			if d.sent < len(d.out) {
				return consumed, produced, nil
			}
		}
		if consumed == len(in) || produced == len(out) {
			return consumed, produced, nil
		}

		n, complete, err := d.feed(in[consumed:])
		consumed += n
		if err != nil {
			return consumed, produced, &Fault{Codec: d.name, Op: "decompress", Err: err}
		}
		if !complete {
			continue
		}

		plain, err := d.dec.decode(d.out[:0], d.carry[d.hdrLen:], d.frameSize)
		if err != nil {
			return consumed, produced, &Fault{Codec: d.name, Op: "decompress", Err: err}
		}
		d.out = plain
		d.sent = 0
		d.carry = d.carry[:0]
		d.hdrLen = 0
		d.bodyLen = -1
	}
}

// feed moves bytes from in into the carry buffer until the current frame is
// complete or in runs out.
func (d *frameDecompressor) feed(in []byte) (n int, complete bool, err error) {
	for d.bodyLen < 0 {
		if n == len(in) {
			return n, false, nil
		}
		d.carry = append(d.carry, in[n])
		n++

		v, k := binary.Uvarint(d.carry)
		switch {
		case k == 0:
			if len(d.carry) >= binary.MaxVarintLen64 {
				return n, false, errBadHeader
			}
			continue
		case k < 0:
			return n, false, errBadHeader
		case v == 0:
			return n, false, errEmptyFrame
		case v > uint64(d.maxBody):
			return n, false, fmt.Errorf("%w: %d > %d", errFrameTooLarge, v, d.maxBody)
		}
		d.hdrLen = k
		d.bodyLen = int(v)
	}

	need := d.hdrLen + d.bodyLen - len(d.carry)
	take := min(need, len(in)-n)
	d.carry = append(d.carry, in[n:n+take]...)
	n += take
	return n, len(d.carry) == d.hdrLen+d.bodyLen, nil
}

func (d *frameDecompressor) Clone() (Decompressor, error) {
	dec, err := d.dec.clone()
	if err != nil {
		return nil, &Fault{Codec: d.name, Op: "clone", Err: err}
	}
	return &frameDecompressor{
		name:      d.name,
		dec:       dec,
		frameSize: d.frameSize,
		maxBody:   d.maxBody,
		carry:     append([]byte(nil), d.carry...),
		hdrLen:    d.hdrLen,
		bodyLen:   d.bodyLen,
		out:       append([]byte(nil), d.out[d.sent:]...),
		totalIn:   d.totalIn,
		totalOut:  d.totalOut,
	}, nil
}

func (d *frameDecompressor) TotalIn() uint64 {
	return d.totalIn
}

func (d *frameDecompressor) TotalOut() uint64 {
	return d.totalOut
}
