package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// windowSize is the deflate sliding window carried from frame to frame.
const windowSize = 32 << 10

func init() {
	register("deflate", factory{
		validateLevel: func(level int) error {
			if level < flate.HuffmanOnly || level > flate.BestCompression {
				return fmt.Errorf("deflate level %d outside [%d, %d]", level, flate.HuffmanOnly, flate.BestCompression)
			}
			return nil
		},
		newEncoder: newDeflateEncoder,
		newDecoder: func() (blockDecoder, error) { return &deflateDecoder{}, nil },
	})
}

// deflateEncoder compresses each frame as a complete deflate stream whose
// preset dictionary is the previous window of plaintext.
type deflateEncoder struct {
	w    *flate.Writer
	buf  bytes.Buffer
	hist []byte
}

func newDeflateEncoder(level int) (blockEncoder, error) {
	e := &deflateEncoder{}
	w, err := flate.NewWriter(&e.buf, level)
	if err != nil {
		return nil, err
	}
	e.w = w
	return e, nil
}

func (e *deflateEncoder) encode(dst, src []byte) ([]byte, error) {
	e.buf.Reset()
	e.w.ResetDict(&e.buf, e.hist)
	if _, err := e.w.Write(src); err != nil {
		return dst, err
	}
	if err := e.w.Close(); err != nil {
		return dst, err
	}
	e.hist = slideWindow(e.hist, src)
	return append(dst, e.buf.Bytes()...), nil
}

// deflateDecoder mirrors deflateEncoder: its history is the window of
// plaintext decoded so far.
type deflateDecoder struct {
	r    io.ReadCloser
	br   bytes.Reader
	hist []byte
}

func (d *deflateDecoder) decode(dst, body []byte, limit int) ([]byte, error) {
	d.br.Reset(body)
	if d.r == nil {
		d.r = flate.NewReaderDict(&d.br, d.hist)
	} else if err := d.r.(flate.Resetter).Reset(&d.br, d.hist); err != nil {
		return dst, err
	}

	start := len(dst)
	dst = growTo(dst, start+limit+1)
	for {
		n, err := d.r.Read(dst[len(dst):cap(dst)])
		dst = dst[:len(dst)+n]
		if len(dst)-start > limit {
			return dst[:start], errPlainTooLarge
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return dst[:start], err
		}
	}
	d.hist = slideWindow(d.hist, dst[start:])
	return dst, nil
}

func (d *deflateDecoder) clone() (blockDecoder, error) {
	return &deflateDecoder{hist: append([]byte(nil), d.hist...)}, nil
}

// slideWindow appends p to hist, keeping at most windowSize trailing bytes.
func slideWindow(hist, p []byte) []byte {
	if len(p) >= windowSize {
		return append(hist[:0], p[len(p)-windowSize:]...)
	}
	if keep := windowSize - len(p); len(hist) > keep {
		hist = append(hist[:0], hist[len(hist)-keep:]...)
	}
	return append(hist, p...)
}

// growTo returns b with capacity of at least n, preserving its contents.
func growTo(b []byte, n int) []byte {
	if cap(b) >= n {
		return b
	}
	grown := make([]byte, len(b), n)
	copy(grown, b)
	return grown
}
