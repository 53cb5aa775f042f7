package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// lz4 frame body layout: uvarint(plaintext length) || mode || payload.
const (
	lz4ModeRaw   byte = 0
	lz4ModeBlock byte = 1
)

var lz4Levels = []lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3, lz4.Level4, lz4.Level5,
	lz4.Level6, lz4.Level7, lz4.Level8, lz4.Level9,
}

func init() {
	register("lz4", factory{
		validateLevel: func(level int) error {
			if level < 0 || level >= len(lz4Levels) {
				return fmt.Errorf("lz4 level %d outside [0, %d]", level, len(lz4Levels)-1)
			}
			return nil
		},
		newEncoder: func(level int) (blockEncoder, error) {
			return &lz4Encoder{level: lz4Levels[level]}, nil
		},
		newDecoder: func() (blockDecoder, error) { return lz4Decoder{}, nil },
	})
}

// lz4Encoder encodes every frame as an independent lz4 block. Level 0 uses
// the fast compressor, higher levels the HC compressor.
type lz4Encoder struct {
	level   lz4.CompressionLevel
	scratch []byte
}

func (e *lz4Encoder) encode(dst, src []byte) ([]byte, error) {
	bound := lz4.CompressBlockBound(len(src))
	if cap(e.scratch) < bound {
		e.scratch = make([]byte, bound)
	}
	buf := e.scratch[:bound]

	var (
		n   int
		err error
	)
	if e.level == lz4.Fast {
		n, err = lz4.CompressBlock(src, buf, nil)
	} else {
		n, err = lz4.CompressBlockHC(src, buf, e.level, nil, nil)
	}
	if err != nil {
		return dst, err
	}

	dst = binary.AppendUvarint(dst, uint64(len(src)))
	// A zero result means the input is incompressible.
	if n == 0 || n >= len(src) {
		dst = append(dst, lz4ModeRaw)
		return append(dst, src...), nil
	}
	dst = append(dst, lz4ModeBlock)
	return append(dst, buf[:n]...), nil
}

type lz4Decoder struct{}

var errLZ4Body = errors.New("malformed lz4 frame body")

func (lz4Decoder) decode(dst, body []byte, limit int) ([]byte, error) {
	size, k := binary.Uvarint(body)
	if k <= 0 || k >= len(body) {
		return dst, errLZ4Body
	}
	if size > uint64(limit) {
		return dst, errPlainTooLarge
	}
	mode, payload := body[k], body[k+1:]

	switch mode {
	case lz4ModeRaw:
		if uint64(len(payload)) != size {
			return dst, errLZ4Body
		}
		return append(dst, payload...), nil
	case lz4ModeBlock:
		start := len(dst)
		dst = growTo(dst, start+int(size))
		out := dst[start : start+int(size)]
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return dst[:start], err
		}
		if uint64(n) != size {
			return dst[:start], fmt.Errorf("lz4 block decoded %d bytes, want %d", n, size)
		}
		return dst[:start+n], nil
	default:
		return dst, fmt.Errorf("%w: unknown mode %d", errLZ4Body, mode)
	}
}

func (lz4Decoder) clone() (blockDecoder, error) {
	return lz4Decoder{}, nil
}
