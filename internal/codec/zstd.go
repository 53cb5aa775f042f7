package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

func init() {
	register("zstd", factory{
		validateLevel: func(level int) error {
			if level < 1 || level > 22 {
				return fmt.Errorf("zstd level %d outside [1, 22]", level)
			}
			return nil
		},
		newEncoder: func(level int) (blockEncoder, error) {
			enc, err := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
				zstd.WithEncoderConcurrency(1),
			)
			if err != nil {
				return nil, err
			}
			return &zstdEncoder{enc: enc}, nil
		},
		newDecoder: func() (blockDecoder, error) {
			dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
			if err != nil {
				return nil, err
			}
			return &zstdDecoder{dec: dec}, nil
		},
	})
}

// zstdEncoder encodes every frame as an independent zstd frame.
type zstdEncoder struct {
	enc *zstd.Encoder
}

func (e *zstdEncoder) encode(dst, src []byte) ([]byte, error) {
	return e.enc.EncodeAll(src, dst), nil
}

// zstdDecoder keeps no history between frames. DecodeAll is safe for
// concurrent use, so clones share the underlying decoder.
type zstdDecoder struct {
	dec *zstd.Decoder
}

func (d *zstdDecoder) decode(dst, body []byte, limit int) ([]byte, error) {
	start := len(dst)
	out, err := d.dec.DecodeAll(body, dst)
	if err != nil {
		return dst[:start], err
	}
	if len(out)-start > limit {
		return dst[:start], errPlainTooLarge
	}
	return out, nil
}

func (d *zstdDecoder) clone() (blockDecoder, error) {
	return &zstdDecoder{dec: d.dec}, nil
}
