package codec

import (
	"github.com/golang/snappy"
)

func init() {
	register("snappy", factory{
		// Snappy has no quality knob; any level is accepted and ignored.
		validateLevel: func(int) error { return nil },
		newEncoder:    func(int) (blockEncoder, error) { return snappyCodec{}, nil },
		newDecoder:    func() (blockDecoder, error) { return snappyCodec{}, nil },
	})
}

// snappyCodec encodes every frame as an independent snappy block.
type snappyCodec struct{}

func (snappyCodec) encode(dst, src []byte) ([]byte, error) {
	return append(dst, snappy.Encode(nil, src)...), nil
}

func (snappyCodec) decode(dst, body []byte, limit int) ([]byte, error) {
	n, err := snappy.DecodedLen(body)
	if err != nil {
		return dst, err
	}
	if n > limit {
		return dst, errPlainTooLarge
	}
	plain, err := snappy.Decode(nil, body)
	if err != nil {
		return dst, err
	}
	return append(dst, plain...), nil
}

func (snappyCodec) clone() (blockDecoder, error) {
	return snappyCodec{}, nil
}
