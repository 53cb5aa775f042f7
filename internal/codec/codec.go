// Package codec adapts streaming compressors to the partial-consumption
// contract the retention engine relies on.
//
// Both directions work on caller-supplied byte regions and may stop early:
// Compress may leave input unconsumed when the output region fills, and
// Decompress may leave input unconsumed when the output scratch fills. Neither
// ever blocks.
//
// The compressed stream is a sequence of frames, each a uvarint body length
// followed by the body. A frame covers at most FrameSize plaintext bytes and is
// decodable as soon as its last byte is written, which gives every ingest a
// synchronized flush point. Codecs with a sliding window (deflate) prime each
// frame with the previous window of plaintext, so the shared history is never
// reset. A decompressor accepts frames split at arbitrary byte positions,
// including frames that straddle the physical end of the ring.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrFault matches every codec fault via errors.Is.
var ErrFault = errors.New("codec fault")

// Fault reports an initialization, compression, decompression or clone
// failure. A fault leaves the codec state suspect and is not recoverable.
type Fault struct {
	Codec string // Codec name (e.g., "deflate")
	Op    string // Operation that failed (e.g., "init", "compress")
	Err   error  // Underlying error
}

func (e *Fault) Error() string {
	return fmt.Sprintf("codec: %s %s: %v", e.Codec, e.Op, e.Err)
}

func (e *Fault) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrFault) true for any *Fault.
func (e *Fault) Is(target error) bool {
	return target == ErrFault
}

// Malformed stream errors.
var (
	errFrameTooLarge = errors.New("frame exceeds maximum size")
	errBadHeader     = errors.New("malformed frame header")
	errEmptyFrame    = errors.New("empty frame")
	errPlainTooLarge = errors.New("frame decodes beyond maximum plaintext size")
)

// Compressor turns plaintext into framed compressed bytes.
type Compressor interface {
	// Compress consumes a prefix of in and writes compressed bytes into out.
	// It stops when in is exhausted or out is full. Encoded bytes that did not
	// fit are kept and drained first on the next call.
	Compress(in, out []byte) (consumed, produced int, err error)

	// Pending returns the number of encoded bytes waiting for output space.
	Pending() int

	// TotalIn returns the plaintext bytes consumed so far.
	TotalIn() uint64

	// TotalOut returns the compressed bytes produced so far.
	TotalOut() uint64
}

// Decompressor turns framed compressed bytes back into plaintext.
type Decompressor interface {
	// Decompress consumes a prefix of in and writes plaintext into out. It
	// stops when in is exhausted or out is full. Incomplete frames are carried
	// over to the next call.
	Decompress(in, out []byte) (consumed, produced int, err error)

	// Clone returns an independent decompressor holding a copy of this one's
	// history, partial-frame carry and undrained output. Advancing the clone
	// never affects the original.
	Clone() (Decompressor, error)

	// TotalIn returns the compressed bytes consumed so far.
	TotalIn() uint64

	// TotalOut returns the plaintext bytes produced so far.
	TotalOut() uint64
}

// Config selects and tunes a codec.
type Config struct {
	// Name is the codec name: deflate, zstd, snappy or lz4.
	Name string

	// Level is the codec quality knob. Its range depends on the codec.
	Level int

	// FrameSize is the maximum plaintext carried by one frame.
	FrameSize int
}

// blockEncoder compresses one frame body.
type blockEncoder interface {
	// encode appends the compressed form of src to dst.
	encode(dst, src []byte) ([]byte, error)
}

// blockDecoder decompresses one frame body.
type blockDecoder interface {
	// decode appends the plaintext of body to dst. It fails if the plaintext
	// would exceed limit bytes.
	decode(dst, body []byte, limit int) ([]byte, error)

	// clone returns a decoder with a copy of the history.
	clone() (blockDecoder, error)
}

type factory struct {
	validateLevel func(level int) error
	newEncoder    func(level int) (blockEncoder, error)
	newDecoder    func() (blockDecoder, error)
}

var factories = map[string]factory{}

func register(name string, f factory) {
	factories[name] = f
}

// Names returns the registered codec names in sorted order.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that cfg names a known codec with a supported level.
func Validate(cfg Config) error {
	_, err := lookup(cfg, "init")
	return err
}

func lookup(cfg Config, op string) (factory, error) {
	f, ok := factories[cfg.Name]
	if !ok {
		return factory{}, &Fault{Codec: cfg.Name, Op: op, Err: fmt.Errorf("unknown codec %q (known: %v)", cfg.Name, Names())}
	}
	if cfg.FrameSize <= 0 {
		return factory{}, &Fault{Codec: cfg.Name, Op: op, Err: fmt.Errorf("invalid frame size %d", cfg.FrameSize)}
	}
	if err := f.validateLevel(cfg.Level); err != nil {
		return factory{}, &Fault{Codec: cfg.Name, Op: op, Err: err}
	}
	return f, nil
}

// NewCompressor creates a compressor for cfg.
func NewCompressor(cfg Config) (Compressor, error) {
	f, err := lookup(cfg, "init")
	if err != nil {
		return nil, err
	}
	enc, err := f.newEncoder(cfg.Level)
	if err != nil {
		return nil, &Fault{Codec: cfg.Name, Op: "init", Err: err}
	}
	return &frameCompressor{
		name:      cfg.Name,
		enc:       enc,
		frameSize: cfg.FrameSize,
	}, nil
}

// NewDecompressor creates a decompressor for cfg.
func NewDecompressor(cfg Config) (Decompressor, error) {
	f, err := lookup(cfg, "init")
	if err != nil {
		return nil, err
	}
	dec, err := f.newDecoder()
	if err != nil {
		return nil, &Fault{Codec: cfg.Name, Op: "init", Err: err}
	}
	return &frameDecompressor{
		name:      cfg.Name,
		dec:       dec,
		frameSize: cfg.FrameSize,
		maxBody:   MaxBodySize(cfg.FrameSize),
		bodyLen:   -1,
	}, nil
}

// MaxBodySize bounds the compressed body of a frame carrying n plaintext
// bytes, for every registered codec.
func MaxBodySize(n int) int {
	return n + n/6 + 64
}

// MaxFrameSize bounds a whole frame (header and body) carrying n plaintext bytes.
func MaxFrameSize(n int) int {
	return binary.MaxVarintLen64 + MaxBodySize(n)
}
