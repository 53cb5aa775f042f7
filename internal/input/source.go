// Package input turns a blocking reader into a stream of bounded chunks.
//
// One goroutine owns the reads. The consumer selects on the returned channel
// alongside its other wake sources.
package input

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dray-io/circular/internal/logging"
)

// DefaultRetryDelay is the pause after a read error before reading again.
const DefaultRetryDelay = 100 * time.Millisecond

// Chunk is one delivery from the source. Exactly one of Data, Err or EOF is
// meaningful: Data holds bytes read, Err a read failure after which reading
// resumes, EOF the end of the stream (the channel closes right after).
type Chunk struct {
	Data []byte
	Err  error
	EOF  bool
}

// ReaderSource reads r in chunks of at most chunkSize bytes.
type ReaderSource struct {
	r          io.Reader
	chunkSize  int
	retryDelay time.Duration
	maxErrors  int
	logger     *logging.Logger
}

// Option configures a ReaderSource.
type Option func(*ReaderSource)

// WithRetryDelay sets the pause after a read error.
func WithRetryDelay(d time.Duration) Option {
	return func(s *ReaderSource) { s.retryDelay = d }
}

// WithMaxConsecutiveErrors ends the stream with EOF after n read errors in a
// row. Zero, the default, retries forever.
func WithMaxConsecutiveErrors(n int) Option {
	return func(s *ReaderSource) { s.maxErrors = n }
}

// WithLogger sets the logger used for read errors.
func WithLogger(l *logging.Logger) Option {
	return func(s *ReaderSource) { s.logger = l }
}

// NewReaderSource returns a source over r. chunkSize values below 1 mean 1.
func NewReaderSource(r io.Reader, chunkSize int, opts ...Option) *ReaderSource {
	if chunkSize < 1 {
		chunkSize = 1
	}
	s := &ReaderSource{
		r:          r,
		chunkSize:  chunkSize,
		retryDelay: DefaultRetryDelay,
		logger:     logging.Global().WithComponent("input"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the read goroutine. The channel is unbuffered so at most one
// chunk is in flight; it closes after EOF or when ctx is done. A read already
// blocked in r cannot be interrupted; cancellation takes effect when it returns.
func (s *ReaderSource) Start(ctx context.Context) <-chan Chunk {
	ch := make(chan Chunk)
	go s.run(ctx, ch)
	return ch
}

func (s *ReaderSource) run(ctx context.Context, ch chan<- Chunk) {
	defer close(ch)

	send := func(c Chunk) bool {
		select {
		case ch <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	consecutive := 0
	for {
		if ctx.Err() != nil {
			return
		}

		// Each chunk gets its own buffer; the consumer may hold it.
		buf := make([]byte, s.chunkSize)
		n, err := s.r.Read(buf)
		if n > 0 {
			consecutive = 0
			if !send(Chunk{Data: buf[:n]}) {
				return
			}
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			send(Chunk{EOF: true})
			return
		}

		consecutive++
		s.logger.Warnf("read failed", map[string]any{
			"error":       err.Error(),
			"consecutive": consecutive,
		})
		if !send(Chunk{Err: err}) {
			return
		}
		if s.maxErrors > 0 && consecutive >= s.maxErrors {
			send(Chunk{EOF: true})
			return
		}

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
