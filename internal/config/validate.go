package config

import (
	"fmt"

	"github.com/dray-io/circular/internal/codec"
	"github.com/dustin/go-humanize"
)

const (
	// MinCapacity is the smallest ring accepted.
	MinCapacity = 1 << 10
	// MaxChunkSize bounds the per-frame plaintext and therefore the scratch buffers.
	MaxChunkSize = 16 << 20
)

// Validate checks ranges and cross-field constraints.
func (c *Config) Validate() error {
	if c.Retention.Capacity < MinCapacity {
		return fmt.Errorf("%w: retention.capacity %s below minimum %s",
			ErrInvalidConfig, c.Retention.Capacity, humanize.IBytes(MinCapacity))
	}
	if c.Retention.ChunkSize < 1 || c.Retention.ChunkSize > MaxChunkSize {
		return fmt.Errorf("%w: retention.chunkSize %s outside [1B, %s]",
			ErrInvalidConfig, c.Retention.ChunkSize, humanize.IBytes(MaxChunkSize))
	}
	if err := codec.Validate(c.CodecConfig()); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Output.ObjectStore.Enabled() && c.Output.Path != "" && c.Output.Path != "-" {
		return fmt.Errorf("%w: output.path and output.objectStore.bucket are mutually exclusive", ErrInvalidConfig)
	}
	switch c.Observability.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: observability.logLevel %q", ErrInvalidConfig, c.Observability.LogLevel)
	}
	switch c.Observability.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%w: observability.logFormat %q", ErrInvalidConfig, c.Observability.LogFormat)
	}
	return nil
}

// CodecConfig derives the codec settings. One frame carries one input chunk.
func (c *Config) CodecConfig() codec.Config {
	return codec.Config{
		Name:      c.Codec.Name,
		Level:     c.Codec.Level,
		FrameSize: c.Retention.ChunkSize.Int(),
	}
}
