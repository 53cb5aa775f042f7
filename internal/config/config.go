// Package config provides configuration loading and validation for circular.
// Supports YAML files with environment variable overrides; the CLI applies
// flag overrides on top.
package config

// Config holds all configuration for a circular process.
type Config struct {
	Retention     RetentionConfig     `yaml:"retention"`
	Codec         CodecConfig         `yaml:"codec"`
	Output        OutputConfig        `yaml:"output"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// RetentionConfig sizes the ring and controls end-of-input behavior.
type RetentionConfig struct {
	Capacity   ByteSize `yaml:"capacity" env:"CIRCULAR_CAPACITY"`
	ChunkSize  ByteSize `yaml:"chunkSize" env:"CIRCULAR_CHUNK_SIZE"`
	ExitOnEOF  bool     `yaml:"exitOnEOF" env:"CIRCULAR_EXIT_ON_EOF"`
	DumpOnExit bool     `yaml:"dumpOnExit" env:"CIRCULAR_DUMP_ON_EXIT"`
}

type CodecConfig struct {
	Name  string `yaml:"name" env:"CIRCULAR_CODEC"`
	Level int    `yaml:"level" env:"CIRCULAR_CODEC_LEVEL"`
}

// OutputConfig selects the dump sink. An empty Path (or "-") with no bucket
// means stdout.
type OutputConfig struct {
	Path        string            `yaml:"path" env:"CIRCULAR_OUTPUT_PATH"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
}

type ObjectStoreConfig struct {
	Bucket       string `yaml:"bucket" env:"CIRCULAR_S3_BUCKET"`
	Prefix       string `yaml:"prefix" env:"CIRCULAR_S3_PREFIX"`
	Region       string `yaml:"region" env:"CIRCULAR_S3_REGION"`
	Endpoint     string `yaml:"endpoint" env:"CIRCULAR_S3_ENDPOINT"`
	AccessKey    string `yaml:"accessKey" env:"CIRCULAR_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secretKey" env:"CIRCULAR_S3_SECRET_KEY"`
	UsePathStyle bool   `yaml:"usePathStyle" env:"CIRCULAR_S3_USE_PATH_STYLE"`
}

// Enabled reports whether dumps go to the object store.
func (c ObjectStoreConfig) Enabled() bool {
	return c.Bucket != ""
}

type ObservabilityConfig struct {
	MetricsAddr string `yaml:"metricsAddr" env:"CIRCULAR_METRICS_ADDR"`
	HealthAddr  string `yaml:"healthAddr" env:"CIRCULAR_HEALTH_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"CIRCULAR_LOG_LEVEL"`
	LogFormat   string `yaml:"logFormat" env:"CIRCULAR_LOG_FORMAT"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Retention: RetentionConfig{
			Capacity:  1 << 20, // 1MiB
			ChunkSize: 8 << 10, // 8KiB
		},
		Codec: CodecConfig{
			Name:  "deflate",
			Level: 9,
		},
		Output: OutputConfig{
			ObjectStore: ObjectStoreConfig{
				Prefix: "dumps",
				Region: "us-east-1",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "json",
		},
	}
}
