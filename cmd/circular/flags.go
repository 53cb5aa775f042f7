package main

import (
	"github.com/dray-io/circular/internal/config"
	"github.com/spf13/pflag"
)

// configFlags are the overrides shared by every subcommand that reads config.
type configFlags struct {
	path string

	capacity   config.ByteSize
	chunkSize  config.ByteSize
	codec      string
	level      int
	exitOnEOF  bool
	dumpOnExit bool

	output   string
	bucket   string
	prefix   string
	region   string
	endpoint string

	metricsAddr string
	healthAddr  string
	logLevel    string
	logFormat   string
}

func addConfigFlags(fs *pflag.FlagSet) *configFlags {
	f := &configFlags{}
	fs.StringVarP(&f.path, "config", "c", "", "Path to configuration file")

	fs.VarP(&f.capacity, "capacity", "s", "Ring capacity (e.g. 1MiB)")
	fs.Var(&f.chunkSize, "chunk-size", "Input chunk and frame size (e.g. 8KiB)")
	fs.StringVar(&f.codec, "codec", "", "Codec: deflate, zstd, snappy or lz4")
	fs.IntVar(&f.level, "level", 0, "Codec level")
	fs.BoolVar(&f.exitOnEOF, "exit-on-eof", false, "Exit once stdin ends")
	fs.BoolVar(&f.dumpOnExit, "dump-on-exit", false, "Dump before exiting")

	fs.StringVarP(&f.output, "output", "o", "", "Append dumps to this file (\"-\" for stdout)")
	fs.StringVar(&f.bucket, "bucket", "", "Upload dumps to this S3 bucket")
	fs.StringVar(&f.prefix, "prefix", "", "Key prefix for uploaded dumps")
	fs.StringVar(&f.region, "region", "", "S3 region")
	fs.StringVar(&f.endpoint, "endpoint", "", "S3 endpoint URL (e.g. http://localhost:9000)")

	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.StringVar(&f.healthAddr, "health-addr", "", "Serve health, stats and dump trigger on this address")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: json or text")
	return f
}

// load reads the config file and environment, applies the flags that were
// set explicitly and validates the result.
func (f *configFlags) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Read(f.path)
	if err != nil {
		return nil, err
	}

	if fs.Changed("capacity") {
		cfg.Retention.Capacity = f.capacity
	}
	if fs.Changed("chunk-size") {
		cfg.Retention.ChunkSize = f.chunkSize
	}
	if fs.Changed("codec") {
		cfg.Codec.Name = f.codec
	}
	if fs.Changed("level") {
		cfg.Codec.Level = f.level
	}
	if fs.Changed("exit-on-eof") {
		cfg.Retention.ExitOnEOF = f.exitOnEOF
	}
	if fs.Changed("dump-on-exit") {
		cfg.Retention.DumpOnExit = f.dumpOnExit
	}
	if fs.Changed("output") {
		cfg.Output.Path = f.output
	}
	if fs.Changed("bucket") {
		cfg.Output.ObjectStore.Bucket = f.bucket
	}
	if fs.Changed("prefix") {
		cfg.Output.ObjectStore.Prefix = f.prefix
	}
	if fs.Changed("region") {
		cfg.Output.ObjectStore.Region = f.region
	}
	if fs.Changed("endpoint") {
		cfg.Output.ObjectStore.Endpoint = f.endpoint
	}
	if fs.Changed("metrics-addr") {
		cfg.Observability.MetricsAddr = f.metricsAddr
	}
	if fs.Changed("health-addr") {
		cfg.Observability.HealthAddr = f.healthAddr
	}
	if fs.Changed("log-level") {
		cfg.Observability.LogLevel = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Observability.LogFormat = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
