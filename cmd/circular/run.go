package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dray-io/circular/internal/input"
	"github.com/dray-io/circular/internal/logging"
	"github.com/dray-io/circular/internal/metrics"
	"github.com/dray-io/circular/internal/retention"
	"github.com/dray-io/circular/internal/server"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
)

// The engine reports liveness every engineHeartbeat from its loop. /healthz
// degrades when no heartbeat arrives within engineStaleAfter, which covers a
// stuck ingest or a dump blocked on its sink.
const (
	engineHeartbeat  = 5 * time.Second
	engineStaleAfter = time.Minute
)

func runRun(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := addConfigFlags(fs)
	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: circular run [options]

Compress stdin into a fixed-size ring and, on %s or POST /dump,
write the most recent input that still fits to the configured output.

Options:
`, dumpSignalName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		return exitFailure
	}

	cfg, err := flags.load(fs)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load config: %v\n", err)
		return exitFailure
	}

	logger := logging.Configure(cfg.Observability.LogLevel, cfg.Observability.LogFormat, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	sink, store, err := buildSink(ctx, cfg, stdout, metrics.NewObjectStoreMetricsWithRegistry(reg))
	if err != nil {
		logger.Errorf("failed to open output", map[string]any{"error": err.Error()})
		return exitFailure
	}
	if store != nil {
		defer store.Close()
	}

	// Assigned below once the engine exists; the heartbeat only fires
	// from Run.
	var health *server.HealthServer
	engine, err := retention.New(retention.FromConfig(cfg),
		retention.WithLogger(logger),
		retention.WithHeartbeat(engineHeartbeat, func() {
			if health != nil {
				health.UpdateGoroutine("engine")
			}
		}),
		retention.WithSink(sink),
		retention.WithMetrics(metrics.NewRetentionMetricsWithRegistry(reg)),
		retention.WithDumpMetrics(metrics.NewDumpMetricsWithRegistry(reg)),
	)
	if err != nil {
		logger.Errorf("failed to create engine", map[string]any{"error": err.Error()})
		if retention.IsFatal(err) {
			return exitCodecFault
		}
		return exitFailure
	}

	if addr := cfg.Observability.MetricsAddr; addr != "" {
		ms := metrics.NewServerWithRegistry(addr, reg)
		if err := ms.Start(); err != nil {
			logger.Errorf("failed to start metrics server", map[string]any{"error": err.Error()})
			return exitFailure
		}
		defer ms.Close()
	}

	if addr := cfg.Observability.HealthAddr; addr != "" {
		health = server.NewHealthServer(addr, logger)
		health.SetGoroutineStaleAfter(engineStaleAfter)
		health.RegisterReadinessCheck(engine)
		if store != nil {
			health.RegisterReadinessCheck(server.NewObjectStoreChecker(store))
		}
		health.RegisterHandler("/dump", server.NewDumpHandler(engine.Latch(), logger))
		health.RegisterHandler("/stats", server.NewStatsHandler(func() any { return engine.Stats() }))
		health.RegisterGoroutine("engine")
		if err := health.Start(); err != nil {
			logger.Errorf("failed to start health server", map[string]any{"error": err.Error()})
			return exitFailure
		}
		defer health.Close()
	}

	stopSignals := notifyDump(engine.Latch(), logger)
	defer stopSignals()

	src := input.NewReaderSource(stdin, cfg.Retention.ChunkSize.Int(), input.WithLogger(logger.WithComponent("input")))
	err = engine.Run(ctx, src.Start(ctx))

	if health != nil {
		health.UnregisterGoroutine("engine")
		health.SetShuttingDown()
	}

	st := engine.Stats()
	fields := map[string]any{
		"ingested": humanize.IBytes(st.Ingested),
		"resident": humanize.IBytes(uint64(st.Resident)),
		"dumps":    st.Dumps,
		"wraps":    st.Wraps,
	}
	if err != nil {
		fields["error"] = err.Error()
		logger.Errorf("engine stopped", fields)
		if retention.IsFatal(err) {
			return exitCodecFault
		}
		return exitFailure
	}
	logger.Infof("engine stopped", fields)
	return exitOK
}
