package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pthm-cable/tracer/config"
	"github.com/pthm-cable/tracer/exchange"
	"github.com/pthm-cable/tracer/exchange/wsgroup"
	"github.com/pthm-cable/tracer/scenario"
	"github.com/pthm-cable/tracer/telemetry"
	"github.com/pthm-cable/tracer/tracer"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	ranks := flag.Int("ranks", 1, "Number of in-process ranks")
	listen := flag.String("listen", "", "Serve an exchange hub for -size ranks on this address")
	hub := flag.String("hub", "", "Join the exchange hub at this websocket URL as -rank of -size")
	rank := flag.Int("rank", 0, "Rank of this process when joining a hub")
	size := flag.Int("size", 1, "Number of ranks sharing a hub")
	windows := flag.Int("windows", 0, "Number of windows to run (0 = use config)")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address")

	flag.Parse()

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()
	if *outputDir != "" {
		cfg.Output.Dir = *outputDir
	}
	if *windows > 0 {
		cfg.Scenario.Windows = *windows
	}
	if *listen != "" {
		cfg.Exchange.Listen = *listen
	}
	if *hub != "" {
		cfg.Exchange.Hub = *hub
	}
	if err := cfg.Refresh(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(*metricsAddr, telemetry.MetricsHandler()); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	var err error
	switch {
	case cfg.Exchange.Listen != "":
		err = serveHub(ctx, cfg.Exchange.Listen, *size, logger)
	case cfg.Exchange.Hub != "":
		err = joinHub(ctx, cfg, cfg.Exchange.Hub, *rank, *size, logger)
	default:
		err = runLocal(ctx, cfg, *ranks, logger)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run failed", "error", err)
		os.Exit(1)
	}
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// runLocal runs n ranks as goroutines sharing an in-process group.
func runLocal(ctx context.Context, cfg *config.Config, n int, log *slog.Logger) error {
	if n < 1 {
		return fmt.Errorf("need at least one rank, got %d", n)
	}
	log.Info("starting local run", "ranks", n, "field", cfg.Scenario.Field, "windows", cfg.Scenario.Windows)
	g, ctx := errgroup.WithContext(ctx)
	for _, comm := range exchange.NewLocalGroup(n) {
		g.Go(func() error { return runRank(ctx, cfg, comm, log) })
	}
	return g.Wait()
}

// serveHub relays collectives for size remote ranks until ctx is cancelled.
func serveHub(ctx context.Context, addr string, size int, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/exchange", wsgroup.NewHub(size, log))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()

	log.Info("exchange hub listening", "addr", addr, "size", size)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}

// joinHub runs one rank of a multi-process run.
func joinHub(ctx context.Context, cfg *config.Config, url string, rank, size int, log *slog.Logger) error {
	client, err := wsgroup.Dial(ctx, url, rank, size)
	if err != nil {
		return fmt.Errorf("joining hub: %w", err)
	}
	defer client.Close()
	return runRank(ctx, cfg, client, log)
}

func runRank(ctx context.Context, cfg *config.Config, comm exchange.Communicator, log *slog.Logger) error {
	snaps, err := scenario.Snapshots(cfg, comm.Rank(), comm.Size())
	if err != nil {
		return err
	}

	om, err := telemetry.NewOutputManager(cfg.Output.Dir, comm.Rank())
	if err != nil {
		return err
	}
	defer om.Close()
	if comm.Rank() == 0 {
		if err := om.WriteConfig(cfg); err != nil {
			return err
		}
	}

	var pw *telemetry.ParticleWriter
	if cfg.Output.Particles {
		if pw, err = telemetry.NewParticleWriter(cfg.Output.Dir, comm.Rank()); err != nil {
			return err
		}
		defer pw.Close()
	}

	tr, err := tracer.New(cfg, comm,
		tracer.WithLogger(log),
		tracer.WithPerf(telemetry.NewPerfCollector(cfg.Scenario.Windows)),
		tracer.WithOutput(om),
	)
	if err != nil {
		return err
	}
	tr.SetSeeds(scenario.Seeds(cfg.Scenario))

	start := time.Now()
	if err := tr.Run(ctx, snaps, tracer.NewCSVSink(pw)); err != nil {
		return err
	}
	log.Info("run complete",
		"rank", comm.Rank(),
		"windows", tr.Windows(),
		"particles", tr.Len(),
		"elapsed", time.Since(start),
	)
	return nil
}
