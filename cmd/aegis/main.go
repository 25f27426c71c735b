package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lucid-vigil/aegis/pkg/api"
	"github.com/lucid-vigil/aegis/pkg/config"
	"github.com/lucid-vigil/aegis/pkg/events"
	"github.com/lucid-vigil/aegis/pkg/knowledge"
	"github.com/lucid-vigil/aegis/pkg/logger"
	"github.com/lucid-vigil/aegis/pkg/metrics"
	"github.com/lucid-vigil/aegis/pkg/pipeline"
	"github.com/lucid-vigil/aegis/pkg/scheduler"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "aegis",
		Short: "Automated security and error response pipeline",
		Long: "Aegis ingests heterogeneous signals (build failures, runtime errors, " +
			"monitoring alerts, security-scan findings), analyzes them for threats, " +
			"and produces risk-weighted remediation decisions.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	log := logger.InitLogger(cfg.LogLevel)
	log.Info().
		Str("log_level", cfg.LogLevel).
		Str("api_port", cfg.APIPort).
		Msg("Aegis starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
		cancel()
	}()

	bus := events.NewEventBus(log, 1000)

	m := metrics.NewPipeline()
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); err != nil {
		return err
	}

	p := pipeline.New(log, bus, cfg, pipeline.Options{Metrics: m})
	bus.Start(ctx)
	defer bus.Stop()

	startBackground(ctx, log, cfg, p)

	server := api.NewServer(log, cfg.APIPort, registry, bus)
	server.Start()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("API server shutdown failed")
	}

	log.Info().Msg("Aegis stopped.")
	return nil
}

// startBackground launches the periodic knowledge refresh and, when a feed
// directory is configured, the filesystem watcher for intelligence drops.
func startBackground(ctx context.Context, log zerolog.Logger, cfg *config.Config, p *pipeline.Pipeline) {
	sched := scheduler.NewScheduler(log)
	sched.Register(knowledge.NewRefreshTask(p.Knowledge), cfg.Knowledge.RefreshInterval)
	sched.Start(ctx)

	if cfg.Knowledge.FeedDirectory != "" {
		watcher, err := knowledge.NewFeedWatcher(log, p.Knowledge, cfg.Knowledge.FeedDirectory)
		if err != nil {
			log.Error().Err(err).Str("dir", cfg.Knowledge.FeedDirectory).Msg("Feed watcher unavailable")
			return
		}
		watcher.Start(ctx)
	}
}
