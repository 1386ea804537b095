package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/buoy-season-stats/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/buoy-season-stats/internal/adapter/kafka"
	"github.com/couchcryptid/buoy-season-stats/internal/adapter/ndbc"
	"github.com/couchcryptid/buoy-season-stats/internal/config"
	"github.com/couchcryptid/buoy-season-stats/internal/observability"
	"github.com/couchcryptid/buoy-season-stats/internal/pipeline"
	"github.com/couchcryptid/buoy-season-stats/internal/schedule"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Refresh the configured report jobs on a schedule and serve them over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, nil)
	metrics := newMetrics()

	jobs, err := schedule.LoadJobs(cfg.JobsFile)
	if err != nil {
		return err
	}

	fetcher, err := ndbc.NewCachedFetcher(newArchiveClient(cfg, metrics, logger), cfg.FetchCacheSize, metrics)
	if err != nil {
		return err
	}
	p := pipeline.New(fetcher, logger, metrics, cfg.FetchConcurrency)

	// Report sink (feature-flagged via KAFKA_REPORT_TOPIC).
	var publisher schedule.Publisher
	var writer *kafkaadapter.ReportWriter
	if cfg.KafkaReportTopic != "" {
		writer = kafkaadapter.NewReportWriter(cfg.KafkaBrokers, cfg.KafkaReportTopic, metrics, logger)
		publisher = writer
		logger.Info("report sink enabled", "topic", cfg.KafkaReportTopic)
	} else {
		logger.Info("report sink disabled")
	}

	store := schedule.NewStore()
	sched := schedule.New(p, jobs, store, publisher, cfg.Schedule, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, sched, store, logger)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Start scheduler.
	schedDone := make(chan error, 1)
	go func() {
		schedDone <- sched.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-schedDone:
		if !errors.Is(err, context.Canceled) {
			runErr = err
		}
		cancel()
		schedDone = nil
	}
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if schedDone != nil {
		select {
		case <-schedDone:
		case <-shutdownCtx.Done():
			logger.Warn("scheduler did not stop before shutdown timeout")
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
