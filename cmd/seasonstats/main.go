// Command seasonstats aggregates NOAA NDBC buoy standard meteorological
// archives into seasonal wind and gust statistics.
//
// Usage:
//
//	seasonstats report 41002 2000 2020 --strategy percentile --direction 120
//	seasonstats serve
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/buoy-season-stats/internal/adapter/ndbc"
	"github.com/couchcryptid/buoy-season-stats/internal/config"
	"github.com/couchcryptid/buoy-season-stats/internal/observability"
)

// newMetrics is swapped in tests so repeated runs do not collide in the
// default registry.
var newMetrics = observability.NewMetrics

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "seasonstats",
		Short:        "Seasonal wind and gust statistics from NDBC buoy archives",
		SilenceUsage: true,
	}
	root.AddCommand(newReportCmd(), newServeCmd())
	return root
}

func newArchiveClient(cfg *config.Config, metrics *observability.Metrics, logger *slog.Logger) *ndbc.Client {
	return ndbc.NewClient(ndbc.Options{
		Endpoint:   cfg.NDBCEndpoint,
		ArchiveDir: cfg.NDBCArchiveDir,
		Timeout:    cfg.FetchTimeout,
		Retries:    cfg.FetchRetries,
		Rate:       cfg.FetchRate,
	}, metrics, logger)
}
