package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	kafkaadapter "github.com/couchcryptid/buoy-season-stats/internal/adapter/kafka"
	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/config"
	"github.com/couchcryptid/buoy-season-stats/internal/observability"
	"github.com/couchcryptid/buoy-season-stats/internal/pipeline"
	"github.com/couchcryptid/buoy-season-stats/internal/report"
)

type reportFlags struct {
	strategy   string
	direction  float64
	tolerance  float64
	percentile float64
	format     string
}

func newReportCmd() *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report STATION START_YEAR END_YEAR",
		Short: "Aggregate a station's archive years and print the report",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(args, flags, cmd.Flags().Changed("direction"))
			if err != nil {
				return err
			}
			format, err := report.ParseFormat(flags.format)
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
			metrics := newMetrics()

			p := pipeline.New(newArchiveClient(cfg, metrics, logger), logger, metrics, cfg.FetchConcurrency)
			rep, err := p.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := report.Write(cmd.OutOrStdout(), rep, format); err != nil {
				return fmt.Errorf("write report: %w", err)
			}

			if cfg.KafkaReportTopic != "" {
				w := kafkaadapter.NewReportWriter(cfg.KafkaBrokers, cfg.KafkaReportTopic, metrics, logger)
				if err := w.Publish(cmd.Context(), rep); err != nil {
					logger.Error("publish report", "error", err)
				}
				if err := w.Close(); err != nil {
					logger.Error("kafka writer close error", "error", err)
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.strategy, "strategy", string(aggregate.KindMean), "aggregation strategy: mean, max, gust-direction or percentile")
	f.Float64Var(&flags.direction, "direction", 0, "target wind direction in degrees true (percentile only, required)")
	f.Float64Var(&flags.tolerance, "tolerance", aggregate.DefaultTolerance, "half-width of the direction window in degrees (percentile only)")
	f.Float64Var(&flags.percentile, "percentile", aggregate.DefaultPercentile, "top percentage of qualifying gusts to average (percentile only)")
	f.StringVar(&flags.format, "format", string(report.FormatText), "output format: text or json")

	return cmd
}

func buildRequest(args []string, flags reportFlags, directionSet bool) (pipeline.Request, error) {
	start, err := strconv.Atoi(args[1])
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid START_YEAR %q", args[1])
	}
	end, err := strconv.Atoi(args[2])
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("invalid END_YEAR %q", args[2])
	}
	kind, err := aggregate.ParseKind(flags.strategy)
	if err != nil {
		return pipeline.Request{}, err
	}
	if kind == aggregate.KindPercentile && !directionSet {
		return pipeline.Request{}, errors.New("--direction is required for the percentile strategy")
	}

	req := pipeline.Request{
		Station:   args[0],
		StartYear: start,
		EndYear:   end,
		Strategy:  kind,
		Params: aggregate.Params{
			Direction:  flags.direction,
			Tolerance:  flags.tolerance,
			Percentile: flags.percentile,
		},
	}
	if err := req.Validate(); err != nil {
		return pipeline.Request{}, err
	}
	return req, nil
}
