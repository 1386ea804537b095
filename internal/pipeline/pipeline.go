package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/domain"
	"github.com/couchcryptid/buoy-season-stats/internal/observability"
	"github.com/couchcryptid/buoy-season-stats/internal/report"
)

var validate = validator.New()

// YearFetcher retrieves the decoded archive text of one station-year.
// Errors wrapping domain.ErrYearUnavailable mark the year as skipped; any
// other error marks it as failed. Neither aborts the run.
type YearFetcher interface {
	FetchYear(ctx context.Context, station string, year int) ([]byte, error)
}

// Request describes one aggregation run.
type Request struct {
	Job       string         `validate:"omitempty,max=64"`
	Station   string         `validate:"required,alphanum,max=16"`
	StartYear int            `validate:"gte=1900,lte=9999"`
	EndYear   int            `validate:"gtefield=StartYear,lte=9999"`
	Strategy  aggregate.Kind `validate:"required,oneof=mean max gust-direction percentile"`
	Params    aggregate.Params
}

// Validate checks the request before anything is fetched.
func (r Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

// Pipeline runs the fetch-parse-aggregate loop over a year range.
type Pipeline struct {
	fetcher     YearFetcher
	logger      *slog.Logger
	metrics     *observability.Metrics
	concurrency int
}

// New creates a Pipeline. concurrency bounds how many years are fetched at
// once; 1 processes the range strictly in order.
func New(f YearFetcher, logger *slog.Logger, metrics *observability.Metrics, concurrency int) *Pipeline {
	return &Pipeline{
		fetcher:     f,
		logger:      logger,
		metrics:     metrics,
		concurrency: max(concurrency, 1),
	}
}

// yearResult is what one archive year contributed to the run.
type yearResult struct {
	acc    aggregate.YearAccumulator
	stats  domain.ScanStats
	status report.YearStatus
}

// Run aggregates every year of the request's range. Years that cannot be
// fetched or parsed are recorded in the report and left out of the
// statistics. Only an invalid request or a cancelled context return an error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*report.Report, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	strategy, err := aggregate.New(req.Strategy, req.Params)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID, "station", req.Station, "strategy", string(req.Strategy))
	if req.Job != "" {
		logger = logger.With("job", req.Job)
	}

	clock := domain.Clock()
	start := clock.Now()
	p.metrics.RunsInFlight.Inc()
	defer p.metrics.RunsInFlight.Dec()

	logger.Info("run started", "start_year", req.StartYear, "end_year", req.EndYear, "concurrency", p.concurrency)

	results := make([]yearResult, req.EndYear-req.StartYear+1)
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range results {
		year := req.StartYear + i
		g.Go(func() error {
			results[i] = p.processYear(ctx, logger, strategy, req.Station, year)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		logger.Info("run cancelled", "reason", err)
		return nil, err
	}

	rep := &report.Report{
		RunID:     runID,
		Job:       req.Job,
		Station:   req.Station,
		StartYear: req.StartYear,
		EndYear:   req.EndYear,
		Years:     make([]report.YearStatus, 0, len(results)),
	}
	fetched := make([]aggregate.YearAccumulator, 0, len(results))
	for _, res := range results {
		rep.Years = append(rep.Years, res.status)
		if res.status.Outcome == report.OutcomeFetched {
			fetched = append(fetched, res.acc)
			rep.Rows.Add(res.stats)
		}
	}
	rep.Summary = strategy.Rollup(fetched)
	rep.GeneratedAt = clock.Now().UTC()

	elapsed := clock.Since(start)
	p.metrics.RunDuration.WithLabelValues(string(req.Strategy)).Observe(elapsed.Seconds())
	logger.Info("run finished",
		"years_fetched", len(fetched),
		"years_unfetched", len(rep.Years)-len(fetched),
		"observations", rep.Summary.Observations,
		"empty", rep.Summary.Empty,
		"duration", elapsed,
	)
	return rep, nil
}

// processYear fetches, parses and folds one archive year.
func (p *Pipeline) processYear(ctx context.Context, logger *slog.Logger, strategy aggregate.Strategy, station string, year int) yearResult {
	logger = logger.With("year", year)

	body, err := p.fetcher.FetchYear(ctx, station, year)
	if err != nil {
		if errors.Is(err, domain.ErrYearUnavailable) {
			logger.Warn("year skipped", "error", err)
			p.metrics.Years.WithLabelValues(string(report.OutcomeSkipped)).Inc()
			return yearResult{status: report.YearStatus{Year: year, Outcome: report.OutcomeSkipped, Reason: err.Error()}}
		}
		if ctx.Err() == nil {
			logger.Error("year failed", "error", err)
		}
		p.metrics.Years.WithLabelValues(string(report.OutcomeFailed)).Inc()
		return yearResult{status: report.YearStatus{Year: year, Outcome: report.OutcomeFailed, Reason: err.Error()}}
	}

	acc := strategy.NewYear(year)
	sc := domain.NewScanner(bytes.NewReader(body), year, strategy.Required())
	for sc.Scan() {
		obs := sc.Observation()
		season, ok := domain.SeasonOf(obs.Month)
		if !ok {
			logger.Error("observation month outside 1..12", "month", obs.Month)
			continue
		}
		acc.Add(season, obs)
	}
	stats := sc.Stats()
	p.recordRows(stats)

	if err := sc.Err(); err != nil {
		logger.Error("year failed", "error", err)
		p.metrics.Years.WithLabelValues(string(report.OutcomeFailed)).Inc()
		return yearResult{status: report.YearStatus{Year: year, Outcome: report.OutcomeFailed, Reason: err.Error()}}
	}

	logger.Debug("year parsed", "rows", stats.Rows, "kept", stats.Kept, "dropped", stats.DroppedTotal())
	p.metrics.Years.WithLabelValues(string(report.OutcomeFetched)).Inc()
	return yearResult{
		acc:    acc,
		stats:  stats,
		status: report.YearStatus{Year: year, Outcome: report.OutcomeFetched},
	}
}

func (p *Pipeline) recordRows(stats domain.ScanStats) {
	p.metrics.Rows.WithLabelValues("kept").Add(float64(stats.Kept))
	p.metrics.Rows.WithLabelValues("dropped").Add(float64(stats.DroppedTotal()))
	for reason, n := range stats.Dropped {
		p.metrics.RowsDropped.WithLabelValues(string(reason)).Add(float64(n))
	}
}
