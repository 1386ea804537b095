package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/couchcryptid/buoy-season-stats/internal/pipeline"
	"github.com/couchcryptid/buoy-season-stats/internal/report"
)

// Runner produces a report for one request.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*report.Report, error)
}

// Publisher sends a finished report to an external sink.
type Publisher interface {
	Publish(ctx context.Context, r *report.Report) error
}

// Scheduler reruns every configured job on a cron schedule and keeps the
// latest report of each in a Store.
type Scheduler struct {
	runner    Runner
	jobs      []pipeline.Request
	store     *Store
	publisher Publisher
	schedule  string
	logger    *slog.Logger
	cron      *cron.Cron
}

// New creates a Scheduler. publisher may be nil to keep reports in memory
// only.
func New(runner Runner, jobs []pipeline.Request, store *Store, publisher Publisher, schedule string, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		runner:    runner,
		jobs:      jobs,
		store:     store,
		publisher: publisher,
		schedule:  schedule,
		logger:    logger,
		// Prevent overlapping runs
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.SkipIfStillRunning(cl))),
	}
}

// Start runs every job once immediately, then on the schedule, until ctx is
// cancelled. It waits for an in-flight run to return before exiting.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.schedule, func() { s.RunAll(ctx) })
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}

	s.logger.Info("scheduler started", "schedule", s.schedule, "jobs", len(s.jobs))
	s.cron.Start()
	// The wrapped job shares the skip-if-running guard with scheduled ticks.
	go s.cron.Entry(id).WrappedJob.Run()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// RunAll runs every job in order. A failing job is logged and does not stop
// the others.
func (s *Scheduler) RunAll(ctx context.Context) {
	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return
		}
		s.runJob(ctx, job)
	}
}

func (s *Scheduler) runJob(ctx context.Context, job pipeline.Request) {
	logger := s.logger.With("job", job.Job)

	rep, err := s.runner.Run(ctx, job)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("job failed", "error", err)
		}
		return
	}
	s.store.Save(rep)

	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, rep); err != nil {
		logger.Error("publish report", "run_id", rep.RunID, "error", err)
		return
	}
	logger.Debug("report published", "run_id", rep.RunID)
}

// CheckReadiness reports ready once every job has produced a report.
func (s *Scheduler) CheckReadiness(_ context.Context) error {
	pending := 0
	for _, job := range s.jobs {
		if _, err := s.store.Get(job.Job); err != nil {
			pending++
		}
	}
	if pending > 0 {
		return fmt.Errorf("%d of %d jobs have not completed a run", pending, len(s.jobs))
	}
	return nil
}

// cronLogger routes cron's internal logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
