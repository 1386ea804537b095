package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/buoy-season-stats/internal/aggregate"
	"github.com/couchcryptid/buoy-season-stats/internal/domain"
	"github.com/couchcryptid/buoy-season-stats/internal/observability"
	"github.com/couchcryptid/buoy-season-stats/internal/pipeline"
	"github.com/couchcryptid/buoy-season-stats/internal/report"
)

// --- mocks ---

type mockFetcher struct {
	years map[int]string
	errs  map[int]error
	calls atomic.Int32
}

func (m *mockFetcher) FetchYear(_ context.Context, _ string, year int) ([]byte, error) {
	m.calls.Add(1)
	if err, ok := m.errs[year]; ok {
		return nil, err
	}
	body, ok := m.years[year]
	if !ok {
		return nil, fmt.Errorf("status 404: %w", domain.ErrYearUnavailable)
	}
	return []byte(body), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// archive builds a stdmet file with one row per (month, wspd, gst) triple.
func archive(year int, rows ...[3]float64) string {
	var b strings.Builder
	b.WriteString("#YY  MM DD hh mm WDIR WSPD GST  WVHT\n")
	b.WriteString("#yr  mo dy hr mn degT m/s  m/s     m\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%d %02d 01 00 00 180 %.1f %.1f 99.00\n", year, int(r[0]), r[1], r[2])
	}
	return b.String()
}

func meanRequest(start, end int) pipeline.Request {
	return pipeline.Request{Station: "41002", StartYear: start, EndYear: end, Strategy: aggregate.KindMean}
}

// --- tests ---

func TestPipeline_Run_SkipsMissingYear(t *testing.T) {
	f := &mockFetcher{years: map[int]string{
		2000: archive(2000, [3]float64{1, 10, 12}, [3]float64{7, 4, 5}),
		2002: archive(2002, [3]float64{1, 20, 22}),
	}}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(f, discardLogger(), metrics, 1)

	rep, err := p.Run(context.Background(), meanRequest(2000, 2002))
	require.NoError(t, err)

	want := []report.YearStatus{
		{Year: 2000, Outcome: report.OutcomeFetched},
		{Year: 2001, Outcome: report.OutcomeSkipped, Reason: "status 404: archive year unavailable"},
		{Year: 2002, Outcome: report.OutcomeFetched},
	}
	if diff := cmp.Diff(want, rep.Years); diff != "" {
		t.Fatalf("year statuses mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rep.Summary.Years, 2)
	assert.Equal(t, 2000, rep.Summary.Years[0].Year)
	assert.Equal(t, 2002, rep.Summary.Years[1].Year)
	assert.InDelta(t, 15.0, rep.Summary.Rollup[domain.Winter][0].V, 1e-9)
	assert.InDelta(t, 4.0, rep.Summary.Rollup[domain.Summer][0].V, 1e-9)
	assert.False(t, rep.Summary.Empty)
	assert.Equal(t, int32(3), f.calls.Load())

	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Years.WithLabelValues("fetched")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Years.WithLabelValues("skipped")), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.Rows.WithLabelValues("kept")), 0)
}

func TestPipeline_Run_TransportErrorDoesNotAbort(t *testing.T) {
	f := &mockFetcher{
		years: map[int]string{2001: archive(2001, [3]float64{4, 8, 9})},
		errs:  map[int]error{2000: errors.New("connection reset by peer")},
	}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(f, discardLogger(), metrics, 1)

	rep, err := p.Run(context.Background(), meanRequest(2000, 2001))
	require.NoError(t, err)

	assert.Equal(t, report.OutcomeFailed, rep.Years[0].Outcome)
	assert.Equal(t, "connection reset by peer", rep.Years[0].Reason)
	assert.Equal(t, report.OutcomeFetched, rep.Years[1].Outcome)
	assert.InDelta(t, 8.0, rep.Summary.Rollup[domain.Spring][0].V, 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.Years.WithLabelValues("failed")), 0)
}

func TestPipeline_Run_CountsDroppedRows(t *testing.T) {
	body := archive(2000, [3]float64{1, 10, 12}) +
		"2000 01 01 00 00 180 99.0 12.0 99.00\n" + // missing-value sentinel
		"2000 01 01 00 00 180 MM 12.0 99.00\n" + // unparseable
		"2000 01 01 00\n" // malformed
	f := &mockFetcher{years: map[int]string{2000: body}}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(f, discardLogger(), metrics, 1)

	rep, err := p.Run(context.Background(), meanRequest(2000, 2000))
	require.NoError(t, err)

	assert.Equal(t, 4, rep.Rows.Read)
	assert.Equal(t, 1, rep.Rows.Kept)
	assert.Equal(t, 1, rep.Rows.Dropped[domain.DropMalformed])
	assert.Equal(t, 1, rep.Rows.Dropped[domain.DropOutOfRange])
	assert.Equal(t, 1, rep.Rows.Dropped[domain.DropMissing])
	assert.Equal(t, 1, rep.Summary.Observations)
	assert.InDelta(t, 3, testutil.ToFloat64(metrics.Rows.WithLabelValues("dropped")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RowsDropped.WithLabelValues("malformed")), 0)
}

func TestPipeline_Run_AllYearsMissing(t *testing.T) {
	f := &mockFetcher{}
	p := pipeline.New(f, discardLogger(), observability.NewMetricsForTesting(), 1)

	rep, err := p.Run(context.Background(), meanRequest(1990, 1992))
	require.NoError(t, err)
	assert.True(t, rep.Summary.Empty)
	assert.Len(t, rep.Unfetched(), 3)
	assert.Empty(t, rep.Summary.Years)
}

func TestPipeline_Run_ConcurrentMatchesSequential(t *testing.T) {
	years := map[int]string{}
	for y := 2000; y < 2010; y++ {
		years[y] = archive(y,
			[3]float64{1, float64(y - 1990), 30},
			[3]float64{6, 5, float64(y - 1980)},
			[3]float64{12, 3, 4},
		)
	}
	delete(years, 2004)

	run := func(concurrency int) aggregate.Summary {
		p := pipeline.New(&mockFetcher{years: years}, discardLogger(), observability.NewMetricsForTesting(), concurrency)
		rep, err := p.Run(context.Background(), pipeline.Request{
			Station: "41002", StartYear: 2000, EndYear: 2009, Strategy: aggregate.KindMax,
		})
		require.NoError(t, err)
		return rep.Summary
	}

	if diff := cmp.Diff(run(1), run(4)); diff != "" {
		t.Fatalf("concurrent run differs (-sequential +concurrent):\n%s", diff)
	}
}

func TestPipeline_Run_Percentile(t *testing.T) {
	f := &mockFetcher{years: map[int]string{
		2000: "2000 01 01 00 00 100 5.0 30.0\n2000 01 01 00 00 300 5.0 50.0\n",
		2001: "2001 07 01 00 00 110 5.0 10.0\n",
	}}
	p := pipeline.New(f, discardLogger(), observability.NewMetricsForTesting(), 2)

	rep, err := p.Run(context.Background(), pipeline.Request{
		Station:   "41002",
		StartYear: 2000,
		EndYear:   2001,
		Strategy:  aggregate.KindPercentile,
		Params:    aggregate.Params{Direction: 100, Tolerance: 20, Percentile: 1},
	})
	require.NoError(t, err)

	require.NotNil(t, rep.Summary.Percentile)
	assert.Equal(t, 2, rep.Summary.Percentile.Qualifying)
	assert.True(t, rep.Summary.Percentile.Fallback)
	assert.InDelta(t, 20.0, rep.Summary.Percentile.MeanGust.V, 1e-9)
}

func TestPipeline_Run_InvalidRequest(t *testing.T) {
	tests := []struct {
		name string
		req  pipeline.Request
	}{
		{"start after end", meanRequest(2005, 2000)},
		{"missing station", pipeline.Request{StartYear: 2000, EndYear: 2001, Strategy: aggregate.KindMean}},
		{"station with path characters", pipeline.Request{Station: "../etc", StartYear: 2000, EndYear: 2001, Strategy: aggregate.KindMean}},
		{"unknown strategy", pipeline.Request{Station: "41002", StartYear: 2000, EndYear: 2001, Strategy: "median"}},
		{"percentile zero", pipeline.Request{
			Station: "41002", StartYear: 2000, EndYear: 2001,
			Strategy: aggregate.KindPercentile, Params: aggregate.Params{Direction: 90, Tolerance: 10},
		}},
		{"direction out of range", pipeline.Request{
			Station: "41002", StartYear: 2000, EndYear: 2001,
			Strategy: aggregate.KindPercentile, Params: aggregate.Params{Direction: 400, Tolerance: 10, Percentile: 1},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &mockFetcher{}
			p := pipeline.New(f, discardLogger(), observability.NewMetricsForTesting(), 1)

			_, err := p.Run(context.Background(), tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid request")
			assert.Zero(t, f.calls.Load(), "nothing is fetched for an invalid request")
		})
	}
}

func TestPipeline_Run_ContextCancelled(t *testing.T) {
	f := &mockFetcher{years: map[int]string{2000: archive(2000, [3]float64{1, 1, 1})}}
	p := pipeline.New(f, discardLogger(), observability.NewMetricsForTesting(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, meanRequest(2000, 2000))
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Run_StampsReport(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 6, 0, 0, 0, time.UTC))
	domain.SetClock(fakeClock)
	t.Cleanup(func() { domain.SetClock(nil) })

	f := &mockFetcher{years: map[int]string{2000: archive(2000, [3]float64{1, 1, 1})}}
	p := pipeline.New(f, discardLogger(), observability.NewMetricsForTesting(), 1)

	req := meanRequest(2000, 2000)
	req.Job = "gulf-winter"
	rep, err := p.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, fakeClock.Now(), rep.GeneratedAt)
	assert.Equal(t, "gulf-winter", rep.Key())
	assert.Len(t, rep.RunID, 36)
}
