// Package ndbc downloads yearly standard meteorological archives from the
// National Data Buoy Center.
package ndbc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/klauspost/compress/gzip"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/couchcryptid/buoy-season-stats/internal/domain"
	"github.com/couchcryptid/buoy-season-stats/internal/observability"
)

const (
	DefaultEndpoint   = "https://www.ndbc.noaa.gov/view_text_file.php"
	DefaultArchiveDir = "data/historical/stdmet/"
)

// ErrYearUnavailable is wrapped by every *StatusError.
var ErrYearUnavailable = domain.ErrYearUnavailable

// StatusError is returned for a non-2xx archive response.
type StatusError struct {
	Station string
	Year    int
	Code    int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ndbc %s %d: status %d", e.Station, e.Year, e.Code)
}

func (e *StatusError) Unwrap() error { return ErrYearUnavailable }

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

var gzipMagic = []byte{0x1f, 0x8b}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	Endpoint   string
	ArchiveDir string
	Timeout    time.Duration
	Retries    int
	// Rate caps requests per second across the client. Zero disables it.
	Rate float64
}

// Client fetches one station-year archive at a time. It is safe for
// concurrent use; the rate limiter and circuit breaker are shared.
type Client struct {
	endpoint   string
	archiveDir string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	retries    int
	backoff    time.Duration
	maxBackoff time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = DefaultArchiveDir
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	c := &Client{
		endpoint:   opts.Endpoint,
		archiveDir: opts.ArchiveDir,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		retries:    max(opts.Retries, 0),
		backoff:    500 * time.Millisecond,
		maxBackoff: 5 * time.Second,
		metrics:    metrics,
		logger:     logger,
	}
	c.breaker = newBreaker(logger)
	return c
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ndbc",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing year is an answer, not an archive failure.
		IsSuccessful: func(err error) bool {
			var se *StatusError
			return err == nil || (errors.As(err, &se) && !se.retryable())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// URL returns the archive address of one station-year. The station id is
// lower-cased the way the archive names its files.
func (c *Client) URL(station string, year int) string {
	filename := fmt.Sprintf("%sh%d.txt.gz", strings.ToLower(station), year)
	return fmt.Sprintf("%s?filename=%s&dir=%s", c.endpoint, url.QueryEscape(filename), c.archiveDir)
}

// FetchYear downloads the archive for one station-year and returns its
// plain text, gunzipping when the payload carries the gzip magic bytes.
// Non-2xx responses yield a *StatusError wrapping ErrYearUnavailable.
func (c *Client) FetchYear(ctx context.Context, station string, year int) ([]byte, error) {
	start := time.Now()
	body, err := c.fetchWithRetry(ctx, station, year)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.metrics.FetchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	return decode(body)
}

func (c *Client) fetchWithRetry(ctx context.Context, station string, year int) ([]byte, error) {
	backoff := c.backoff
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.get(ctx, station, year)
		})
		if err == nil {
			return result.([]byte), nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("ndbc archive circuit open: %w", err)
		}
		if ctx.Err() != nil || !isRetryable(err) || attempt >= c.retries {
			return nil, err
		}

		c.logger.Debug("retrying archive fetch",
			"station", station, "year", year, "attempt", attempt+1, "backoff", backoff, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
}

func (c *Client) get(ctx context.Context, station string, year int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(station, year), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ndbc %s %d request: %w", station, year, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Station: station, Year: year, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ndbc %s %d read body: %w", station, year, err)
	}
	return body, nil
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	return true
}

func decode(body []byte) ([]byte, error) {
	if !bytes.HasPrefix(body, gzipMagic) {
		return body, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("open gzip payload: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return plain, nil
}
