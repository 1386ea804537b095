package schedule

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/couchcryptid/buoy-season-stats/internal/report"
)

// ErrNotFound is returned when no report has been produced for a job yet.
var ErrNotFound = errors.New("no report for job")

// Listing describes the latest report of one job.
type Listing struct {
	Job         string    `json:"job"`
	Station     string    `json:"station"`
	Strategy    string    `json:"strategy"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Store is a concurrency-safe in-memory store of the latest report per job.
type Store struct {
	mu     sync.RWMutex
	latest map[string]*report.Report
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{latest: make(map[string]*report.Report)}
}

// Save replaces the job's previous report.
func (s *Store) Save(r *report.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[r.Key()] = r
}

// Get returns the latest report of a job.
func (s *Store) Get(job string) (*report.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.latest[job]
	if !ok {
		return nil, ErrNotFound
	}
	return r, nil
}

// List returns one listing per stored job, ordered by job name.
func (s *Store) List() []Listing {
	s.mu.RLock()
	out := make([]Listing, 0, len(s.latest))
	for key, r := range s.latest {
		out = append(out, Listing{
			Job:         key,
			Station:     r.Station,
			Strategy:    string(r.Summary.Strategy),
			GeneratedAt: r.GeneratedAt,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b Listing) int {
		switch {
		case a.Job < b.Job:
			return -1
		case a.Job > b.Job:
			return 1
		default:
			return 0
		}
	})
	return out
}
