package store

import (
	"errors"
	"sync"
	"time"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

var (
	// ErrNotFound is returned when no live check has been recorded yet, or
	// none for the requested city.
	ErrNotFound = errors.New("no live checks recorded")
)

var _ weather.ReportStore = (*MemoryStore)(nil)

// MemoryStore is a concurrency-safe in-memory store of live check reports.
// It keeps the most recent report and a bounded per-city outcome history.
type MemoryStore struct {
	mu sync.RWMutex

	latest    weather.LiveReport
	hasLatest bool

	// key: city, value: outcomes in check order
	history map[string][]weather.FetchOutcome

	// retention configuration
	maxHistory int           // max number of outcomes per city
	maxAge     time.Duration // optional max age for outcomes

	now func() time.Time
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		history:    make(map[string][]weather.FetchOutcome),
		maxHistory: maxHistory,
		maxAge:     maxAge,
		now:        time.Now,
	}
}

// SaveReport records report as the latest and appends each outcome to its
// city history, enforcing retention.
func (s *MemoryStore) SaveReport(report weather.LiveReport) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = report
	s.hasLatest = true

	for _, o := range report.Outcomes {
		s.history[o.City] = s.retain(append(s.history[o.City], o))
	}
}

func (s *MemoryStore) retain(outcomes []weather.FetchOutcome) []weather.FetchOutcome {
	// Enforce retention by count.
	if s.maxHistory > 0 && len(outcomes) > s.maxHistory {
		over := len(outcomes) - s.maxHistory
		outcomes = outcomes[over:]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := s.now().Add(-s.maxAge)
		i := 0
		for ; i < len(outcomes); i++ {
			if !outcomes[i].CheckedAt.Before(cutoff) {
				break
			}
		}
		outcomes = outcomes[i:]
	}
	return outcomes
}

// Latest returns the most recent report.
func (s *MemoryStore) Latest() (weather.LiveReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasLatest {
		return weather.LiveReport{}, ErrNotFound
	}
	return s.latest, nil
}

// History returns the outcomes for city checked between from and to
// (inclusive). A zero bound leaves that side open.
func (s *MemoryStore) History(city string, from, to time.Time) ([]weather.FetchOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	outcomes, ok := s.history[city]
	if !ok || len(outcomes) == 0 {
		return nil, ErrNotFound
	}

	var result []weather.FetchOutcome
	for _, o := range outcomes {
		if !from.IsZero() && o.CheckedAt.Before(from) {
			continue
		}
		if !to.IsZero() && o.CheckedAt.After(to) {
			continue
		}
		result = append(result, o)
	}

	if len(result) == 0 {
		return nil, ErrNotFound
	}

	return result, nil
}
