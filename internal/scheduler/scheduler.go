package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// defaultInterval is used when the configured interval is not positive.
const defaultInterval = 15 * time.Minute

// LiveChecker runs one live check over a set of cities.
type LiveChecker interface {
	CheckLive(ctx context.Context, cities []string) (weather.LiveReport, error)
}

// Scheduler periodically runs live checks for configured cities.
type Scheduler struct {
	scheduler *gocron.Scheduler
	checker   LiveChecker
	cities    []string
	interval  time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. Runs carry no deadline of their own: each
// provider request is bounded by the HTTP client timeout.
func New(cities []string, interval time.Duration, checker LiveChecker, logger *slog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: s,
		checker:   checker,
		cities:    cities,
		interval:  interval,
		logger:    logger.With("component", "scheduler"),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run starts immediately.
func (s *Scheduler) Start() error {
	if len(s.cities) == 0 {
		s.logger.Info("no cities configured; nothing to schedule")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	s.logger.Debug("running live check job", "cities", len(s.cities))

	report, err := s.checker.CheckLive(context.Background(), s.cities)
	if err != nil {
		s.logger.Error("live check job failed", "error", err)
		return
	}

	anomalies := 0
	for _, o := range report.Outcomes {
		if o.Verdict != nil && o.Verdict.Anomalous {
			anomalies++
		}
	}
	s.logger.Info("live check job completed", "run", report.RunID, "anomalies", anomalies)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
