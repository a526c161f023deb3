package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/weather-anomaly/internal/metrics"
)

// Config is the explicit configuration of a Service.
type Config struct {
	// Credential is the weather provider API key used for live checks.
	Credential string

	// WorkerCount bounds batch scoring parallelism; <= 0 uses every
	// available CPU.
	WorkerCount int
}

// Analysis is the immutable result of loading a historical dataset.
type Analysis struct {
	Dataset   Dataset
	Baselines []SeasonBaseline
	Table     *BaselineTable
	Scored    []ScoredReading
	LoadedAt  time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock replaces time.Now, used to derive the current season.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithStore keeps every live report in store.
func WithStore(store ReportStore) Option {
	return func(s *Service) {
		s.store = store
	}
}

// Service scores historical readings in parallel and checks live
// temperatures for many cities concurrently.
type Service struct {
	cfg      Config
	source   TemperatureSource
	store    ReportStore
	logger   *slog.Logger
	now      func() time.Time
	analysis atomic.Pointer[Analysis]
}

// NewService creates a new Service.
func NewService(cfg Config, source TemperatureSource, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		source: source,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "weather")
	return s
}

// Workers returns the effective batch worker count.
func (s *Service) Workers() int {
	if s.cfg.WorkerCount > 0 {
		return s.cfg.WorkerCount
	}
	return runtime.GOMAXPROCS(0)
}

// Load computes baselines for ds, scores every reading and publishes the
// result for the query methods.
func (s *Service) Load(ctx context.Context, ds Dataset) (*Analysis, error) {
	baselines := ComputeBaselines(ds)
	table, err := NewBaselineTable(baselines)
	if err != nil {
		return nil, err
	}

	scored, err := s.ScoreBatch(ctx, ds, table)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		Dataset:   ds,
		Baselines: baselines,
		Table:     table,
		Scored:    scored,
		LoadedAt:  s.now().UTC(),
	}
	s.analysis.Store(a)

	s.logger.Info("dataset loaded",
		"readings", ds.Len(),
		"cities", len(ds.Cities()),
		"baselines", len(baselines))
	return a, nil
}

// Analysis returns the last loaded analysis, or nil.
func (s *Service) Analysis() *Analysis {
	return s.analysis.Load()
}

// ScoreBatch classifies every reading of ds against table. Each city is
// scored by one worker; at most Workers() run at once. The result holds every
// reading exactly once, grouped by city in order of first appearance.
func (s *Service) ScoreBatch(ctx context.Context, ds Dataset, table *BaselineTable) ([]ScoredReading, error) {
	start := time.Now()
	parts := ds.Partitions()
	results := make([][]ScoredReading, len(parts))

	var g errgroup.Group
	g.SetLimit(s.Workers())
	for i, part := range parts {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = scorePartition(part, table)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("batch scoring: %w", err)
	}

	out := make([]ScoredReading, 0, ds.Len())
	anomalies := 0
	for _, r := range results {
		for _, sr := range r {
			if sr.Anomalous {
				anomalies++
			}
		}
		out = append(out, r...)
	}

	elapsed := time.Since(start)
	metrics.RecordBatch(len(out), anomalies, elapsed.Seconds())
	s.logger.Debug("batch scoring finished",
		"readings", len(out),
		"anomalies", anomalies,
		"workers", s.Workers(),
		"elapsed", elapsed)
	return out, nil
}

func scorePartition(part Partition, table *BaselineTable) []ScoredReading {
	means := RollingMeans(part.Readings)
	out := make([]ScoredReading, len(part.Readings))
	for i, r := range part.Readings {
		out[i] = ScoredReading{
			Reading:     r,
			RollingMean: means[i],
			Anomalous:   Classify(r.Temperature, r.City, r.Season, table),
		}
	}
	return out
}

// CheckLive fetches the current temperature of every city concurrently and
// classifies it against the loaded baselines for the current season. A
// failing city never affects the others; the run returns once every city has
// an outcome. Only configuration problems fail the whole run, before any
// request is made.
func (s *Service) CheckLive(ctx context.Context, cities []string) (LiveReport, error) {
	return s.checkLive(ctx, cities, func(city string) <-chan Result[float64] {
		return s.source.CurrentTemperatureAsync(ctx, city, s.cfg.Credential)
	})
}

// CheckLiveSequential is the blocking variant of CheckLive: cities are
// fetched one after another. Outcomes are identical.
func (s *Service) CheckLiveSequential(ctx context.Context, cities []string) (LiveReport, error) {
	return s.checkLive(ctx, cities, func(city string) <-chan Result[float64] {
		ch := make(chan Result[float64], 1)
		t, err := s.fetchBlocking(ctx, city)
		ch <- Result[float64]{Value: t, Err: err}
		return ch
	})
}

func (s *Service) fetchBlocking(ctx context.Context, city string) (t float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrTaskPanic, r)
		}
	}()
	return s.source.CurrentTemperature(ctx, city, s.cfg.Credential)
}

type launchFunc func(city string) <-chan Result[float64]

func (s *Service) checkLive(ctx context.Context, cities []string, launch launchFunc) (LiveReport, error) {
	if err := s.validateLive(); err != nil {
		return LiveReport{}, err
	}

	started := s.now().UTC()
	report := LiveReport{
		RunID:     uuid.NewString(),
		Season:    SeasonAt(started),
		StartedAt: started,
		Outcomes:  make([]FetchOutcome, len(cities)),
	}
	var table *BaselineTable
	if a := s.analysis.Load(); a != nil {
		table = a.Table
	}

	log := s.logger.With("run", report.RunID)
	log.Info("live check started", "cities", len(cities), "season", report.Season)

	pending := make([]<-chan Result[float64], len(cities))
	for i, city := range cities {
		report.Outcomes[i] = FetchOutcome{City: city, State: StatePending}
		pending[i] = launch(city)
		report.Outcomes[i].State = StateFetching
	}

	for i, ch := range pending {
		res := <-ch
		out := &report.Outcomes[i]
		out.CheckedAt = s.now().UTC()

		if res.Err != nil {
			out.State = StateFailed
			out.ErrorKind = KindOf(res.Err)
			out.Error = res.Err.Error()
			log.Warn("live check failed", "city", out.City, "kind", out.ErrorKind, "error", res.Err)
			metrics.RecordLiveOutcome(string(out.State), out.ErrorKind, false)
			continue
		}

		out.State = StateSucceeded
		temp := res.Value
		out.Temperature = &temp

		verdict := Judge(temp, out.City, report.Season, table)
		out.Verdict = &verdict
		out.State = StateClassified
		if !verdict.HasBaseline {
			log.Debug("no baseline for live reading", "city", out.City, "season", report.Season, "reason", ErrNoBaseline)
		}
		metrics.RecordLiveOutcome(string(out.State), "", verdict.Anomalous)
	}

	report.FinishedAt = s.now().UTC()
	metrics.RecordLiveRun(report.FinishedAt.Sub(report.StartedAt).Seconds())
	log.Info("live check finished",
		"succeeded", countState(report.Outcomes, StateClassified),
		"failed", countState(report.Outcomes, StateFailed))

	if s.store != nil {
		s.store.SaveReport(report)
	}
	return report, nil
}

func (s *Service) validateLive() error {
	if s.source == nil {
		return fmt.Errorf("%w: no temperature source configured", ErrConfig)
	}
	if strings.TrimSpace(s.cfg.Credential) == "" {
		return fmt.Errorf("%w: api credential is empty", ErrConfig)
	}
	return nil
}

func countState(outcomes []FetchOutcome, state FetchState) int {
	n := 0
	for _, o := range outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// ErrNoAnalysis is returned by query methods before a dataset is loaded.
var ErrNoAnalysis = errors.New("no dataset loaded")

// Cities returns the cities of the loaded dataset.
func (s *Service) Cities() ([]string, error) {
	a := s.analysis.Load()
	if a == nil {
		return nil, ErrNoAnalysis
	}
	return a.Dataset.Cities(), nil
}

// Baselines returns the baselines of city, or of every city when city is
// empty.
func (s *Service) Baselines(city string) ([]SeasonBaseline, error) {
	a := s.analysis.Load()
	if a == nil {
		return nil, ErrNoAnalysis
	}
	if city == "" {
		return a.Baselines, nil
	}

	var out []SeasonBaseline
	for _, b := range a.Baselines {
		if b.City == city {
			out = append(out, b)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBaseline, city)
	}
	return out, nil
}

// ReadingsQuery filters scored readings.
type ReadingsQuery struct {
	City          string
	From, To      time.Time
	AnomaliesOnly bool
}

// Readings returns the scored readings of one city, optionally restricted to
// the inclusive [From, To] range. Readings without a timestamp are excluded
// whenever a range bound is set.
func (s *Service) Readings(q ReadingsQuery) ([]ScoredReading, error) {
	a := s.analysis.Load()
	if a == nil {
		return nil, ErrNoAnalysis
	}
	if len(a.Dataset.City(q.City)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, q.City)
	}

	out := []ScoredReading{}
	for _, sr := range a.Scored {
		if sr.City != q.City {
			continue
		}
		if q.AnomaliesOnly && !sr.Anomalous {
			continue
		}
		if !q.From.IsZero() || !q.To.IsZero() {
			if !sr.HasTimestamp() {
				continue
			}
			if !q.From.IsZero() && sr.Timestamp.Before(q.From) {
				continue
			}
			if !q.To.IsZero() && sr.Timestamp.After(q.To) {
				continue
			}
		}
		out = append(out, sr)
	}
	return out, nil
}

// Summary describes the temperature distribution of one city.
func (s *Service) Summary(city string) (Summary, error) {
	a := s.analysis.Load()
	if a == nil {
		return Summary{}, ErrNoAnalysis
	}
	readings := a.Dataset.City(city)
	if len(readings) == 0 {
		return Summary{}, fmt.Errorf("%w: %s", ErrNotFound, city)
	}
	return Describe(city, readings), nil
}

// Compare summarizes several cities side by side, in the requested order.
func (s *Service) Compare(cities []string) ([]Summary, error) {
	out := make([]Summary, 0, len(cities))
	for _, c := range cities {
		sum, err := s.Summary(c)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
