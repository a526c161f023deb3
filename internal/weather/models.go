package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Season is a calendar season of the fixed northern-hemisphere mapping.
type Season string

const (
	SeasonWinter Season = "winter"
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonAutumn Season = "autumn"
)

// Seasons lists every season in calendar order starting from winter.
var Seasons = []Season{SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn}

// ParseSeason normalizes s and checks that it names a known season.
func ParseSeason(s string) (Season, error) {
	season := Season(strings.ToLower(strings.TrimSpace(s)))
	switch season {
	case SeasonWinter, SeasonSpring, SeasonSummer, SeasonAutumn:
		return season, nil
	}
	return "", fmt.Errorf("%w: unknown season %q", ErrMalformedInput, s)
}

// SeasonOf maps a month to its season: Dec-Feb winter, Mar-May spring,
// Jun-Aug summer, Sep-Nov autumn.
func SeasonOf(m time.Month) Season {
	switch m {
	case time.December, time.January, time.February:
		return SeasonWinter
	case time.March, time.April, time.May:
		return SeasonSpring
	case time.June, time.July, time.August:
		return SeasonSummer
	default:
		return SeasonAutumn
	}
}

// SeasonAt returns the season of t's month.
func SeasonAt(t time.Time) Season {
	return SeasonOf(t.Month())
}

func (s Season) order() int {
	for i, v := range Seasons {
		if v == s {
			return i
		}
	}
	return len(Seasons)
}

// Reading is a single historical temperature observation.
// A zero Timestamp marks a timestamp that could not be parsed.
type Reading struct {
	City        string    `json:"city"`
	Timestamp   time.Time `json:"timestamp"`
	Temperature float64   `json:"temperature"`
	Season      Season    `json:"season"`
}

// HasTimestamp reports whether the reading carries a usable timestamp.
func (r Reading) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// ScoredReading is a historical reading with its derived rolling mean and
// anomaly flag. RollingMean is nil for the first readings of a city.
type ScoredReading struct {
	Reading
	RollingMean *float64 `json:"rollingMean"`
	Anomalous   bool     `json:"anomaly"`
}

// SeasonBaseline holds the temperature statistics of one city in one season.
// Std is NaN when the group has a single observation.
type SeasonBaseline struct {
	City   string  `json:"city"`
	Season Season  `json:"season"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Count  int     `json:"count"`
}

// Verdict is the outcome of classifying one temperature. Lower and Upper are
// set only when HasBaseline is true.
type Verdict struct {
	Anomalous   bool    `json:"anomaly"`
	HasBaseline bool    `json:"hasBaseline"`
	Lower       float64 `json:"lower"`
	Upper       float64 `json:"upper"`
}

// Summary describes the distribution of a set of temperatures.
type Summary struct {
	City   string  `json:"city"`
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
}

// Coordinates is a geographic position returned by geocoding.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the position as "lat,lon".
func (c Coordinates) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// FetchState tracks a city through a live check run.
type FetchState string

const (
	StatePending    FetchState = "pending"
	StateFetching   FetchState = "fetching"
	StateSucceeded  FetchState = "succeeded"
	StateFailed     FetchState = "failed"
	StateClassified FetchState = "classified"
)

// FetchOutcome is the result of a live check for one city. Exactly one of
// Temperature/Verdict or ErrorKind/Error is set.
type FetchOutcome struct {
	City        string     `json:"city"`
	State       FetchState `json:"state"`
	Temperature *float64   `json:"temperatureC,omitempty"`
	Verdict     *Verdict   `json:"verdict,omitempty"`
	ErrorKind   string     `json:"errorKind,omitempty"`
	Error       string     `json:"error,omitempty"`
	CheckedAt   time.Time  `json:"checkedAt"`
}

// Failed reports whether the outcome ended in a failure.
func (o FetchOutcome) Failed() bool {
	return o.State == StateFailed
}

// LiveReport is the full result of one live check run. Outcomes follow the
// order of the requested cities.
type LiveReport struct {
	RunID      string         `json:"runId"`
	Season     Season         `json:"season"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Outcomes   []FetchOutcome `json:"outcomes"`
}

// Result is a value or an error delivered by an asynchronous call.
type Result[T any] struct {
	Value T
	Err   error
}

// Async runs fn on its own goroutine and delivers its result on the returned
// channel, which receives exactly one value. A panic in fn is delivered as an
// error.
func Async[T any](fn func() (T, error)) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	go func() {
		var res Result[T]
		defer func() {
			if r := recover(); r != nil {
				res = Result[T]{Err: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
			}
			ch <- res
		}()
		res.Value, res.Err = fn()
	}()
	return ch
}

// MarshalJSON omits the bounds when there is no baseline.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type alias Verdict
	if v.HasBaseline {
		return json.Marshal(alias(v))
	}
	return json.Marshal(struct {
		Anomalous   bool `json:"anomaly"`
		HasBaseline bool `json:"hasBaseline"`
	}{Anomalous: v.Anomalous})
}

// MarshalJSON encodes an undefined Std as null.
func (b SeasonBaseline) MarshalJSON() ([]byte, error) {
	type alias SeasonBaseline
	return json.Marshal(struct {
		alias
		Std *float64 `json:"std"`
	}{alias: alias(b), Std: finiteOrNil(b.Std)})
}

// MarshalJSON encodes an undefined Std as null.
func (s Summary) MarshalJSON() ([]byte, error) {
	type alias Summary
	return json.Marshal(struct {
		alias
		Std *float64 `json:"std"`
	}{alias: alias(s), Std: finiteOrNil(s.Std)})
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
