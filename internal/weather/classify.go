package weather

import (
	"fmt"
	"math"
)

// sigmaBand is the number of standard deviations a temperature may deviate
// from its baseline mean before it is anomalous.
const sigmaBand = 2

// BaselineTable indexes season baselines by (city, season). It is read-only
// once built and safe for concurrent use.
type BaselineTable struct {
	entries map[baselineKey]SeasonBaseline
}

// NewBaselineTable indexes baselines. Two entries for the same (city, season)
// with different statistics are a configuration error.
func NewBaselineTable(baselines []SeasonBaseline) (*BaselineTable, error) {
	t := &BaselineTable{entries: make(map[baselineKey]SeasonBaseline, len(baselines))}
	for _, b := range baselines {
		k := baselineKey{city: b.City, season: b.Season}
		if prev, ok := t.entries[k]; ok {
			if !sameBaseline(prev, b) {
				return nil, fmt.Errorf("%w: %s/%s", ErrConflictingBaseline, b.City, b.Season)
			}
			continue
		}
		t.entries[k] = b
	}
	return t, nil
}

func sameBaseline(a, b SeasonBaseline) bool {
	sameStd := a.Std == b.Std || (math.IsNaN(a.Std) && math.IsNaN(b.Std))
	return a.Mean == b.Mean && sameStd
}

// Lookup returns the baseline for an exact (city, season) match.
func (t *BaselineTable) Lookup(city string, season Season) (SeasonBaseline, bool) {
	if t == nil {
		return SeasonBaseline{}, false
	}
	b, ok := t.entries[baselineKey{city: city, season: season}]
	return b, ok
}

// Len returns the number of indexed baselines.
func (t *BaselineTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Judge classifies temperature against the baseline of (city, season).
// Without a baseline, or with an undefined standard deviation, the
// temperature is not anomalous. The bounds mean±2σ are inclusive.
func Judge(temperature float64, city string, season Season, table *BaselineTable) Verdict {
	b, ok := table.Lookup(city, season)
	if !ok || math.IsNaN(b.Std) || math.IsInf(b.Std, 0) {
		return Verdict{}
	}

	lower := b.Mean - sigmaBand*b.Std
	upper := b.Mean + sigmaBand*b.Std
	return Verdict{
		Anomalous:   temperature < lower || temperature > upper,
		HasBaseline: true,
		Lower:       lower,
		Upper:       upper,
	}
}

// Classify reports whether temperature is anomalous for (city, season).
func Classify(temperature float64, city string, season Season, table *BaselineTable) bool {
	return Judge(temperature, city, season, table).Anomalous
}
