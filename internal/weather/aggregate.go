package weather

import (
	"math"
	"sort"
)

// Describe summarizes the temperatures of readings. Quantiles use linear
// interpolation between closest ranks.
func Describe(city string, readings []Reading) Summary {
	s := Summary{City: city, Count: len(readings)}
	if len(readings) == 0 {
		return s
	}

	values := make([]float64, len(readings))
	for i, r := range readings {
		values[i] = r.Temperature
	}
	s.Mean, s.Std = meanStd(values)

	sort.Float64s(values)
	s.Min = values[0]
	s.Max = values[len(values)-1]
	s.P25 = quantile(values, 0.25)
	s.Median = quantile(values, 0.5)
	s.P75 = quantile(values, 0.75)
	return s
}

// quantile expects sorted values.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
