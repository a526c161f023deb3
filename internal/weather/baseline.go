package weather

import (
	"math"
	"sort"
)

// RollingWindow is the number of observations averaged by RollingMeans.
const RollingWindow = 30

// RollingMeans computes the trailing mean over RollingWindow observations for
// each position of readings, which must all belong to one city. Positions
// with fewer than RollingWindow observations so far get nil.
func RollingMeans(readings []Reading) []*float64 {
	out := make([]*float64, len(readings))
	for i := RollingWindow - 1; i < len(readings); i++ {
		var sum float64
		for _, r := range readings[i-RollingWindow+1 : i+1] {
			sum += r.Temperature
		}
		mean := sum / RollingWindow
		out[i] = &mean
	}
	return out
}

type baselineKey struct {
	city   string
	season Season
}

// ComputeBaselines groups the dataset by (city, season) and returns the sample
// mean and sample standard deviation (N-1 divisor) of each group, sorted by
// city and then season. A group with one observation has a NaN Std.
func ComputeBaselines(ds Dataset) []SeasonBaseline {
	groups := make(map[baselineKey][]float64)
	var keys []baselineKey
	for _, r := range ds.readings {
		k := baselineKey{city: r.City, season: r.Season}
		if _, ok := groups[k]; !ok {
			keys = append(keys, k)
		}
		groups[k] = append(groups[k], r.Temperature)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].city != keys[j].city {
			return keys[i].city < keys[j].city
		}
		return keys[i].season.order() < keys[j].season.order()
	})

	baselines := make([]SeasonBaseline, 0, len(keys))
	for _, k := range keys {
		mean, std := meanStd(groups[k])
		baselines = append(baselines, SeasonBaseline{
			City:   k.city,
			Season: k.season,
			Mean:   mean,
			Std:    std,
			Count:  len(groups[k]),
		})
	}
	return baselines
}

// meanStd returns the mean and sample standard deviation of values.
func meanStd(values []float64) (float64, float64) {
	n := len(values)
	if n == 0 {
		return math.NaN(), math.NaN()
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(n)
	if n == 1 {
		return mean, math.NaN()
	}

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(n-1))
}
