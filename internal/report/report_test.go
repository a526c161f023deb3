package report

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

func TestBaselines(t *testing.T) {
	var buf bytes.Buffer
	err := Baselines(&buf, []weather.SeasonBaseline{
		{City: "Berlin", Season: weather.SeasonWinter, Mean: 1, Std: 2, Count: 90},
		{City: "Rome", Season: weather.SeasonSummer, Mean: 28, Std: math.NaN(), Count: 1},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Berlin")
	assert.Contains(t, out, "-3.00")
	assert.Contains(t, out, "5.00")
	assert.Contains(t, out, "n/a")
}

func TestAnomalies(t *testing.T) {
	mean := 10.0
	scored := []weather.ScoredReading{
		{Reading: weather.Reading{City: "Berlin", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Temperature: 30, Season: weather.SeasonWinter}, RollingMean: &mean, Anomalous: true},
		{Reading: weather.Reading{City: "Berlin", Temperature: 1, Season: weather.SeasonWinter}},
		{Reading: weather.Reading{City: "Cairo", Temperature: 20, Season: weather.SeasonWinter}},
	}

	var buf bytes.Buffer
	require.NoError(t, Anomalies(&buf, scored, 0))

	out := buf.String()
	assert.Contains(t, out, "2024-01-02")
	assert.Contains(t, out, "30.00")
	assert.Contains(t, out, "Berlin: 1 anomalies")
	assert.Contains(t, out, "Cairo: 0 anomalies")
	assert.Contains(t, out, "Total: 1 of 3 readings anomalous")
}

func TestLive(t *testing.T) {
	temp := 35.0
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := weather.LiveReport{
		RunID:      "run-1",
		Season:     weather.SeasonWinter,
		StartedAt:  start,
		FinishedAt: start.Add(1500 * time.Millisecond),
		Outcomes: []weather.FetchOutcome{
			{City: "Berlin", State: weather.StateClassified, Temperature: &temp, Verdict: &weather.Verdict{Anomalous: true, HasBaseline: true, Lower: -2, Upper: 6}},
			{City: "Cairo", State: weather.StateFailed, ErrorKind: weather.KindTransport, Error: "geocode: status 502"},
			{City: "Lima", State: weather.StateClassified, Temperature: &temp, Verdict: &weather.Verdict{}},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Live(&buf, r))

	out := buf.String()
	assert.Contains(t, out, "ANOMALY")
	assert.Contains(t, out, "FAILED (transport)")
	assert.Contains(t, out, "no baseline")
	assert.Contains(t, out, "3 cities, 1 failed")
	assert.Contains(t, out, "Cairo: geocode: status 502")
}
