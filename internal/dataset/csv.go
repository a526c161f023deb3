// Package dataset reads historical temperature records.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// maxIssues bounds how many row problems LoadStats keeps.
const maxIssues = 20

var requiredColumns = []string{"city", "timestamp", "temperature", "season"}

// timestampLayouts are tried in order; the first that parses wins.
var timestampLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// LoadStats reports how lenient parsing treated the input.
type LoadStats struct {
	Rows          int     `json:"rows"`
	Loaded        int     `json:"loaded"`
	Skipped       int     `json:"skipped"`
	BadTimestamps int     `json:"badTimestamps"`
	Issues        []error `json:"-"`
}

func (s *LoadStats) issue(err error) {
	if len(s.Issues) < maxIssues {
		s.Issues = append(s.Issues, err)
	}
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string) (weather.Dataset, LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return weather.Dataset{}, LoadStats{}, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses CSV records with a header naming the city, timestamp,
// temperature and season columns, in any order. Malformed rows never fail the
// load:
//   - an unparseable timestamp becomes the zero time;
//   - a missing city or temperature skips the row;
//   - a missing or unknown season is derived from the timestamp, or the row is
//     skipped when there is none.
//
// Every coerced or skipped row is recorded in LoadStats as ErrMalformedInput.
func Read(r io.Reader) (weather.Dataset, LoadStats, error) {
	var stats LoadStats

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return weather.NewDataset(nil), stats, nil
		}
		return weather.Dataset{}, stats, fmt.Errorf("read header: %w", err)
	}

	cols, err := columnIndex(header)
	if err != nil {
		return weather.Dataset{}, stats, err
	}

	var readings []weather.Reading
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.Skipped++
				stats.issue(fmt.Errorf("%w: line %d: %v", weather.ErrMalformedInput, line, perr.Err))
				continue
			}
			return weather.Dataset{}, stats, fmt.Errorf("read line %d: %w", line, err)
		}
		stats.Rows++

		reading, badTS, err := parseRecord(rec, cols)
		if badTS {
			stats.BadTimestamps++
			stats.issue(fmt.Errorf("%w: line %d: unparseable timestamp %q", weather.ErrMalformedInput, line, field(rec, cols["timestamp"])))
		}
		if err != nil {
			stats.Skipped++
			stats.issue(fmt.Errorf("line %d: %w", line, err))
			continue
		}
		readings = append(readings, reading)
	}

	stats.Loaded = len(readings)
	return weather.NewDataset(readings), stats, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", weather.ErrMalformedInput, c)
		}
	}
	return cols, nil
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// parseRecord converts one CSV record. badTS reports a timestamp that was
// present but could not be parsed.
func parseRecord(rec []string, cols map[string]int) (r weather.Reading, badTS bool, err error) {
	r.City = field(rec, cols["city"])
	if r.City == "" {
		return r, false, fmt.Errorf("%w: missing city", weather.ErrMalformedInput)
	}

	rawTS := field(rec, cols["timestamp"])
	r.Timestamp, badTS = ParseTimestamp(rawTS)

	rawTemp := field(rec, cols["temperature"])
	r.Temperature, err = strconv.ParseFloat(rawTemp, 64)
	if err != nil || math.IsNaN(r.Temperature) || math.IsInf(r.Temperature, 0) {
		return r, badTS, fmt.Errorf("%w: bad temperature %q", weather.ErrMalformedInput, rawTemp)
	}

	season, err := weather.ParseSeason(field(rec, cols["season"]))
	switch {
	case err == nil:
		r.Season = season
	case r.HasTimestamp():
		r.Season = weather.SeasonAt(r.Timestamp)
	default:
		return r, badTS, fmt.Errorf("%w: no season and no timestamp", weather.ErrMalformedInput)
	}
	return r, badTS, nil
}

// ParseTimestamp parses an ISO-8601 date or date-time. An unparseable
// non-empty value yields the zero time and bad == true; an empty value yields
// the zero time and bad == false.
func ParseTimestamp(s string) (t time.Time, bad bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), false
		}
	}
	return time.Time{}, true
}
