// Package report renders analysis results as text tables.
package report

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

var (
	anomalyColor = color.New(color.FgRed, color.Bold) // outside the 2-sigma band
	normalColor  = color.New(color.FgGreen)           // inside the band
	failedColor  = color.New(color.FgYellow)          // fetch failed
	mutedColor   = color.New(color.FgHiBlack)         // no baseline
)

func celsius(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "n/a"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func timestamp(r weather.Reading) string {
	if !r.HasTimestamp() {
		return "-"
	}
	return r.Timestamp.Format(time.DateOnly)
}

func render(w io.Writer, headers []string, data [][]string) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// Baselines prints one row per (city, season).
func Baselines(w io.Writer, baselines []weather.SeasonBaseline) error {
	data := make([][]string, 0, len(baselines))
	for _, b := range baselines {
		lower, upper := "n/a", "n/a"
		if !math.IsNaN(b.Std) {
			lower = celsius(b.Mean - 2*b.Std)
			upper = celsius(b.Mean + 2*b.Std)
		}
		data = append(data, []string{
			b.City,
			string(b.Season),
			strconv.Itoa(b.Count),
			celsius(b.Mean),
			celsius(b.Std),
			lower,
			upper,
		})
	}
	return render(w, []string{"City", "Season", "N", "Mean", "Std", "Lower", "Upper"}, data)
}

// Summaries prints descriptive statistics, one city per row.
func Summaries(w io.Writer, summaries []weather.Summary) error {
	data := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		data = append(data, []string{
			s.City,
			strconv.Itoa(s.Count),
			celsius(s.Mean),
			celsius(s.Std),
			celsius(s.Min),
			celsius(s.P25),
			celsius(s.Median),
			celsius(s.P75),
			celsius(s.Max),
		})
	}
	return render(w, []string{"City", "N", "Mean", "Std", "Min", "P25", "Median", "P75", "Max"}, data)
}

// Anomalies prints the anomalous readings of scored, at most limit rows
// (limit <= 0 prints all), followed by per-city totals.
func Anomalies(w io.Writer, scored []weather.ScoredReading, limit int) error {
	var data [][]string
	perCity := make(map[string]int)
	var cities []string
	total := 0

	for _, sr := range scored {
		if _, ok := perCity[sr.City]; !ok {
			cities = append(cities, sr.City)
			perCity[sr.City] = 0
		}
		if !sr.Anomalous {
			continue
		}
		perCity[sr.City]++
		total++
		if limit > 0 && len(data) >= limit {
			continue
		}

		rolling := "-"
		if sr.RollingMean != nil {
			rolling = celsius(*sr.RollingMean)
		}
		data = append(data, []string{
			sr.City,
			timestamp(sr.Reading),
			string(sr.Season),
			anomalyColor.Sprint(celsius(sr.Temperature)),
			rolling,
		})
	}

	if err := render(w, []string{"City", "Date", "Season", "Temp", "Rolling30"}, data); err != nil {
		return err
	}
	for _, c := range cities {
		if _, err := fmt.Fprintf(w, "%s: %d anomalies\n", c, perCity[c]); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total: %d of %d readings anomalous\n", total, len(scored))
	return err
}

// Live prints the outcome of a live check, in input order.
func Live(w io.Writer, r weather.LiveReport) error {
	data := make([][]string, 0, len(r.Outcomes))
	failed := 0
	for _, o := range r.Outcomes {
		temp, lower, upper := "-", "-", "-"
		if o.Temperature != nil {
			temp = celsius(*o.Temperature)
		}

		var status string
		switch {
		case o.Failed():
			failed++
			status = failedColor.Sprintf("FAILED (%s)", o.ErrorKind)
		case o.Verdict == nil || !o.Verdict.HasBaseline:
			status = mutedColor.Sprint("no baseline")
		case o.Verdict.Anomalous:
			status = anomalyColor.Sprint("ANOMALY")
		default:
			status = normalColor.Sprint("normal")
		}
		if o.Verdict != nil && o.Verdict.HasBaseline {
			lower, upper = celsius(o.Verdict.Lower), celsius(o.Verdict.Upper)
		}

		data = append(data, []string{o.City, temp, lower, upper, status})
	}

	if err := render(w, []string{"City", "Temp", "Lower", "Upper", "Status"}, data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Run %s (%s): %d cities, %d failed, %v\n",
		r.RunID, r.Season, len(r.Outcomes), failed, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, o := range r.Outcomes {
		if err != nil {
			return err
		}
		if o.Failed() {
			_, err = fmt.Fprintf(w, "  %s: %s\n", o.City, o.Error)
		}
	}
	return err
}
