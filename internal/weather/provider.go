package weather

import (
	"context"
	"time"
)

// TemperatureSource fetches the current temperature of a city. Both call
// styles share the same inputs and failure semantics: geocoding failures
// short-circuit the weather call and are returned as is.
type TemperatureSource interface {
	CurrentTemperature(ctx context.Context, city, apiKey string) (float64, error)
	CurrentTemperatureAsync(ctx context.Context, city, apiKey string) <-chan Result[float64]
}

// ReportStore is the contract the in-memory report store must satisfy.
type ReportStore interface {
	SaveReport(report LiveReport)
	Latest() (LiveReport, error)
	History(city string, from, to time.Time) ([]FetchOutcome, error)
}
