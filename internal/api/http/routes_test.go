package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-anomaly/internal/store"
	"github.com/i474232898/weather-anomaly/internal/weather"
)

type stubSource map[string]float64

func (s stubSource) CurrentTemperature(_ context.Context, city, _ string) (float64, error) {
	t, ok := s[city]
	if !ok {
		return 0, fmt.Errorf("%w: %s", weather.ErrNotFound, city)
	}
	return t, nil
}

func (s stubSource) CurrentTemperatureAsync(ctx context.Context, city, key string) <-chan weather.Result[float64] {
	return weather.Async(func() (float64, error) { return s.CurrentTemperature(ctx, city, key) })
}

func newTestApp(t *testing.T, load bool) (*fiber.App, *store.MemoryStore) {
	t.Helper()

	memStore := store.NewMemoryStore(10, 0)
	svc := weather.NewService(
		weather.Config{Credential: "key", WorkerCount: 2},
		stubSource{"Berlin": 35, "Cairo": 22.5},
		weather.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		weather.WithClock(func() time.Time { return time.Date(2026, time.January, 10, 0, 0, 0, 0, time.UTC) }),
		weather.WithStore(memStore),
	)

	if load {
		day := func(d int) time.Time { return time.Date(2025, time.January, d, 0, 0, 0, 0, time.UTC) }
		ds := weather.NewDataset([]weather.Reading{
			{City: "Berlin", Timestamp: day(1), Temperature: 0, Season: weather.SeasonWinter},
			{City: "Berlin", Timestamp: day(2), Temperature: 2, Season: weather.SeasonWinter},
			{City: "Berlin", Timestamp: day(3), Temperature: 4, Season: weather.SeasonWinter},
			{City: "Cairo", Timestamp: day(1), Temperature: 20, Season: weather.SeasonWinter},
			{City: "Cairo", Timestamp: day(2), Temperature: 22, Season: weather.SeasonWinter},
		})
		if _, err := svc.Load(context.Background(), ds); err != nil {
			t.Fatalf("load: %v", err)
		}
	}

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Use(Metrics())
	RegisterRoutes(app, Deps{Service: svc, Reports: memStore, DefaultCities: []string{"Cairo"}})
	return app, memStore
}

func do(t *testing.T, app *fiber.App, req *http.Request, wantStatus int, out any) {
	t.Helper()

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", req.Method, req.URL, wantStatus, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}

// TestReadingsValidation verifies that the readings endpoint requires a city
// and rejects malformed ranges.
func TestReadingsValidation(t *testing.T) {
	app, _ := newTestApp(t, true)

	for _, target := range []string{
		"/api/v1/readings",
		"/api/v1/readings?city=Berlin&from=yesterday",
		"/api/v1/readings?city=Berlin&from=2025-02-01&to=2025-01-01",
		"/api/v1/readings?city=Berlin&anomalies=maybe",
	} {
		do(t, app, httptest.NewRequest(http.MethodGet, target, nil), http.StatusBadRequest, nil)
	}

	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/readings?city=Tokyo", nil), http.StatusNotFound, nil)
}

func TestReadingsRange(t *testing.T) {
	app, _ := newTestApp(t, true)

	var body struct {
		Count    int `json:"count"`
		Readings []struct {
			Temperature float64  `json:"temperature"`
			RollingMean *float64 `json:"rollingMean"`
		} `json:"readings"`
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/readings?city=Berlin&from=2025-01-02&to=2025-01-03", nil), http.StatusOK, &body)

	if body.Count != 2 || len(body.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", body.Count)
	}
	if body.Readings[0].Temperature != 2 {
		t.Fatalf("expected first temperature 2, got %v", body.Readings[0].Temperature)
	}
	if body.Readings[0].RollingMean != nil {
		t.Fatalf("expected null rolling mean for a short series")
	}
}

func TestQueriesBeforeLoad(t *testing.T) {
	app, _ := newTestApp(t, false)
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil), http.StatusServiceUnavailable, nil)
}

func TestCitiesBaselinesSummary(t *testing.T) {
	app, _ := newTestApp(t, true)

	var cities struct {
		Cities []string `json:"cities"`
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/cities", nil), http.StatusOK, &cities)
	if strings.Join(cities.Cities, ",") != "Berlin,Cairo" {
		t.Fatalf("unexpected cities %v", cities.Cities)
	}

	var baselines struct {
		Baselines []weather.SeasonBaseline `json:"baselines"`
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/baselines?city=Berlin", nil), http.StatusOK, &baselines)
	if len(baselines.Baselines) != 1 || baselines.Baselines[0].Mean != 2 || baselines.Baselines[0].Std != 2 {
		t.Fatalf("unexpected baselines %+v", baselines.Baselines)
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/baselines?city=Tokyo", nil), http.StatusNotFound, nil)

	var summary weather.Summary
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/cities/Cairo/summary", nil), http.StatusOK, &summary)
	if summary.Count != 2 || summary.Median != 21 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	var compare struct {
		Summaries []weather.Summary `json:"summaries"`
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/compare?cities=Cairo,Berlin", nil), http.StatusOK, &compare)
	if len(compare.Summaries) != 2 || compare.Summaries[0].City != "Cairo" {
		t.Fatalf("unexpected comparison %+v", compare.Summaries)
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/compare", nil), http.StatusBadRequest, nil)
}

func TestLiveCheckAndHistory(t *testing.T) {
	app, _ := newTestApp(t, true)

	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/live/latest", nil), http.StatusNotFound, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/live/check", strings.NewReader(`{"cities":["Berlin","Atlantis","Cairo"]}`))
	req.Header.Set("Content-Type", "application/json")

	var report weather.LiveReport
	do(t, app, req, http.StatusOK, &report)

	if len(report.Outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(report.Outcomes))
	}
	berlin, atlantis, cairo := report.Outcomes[0], report.Outcomes[1], report.Outcomes[2]
	if berlin.Verdict == nil || !berlin.Verdict.Anomalous {
		t.Fatalf("expected Berlin 35C in winter to be anomalous: %+v", berlin)
	}
	if atlantis.State != weather.StateFailed || atlantis.ErrorKind != weather.KindNotFound {
		t.Fatalf("expected Atlantis to fail with not_found: %+v", atlantis)
	}
	if cairo.Verdict == nil || cairo.Verdict.Anomalous {
		t.Fatalf("expected Cairo 22.5C in winter to be normal: %+v", cairo)
	}

	var latest weather.LiveReport
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/live/latest", nil), http.StatusOK, &latest)
	if latest.RunID != report.RunID {
		t.Fatalf("expected latest run %s, got %s", report.RunID, latest.RunID)
	}

	var history struct {
		Outcomes []weather.FetchOutcome `json:"outcomes"`
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/live/history?city=Berlin", nil), http.StatusOK, &history)
	if len(history.Outcomes) != 1 {
		t.Fatalf("expected one Berlin outcome, got %d", len(history.Outcomes))
	}
	do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/live/history", nil), http.StatusBadRequest, nil)
}

func TestLiveCheckDefaultsAndQuery(t *testing.T) {
	app, _ := newTestApp(t, true)

	var report weather.LiveReport
	do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/live/check", nil), http.StatusOK, &report)
	if len(report.Outcomes) != 1 || report.Outcomes[0].City != "Cairo" {
		t.Fatalf("expected the default city, got %+v", report.Outcomes)
	}

	do(t, app, httptest.NewRequest(http.MethodPost, "/api/v1/live/check?cities=Berlin,Cairo", nil), http.StatusOK, &report)
	if len(report.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(report.Outcomes))
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/live/check", strings.NewReader(`{"cities":`))
	req.Header.Set("Content-Type", "application/json")
	do(t, app, req, http.StatusBadRequest, nil)
}

// TestLiveCheckCityLimit verifies that a live check accepts at most maxCities
// cities and reports the limit.
func TestLiveCheckCityLimit(t *testing.T) {
	app, _ := newTestApp(t, true)

	cities := make([]string, maxCities+1)
	for i := range cities {
		cities[i] = fmt.Sprintf("City%d", i)
	}

	var report weather.LiveReport
	target := "/api/v1/live/check?cities=" + strings.Join(cities[:maxCities], ",")
	do(t, app, httptest.NewRequest(http.MethodPost, target, nil), http.StatusOK, &report)
	if len(report.Outcomes) != maxCities {
		t.Fatalf("expected %d outcomes, got %d", maxCities, len(report.Outcomes))
	}

	var body struct {
		Message string `json:"message"`
	}
	target = "/api/v1/live/check?cities=" + strings.Join(cities, ",")
	do(t, app, httptest.NewRequest(http.MethodPost, target, nil), http.StatusBadRequest, &body)
	if body.Message != errCitiesCount || !strings.Contains(body.Message, strconv.Itoa(maxCities)) {
		t.Fatalf("unexpected message %q", body.Message)
	}
}
