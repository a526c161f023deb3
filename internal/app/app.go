// Package app wires configuration into a ready service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/i474232898/weather-anomaly/internal/config"
	"github.com/i474232898/weather-anomaly/internal/dataset"
	"github.com/i474232898/weather-anomaly/internal/store"
	"github.com/i474232898/weather-anomaly/internal/weather"
	"github.com/i474232898/weather-anomaly/internal/weather/providers"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config  *config.AppConfig
	Logger  *slog.Logger
	Service *weather.Service
	Store   *store.MemoryStore
	Source  *providers.WeatherClient
}

// NewSource builds the weather client from cfg: a shared HTTP client with
// the configured timeout, retries and rate limit.
func NewSource(cfg *config.AppConfig) (*providers.WeatherClient, error) {
	httpCfg := providers.DefaultHTTPConfig(&http.Client{Timeout: cfg.HTTPTimeout})
	httpCfg.Backoff.MaxRetries = cfg.HTTPMaxRetries
	httpCfg.Limiter = providers.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	return providers.New(httpCfg, providers.Options{
		Provider:   cfg.WeatherProvider,
		GeocodeURL: cfg.GeocodeURL,
		WeatherURL: cfg.WeatherURL,

		WeatherAPIKey: cfg.WeatherAPIKey,
	})
}

// New wires the service, its report store and the weather client.
func New(cfg *config.AppConfig, logger *slog.Logger) (*App, error) {
	source, err := NewSource(cfg)
	if err != nil {
		return nil, err
	}

	memStore := store.NewMemoryStore(cfg.StoreMaxHistory, cfg.StoreMaxAge)
	svc := weather.NewService(
		weather.Config{Credential: cfg.OpenWeatherAPIKey, WorkerCount: cfg.WorkerCount},
		source,
		weather.WithLogger(logger),
		weather.WithStore(memStore),
	)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Service: svc,
		Store:   memStore,
		Source:  source,
	}, nil
}

// LoadDataset reads the configured CSV and publishes its analysis.
func (a *App) LoadDataset(ctx context.Context) (*weather.Analysis, error) {
	ds, stats, err := dataset.ReadFile(a.Config.DataPath)
	if err != nil {
		return nil, err
	}
	if stats.Skipped > 0 || stats.BadTimestamps > 0 {
		a.Logger.Warn("malformed rows in dataset",
			"path", a.Config.DataPath,
			"skipped", stats.Skipped,
			"badTimestamps", stats.BadTimestamps,
			"first", errors.Join(stats.Issues...))
	}
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: dataset %s has no usable rows", weather.ErrMalformedInput, a.Config.DataPath)
	}

	return a.Service.Load(ctx, ds)
}
