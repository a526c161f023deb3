package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(envConfigFile, "")
	t.Setenv(envAPIKey, "plain-env-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "data/temperatures.csv", cfg.DataPath)
	assert.Equal(t, 15*time.Minute, cfg.CheckInterval)
	assert.Equal(t, "openweathermap", cfg.WeatherProvider)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "plain-env-key", cfg.OpenWeatherAPIKey)
	assert.Empty(t, cfg.CityList())
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anomaly.yaml")
	yml := `
data_path: /srv/history.csv
cities: "Berlin, Cairo ,Dubai"
worker_count: 4
check_interval: 5m
weather_provider: openmeteo
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv(envConfigFile, path)
	t.Setenv("ANOMALY_WORKER_COUNT", "8")
	t.Setenv("ANOMALY_HTTP_TIMEOUT", "3s")
	t.Setenv("ANOMALY_OPENWEATHER_API_KEY", "prefixed")
	t.Setenv(envAPIKey, "ignored")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/srv/history.csv", cfg.DataPath)
	assert.Equal(t, []string{"Berlin", "Cairo", "Dubai"}, cfg.CityList())
	assert.Equal(t, 8, cfg.WorkerCount, "env overrides file")
	assert.Equal(t, 5*time.Minute, cfg.CheckInterval)
	assert.Equal(t, 3*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "openmeteo", cfg.WeatherProvider)
	assert.Equal(t, "prefixed", cfg.OpenWeatherAPIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv(envConfigFile, "")

	t.Setenv("ANOMALY_WEATHER_PROVIDER", "weatherstack")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("ANOMALY_WEATHER_PROVIDER", "openweathermap")
	t.Setenv("ANOMALY_HTTP_MAX_RETRIES", "9")
	_, err = Load()
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv(envConfigFile, filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := Load()
	require.Error(t, err)
}
