package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/i474232898/weather-anomaly/internal/common"
)

const (
	envPrefix     = "ANOMALY_"
	envConfigFile = "ANOMALY_CONFIG"

	// Read when the prefixed keys are not set.
	envAPIKey        = "OPENWEATHER_API_KEY"
	envWeatherAPIKey = "WEATHERAPI_API_KEY"
)

type AppConfig struct {
	// DataPath is the historical CSV dataset.
	DataPath string `koanf:"data_path" validate:"required"`

	// Cities is the comma-separated list checked live by the scheduler.
	Cities string `koanf:"cities"`

	// WorkerCount bounds batch scoring parallelism (0 = every CPU).
	WorkerCount int `koanf:"worker_count" validate:"gte=0"`

	// CheckInterval controls how often live checks run (0 disables them).
	CheckInterval time.Duration `koanf:"check_interval" validate:"gte=0"`

	// Outbound provider calls.
	HTTPTimeout     time.Duration `koanf:"http_timeout" validate:"gt=0"`
	HTTPMaxRetries  int           `koanf:"http_max_retries" validate:"gte=0,lte=5"`
	RateLimitRPS    float64       `koanf:"rate_limit_rps" validate:"gte=0"`
	RateLimitBurst  int           `koanf:"rate_limit_burst" validate:"gte=0"`
	WeatherProvider string        `koanf:"weather_provider" validate:"oneof=openweathermap openmeteo weatherapi"`
	GeocodeURL      string        `koanf:"geocode_url" validate:"omitempty,url"`
	WeatherURL      string        `koanf:"weather_url" validate:"omitempty,url"`

	OpenWeatherAPIKey string `koanf:"openweather_api_key"`
	WeatherAPIKey     string `koanf:"weatherapi_api_key"`

	// In-memory report store retention.
	StoreMaxHistory int           `koanf:"store_max_history" validate:"gte=0"` // max outcomes per city (0 = unlimited)
	StoreMaxAge     time.Duration `koanf:"store_max_age" validate:"gte=0"`     // max age of outcomes (0 = unlimited)

	Port     string `koanf:"port" validate:"required,numeric"`
	LogLevel string `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *AppConfig {
	return &AppConfig{
		DataPath:        "data/temperatures.csv",
		CheckInterval:   15 * time.Minute,
		HTTPTimeout:     10 * time.Second,
		RateLimitRPS:    1,
		RateLimitBurst:  5,
		WeatherProvider: "openweathermap",
		StoreMaxHistory: 96, // roughly 24h at 15-minute intervals
		StoreMaxAge:     24 * time.Hour,
		Port:            "8080",
		LogLevel:        "info",
	}
}

// CityList returns the configured live-check cities.
func (c *AppConfig) CityList() []string {
	return common.SplitList(c.Cities)
}

// Load layers defaults, an optional YAML file named by ANOMALY_CONFIG and
// ANOMALY_* environment variables (low -> high), then validates the result.
// A .env file in the working directory is loaded first if present.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// ANOMALY_WORKER_COUNT -> worker_count
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.TrimPrefix(strings.ToLower(s), strings.ToLower(envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.OpenWeatherAPIKey == "" {
		cfg.OpenWeatherAPIKey = os.Getenv(envAPIKey)
	}
	if cfg.WeatherAPIKey == "" {
		cfg.WeatherAPIKey = os.Getenv(envWeatherAPIKey)
	}
	cfg.WeatherProvider = strings.ToLower(cfg.WeatherProvider)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
