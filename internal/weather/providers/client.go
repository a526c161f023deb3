package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// Geocoder resolves a city name to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, city, apiKey string) (weather.Coordinates, error)
}

// Conditions reads the current temperature at coordinates.
type Conditions interface {
	Name() string
	TemperatureAt(ctx context.Context, c weather.Coordinates, apiKey string) (float64, error)
}

// WeatherClient implements weather.TemperatureSource by geocoding the city and
// then asking a conditions provider for the temperature there.
type WeatherClient struct {
	geocoder   Geocoder
	conditions Conditions
}

var _ weather.TemperatureSource = (*WeatherClient)(nil)

// NewWeatherClient composes a geocoder and a conditions provider.
func NewWeatherClient(geocoder Geocoder, conditions Conditions) *WeatherClient {
	return &WeatherClient{geocoder: geocoder, conditions: conditions}
}

// CurrentTemperature geocodes city and returns its current temperature in
// degrees Celsius. A geocoding failure is returned without calling the
// conditions provider.
func (c *WeatherClient) CurrentTemperature(ctx context.Context, city, apiKey string) (float64, error) {
	coords, err := c.geocoder.Resolve(ctx, city, apiKey)
	if err != nil {
		return 0, err
	}
	return c.conditions.TemperatureAt(ctx, coords, apiKey)
}

// CurrentTemperatureAsync runs CurrentTemperature on its own goroutine.
func (c *WeatherClient) CurrentTemperatureAsync(ctx context.Context, city, apiKey string) <-chan weather.Result[float64] {
	return weather.Async(func() (float64, error) {
		return c.CurrentTemperature(ctx, city, apiKey)
	})
}

// Provider names accepted by New.
const (
	ProviderOpenWeather = "openweathermap"
	ProviderOpenMeteo   = "openmeteo"
	ProviderWeatherAPI  = "weatherapi"
)

// Options selects and configures the client built by New.
type Options struct {
	Provider   string
	GeocodeURL string
	WeatherURL string

	// WeatherAPIKey authenticates against WeatherAPI.com.
	WeatherAPIKey string
}

// New builds a WeatherClient sharing one HTTP config between the geocoder
// and the conditions provider.
func New(cfg HTTPClientConfig, opts Options) (*WeatherClient, error) {
	if cfg.Client == nil {
		cfg.Client = http.DefaultClient
	}

	geocoder := NewOpenWeatherGeocoder(cfg, opts.GeocodeURL)

	var conditions Conditions
	switch strings.ToLower(opts.Provider) {
	case "", ProviderOpenWeather:
		conditions = NewOpenWeatherCurrent(cfg, opts.WeatherURL)
	case ProviderOpenMeteo:
		conditions = NewOpenMeteoCurrent(cfg, opts.WeatherURL)
	case ProviderWeatherAPI:
		conditions = NewWeatherAPICurrent(cfg, opts.WeatherURL, opts.WeatherAPIKey)
	default:
		return nil, fmt.Errorf("%w: unknown weather provider %q", weather.ErrConfig, opts.Provider)
	}

	return NewWeatherClient(geocoder, conditions), nil
}
