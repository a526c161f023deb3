package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// DefaultGeocodeURL is the OpenWeatherMap direct geocoding endpoint.
const DefaultGeocodeURL = "https://api.openweathermap.org/geo/1.0/direct"

// OpenWeatherGeocoder resolves city names with the OpenWeatherMap geocoding
// API. It never retries on its own unless the HTTP config asks for it.
type OpenWeatherGeocoder struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *breakerSet
}

// NewOpenWeatherGeocoder creates a geocoder. An empty baseURL selects
// DefaultGeocodeURL.
func NewOpenWeatherGeocoder(cfg HTTPClientConfig, baseURL string) *OpenWeatherGeocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodeURL
	}
	return &OpenWeatherGeocoder{
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreakerSet("openweather-geocode"),
	}
}

// Resolve returns the coordinates of the first match for city. An empty
// result set fails with weather.ErrNotFound.
func (g *OpenWeatherGeocoder) Resolve(ctx context.Context, city, apiKey string) (weather.Coordinates, error) {
	const op = "geocode"

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("q", city)
		values.Set("appid", apiKey)

		u := fmt.Sprintf("%s?%s", g.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, op, g.httpCfg, g.circuit.get(city), buildRequest)
	if err != nil {
		return weather.Coordinates{}, err
	}

	var payload []struct {
		Name string  `json:"name"`
		Lat  float64 `json:"lat"`
		Lon  float64 `json:"lon"`
	}
	if err := decodeJSON(op, resp, &payload); err != nil {
		return weather.Coordinates{}, err
	}

	if len(payload) == 0 {
		return weather.Coordinates{}, fmt.Errorf("%w: %s", weather.ErrNotFound, city)
	}
	return weather.Coordinates{Lat: payload[0].Lat, Lon: payload[0].Lon}, nil
}

// ResolveAsync runs Resolve on its own goroutine.
func (g *OpenWeatherGeocoder) ResolveAsync(ctx context.Context, city, apiKey string) <-chan weather.Result[weather.Coordinates] {
	return weather.Async(func() (weather.Coordinates, error) {
		return g.Resolve(ctx, city, apiKey)
	})
}
