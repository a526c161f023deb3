package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current weather endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherCurrent reads the current temperature at coordinates from
// OpenWeatherMap, in metric units.
type OpenWeatherCurrent struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *breakerSet
}

// NewOpenWeatherCurrent creates the source. An empty baseURL selects
// DefaultOpenWeatherURL.
func NewOpenWeatherCurrent(cfg HTTPClientConfig, baseURL string) *OpenWeatherCurrent {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherCurrent{
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreakerSet("openweather-current"),
	}
}

// Name returns the provider name.
func (p *OpenWeatherCurrent) Name() string {
	return ProviderOpenWeather
}

// TemperatureAt returns main.temp for the coordinates.
func (p *OpenWeatherCurrent) TemperatureAt(ctx context.Context, c weather.Coordinates, apiKey string) (float64, error) {
	const op = "current weather"

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("lat", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		values.Set("lon", strconv.FormatFloat(c.Lon, 'f', -1, 64))
		values.Set("appid", apiKey)
		values.Set("units", "metric")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, op, p.httpCfg, p.circuit.get(c.String()), buildRequest)
	if err != nil {
		return 0, err
	}

	var payload struct {
		Main *struct {
			Temp *float64 `json:"temp"`
		} `json:"main"`
	}
	if err := decodeJSON(op, resp, &payload); err != nil {
		return 0, err
	}
	if payload.Main == nil || payload.Main.Temp == nil {
		return 0, &weather.TransportError{Op: op, Err: fmt.Errorf("response has no main.temp")}
	}
	return *payload.Main.Temp, nil
}
