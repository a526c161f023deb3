package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// DefaultOpenMeteoURL is the Open-Meteo forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

// OpenMeteoCurrent reads the current temperature from Open-Meteo. It needs no
// API key; the key argument is ignored.
type OpenMeteoCurrent struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *breakerSet
}

func NewOpenMeteoCurrent(cfg HTTPClientConfig, baseURL string) *OpenMeteoCurrent {
	if baseURL == "" {
		baseURL = DefaultOpenMeteoURL
	}
	return &OpenMeteoCurrent{
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreakerSet("openmeteo"),
	}
}

func (p *OpenMeteoCurrent) Name() string {
	return ProviderOpenMeteo
}

func (p *OpenMeteoCurrent) TemperatureAt(ctx context.Context, c weather.Coordinates, _ string) (float64, error) {
	const op = "current weather"

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", strconv.FormatFloat(c.Lat, 'f', -1, 64))
		values.Set("longitude", strconv.FormatFloat(c.Lon, 'f', -1, 64))
		values.Set("current_weather", "true")

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, op, p.httpCfg, p.circuit.get(c.String()), buildRequest)
	if err != nil {
		return 0, err
	}

	var payload struct {
		CurrentWeather *struct {
			Temperature float64 `json:"temperature"`
		} `json:"current_weather"`
	}
	if err := decodeJSON(op, resp, &payload); err != nil {
		return 0, err
	}
	if payload.CurrentWeather == nil {
		return 0, &weather.TransportError{Op: op, Err: fmt.Errorf("response has no current_weather")}
	}
	return payload.CurrentWeather.Temperature, nil
}
