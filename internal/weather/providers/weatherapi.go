package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/i474232898/weather-anomaly/internal/weather"
)

// DefaultWeatherAPIURL is the WeatherAPI.com current conditions endpoint.
const DefaultWeatherAPIURL = "https://api.weatherapi.com/v1/current.json"

// WeatherAPICurrent reads the current temperature from WeatherAPI.com. It
// authenticates with its own key; the OpenWeatherMap key passed to
// TemperatureAt is only used for geocoding and is ignored here.
type WeatherAPICurrent struct {
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *breakerSet
}

func NewWeatherAPICurrent(cfg HTTPClientConfig, baseURL, apiKey string) *WeatherAPICurrent {
	if baseURL == "" {
		baseURL = DefaultWeatherAPIURL
	}
	return &WeatherAPICurrent{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreakerSet("weatherapi"),
	}
}

func (p *WeatherAPICurrent) Name() string {
	return ProviderWeatherAPI
}

func (p *WeatherAPICurrent) TemperatureAt(ctx context.Context, c weather.Coordinates, _ string) (float64, error) {
	const op = "current weather"

	if p.apiKey == "" {
		return 0, fmt.Errorf("%w: weatherapi api key is not configured", weather.ErrConfig)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("key", p.apiKey)
		// WeatherAPI uses "q" for location; it accepts "lat,lon".
		values.Set("q", strconv.FormatFloat(c.Lat, 'f', -1, 64)+","+strconv.FormatFloat(c.Lon, 'f', -1, 64))

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequestWithResilience(ctx, op, p.httpCfg, p.circuit.get(c.String()), buildRequest)
	if err != nil {
		return 0, err
	}

	var payload struct {
		Current *struct {
			TempC *float64 `json:"temp_c"`
		} `json:"current"`
	}
	if err := decodeJSON(op, resp, &payload); err != nil {
		return 0, err
	}
	if payload.Current == nil || payload.Current.TempC == nil {
		return 0, &weather.TransportError{Op: op, Err: fmt.Errorf("response has no current.temp_c")}
	}
	return *payload.Current.TempC, nil
}
