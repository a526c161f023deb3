package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/i474232898/weather-anomaly/internal/metrics"
	"github.com/i474232898/weather-anomaly/internal/weather"
)

// maxErrorBody bounds how much of an error payload is read.
const maxErrorBody = 64 << 10

// BackoffConfig controls exponential backoff behaviour. MaxRetries of zero
// means every request is attempted exactly once.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings shared by all
// requests to one provider.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig

	// Limiter, when set, paces outbound requests to the provider quota.
	Limiter *rate.Limiter
}

// DefaultHTTPConfig returns a config without retries or rate limiting.
func DefaultHTTPConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
		},
	}
}

// NewLimiter builds a limiter allowing rps requests per second with the
// given burst. It returns nil when rps <= 0, which disables limiting.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

var (
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// maxBreakers bounds the number of per-city breakers kept by a breakerSet.
const maxBreakers = 1024

// newBreaker builds a circuit breaker that only counts failures of the
// provider itself: network errors, 429 and 5xx responses. Client errors such
// as an unknown city never trip it.
func newBreaker(endpoint string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        endpoint,
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !retryable(err)
		},
		OnStateChange: func(_ string, _, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.RecordBreakerTrip(endpoint)
			}
		},
	})
}

// breakerSet keeps one circuit breaker per request key (a city or a
// coordinate pair) of an endpoint. Failures for one key never open the
// breaker of another.
type breakerSet struct {
	endpoint string

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

func newBreakerSet(endpoint string) *breakerSet {
	return &breakerSet{
		endpoint: endpoint,
		breakers: make(map[string]*gobreaker.CircuitBreaker),
	}
}

// get returns the breaker for key, creating it on first use. The set is
// cleared once it holds maxBreakers entries.
func (b *breakerSet) get(key string) *gobreaker.CircuitBreaker {
	key = strings.ToLower(strings.TrimSpace(key))

	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[key]; ok {
		return cb
	}
	if len(b.breakers) >= maxBreakers {
		clear(b.breakers)
	}
	cb := newBreaker(b.endpoint)
	b.breakers[key] = cb
	return cb
}

// doRequestWithResilience executes the request built by buildRequest and
// returns the response of a 2xx answer; the caller closes its body. Any other
// outcome is a *weather.TransportError. Retryable failures are retried with
// exponential backoff up to cfg.Backoff.MaxRetries times.
func doRequestWithResilience(
	ctx context.Context,
	op string,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, &weather.TransportError{Op: op, Err: errNoHTTPClient}
	}
	if cfg.Backoff.MaxRetries < 0 || (cfg.Backoff.MaxRetries > 0 && cfg.Backoff.InitialInterval <= 0) {
		return nil, &weather.TransportError{Op: op, Err: errInvalidConfig}
	}

	var attempt int
	for {
		if ctx.Err() != nil {
			return nil, &weather.TransportError{Op: op, Err: ctx.Err()}
		}

		if cfg.Limiter != nil {
			if err := cfg.Limiter.Wait(ctx); err != nil {
				return nil, &weather.TransportError{Op: op, Err: fmt.Errorf("rate limit wait canceled: %w", err)}
			}
		}

		req, err := buildRequest()
		if err != nil {
			return nil, &weather.TransportError{Op: op, Err: err}
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, &weather.TransportError{Op: op, Err: stripURL(execErr)}
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return nil, statusError(op, resp)
			}
			return resp, nil
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, &weather.TransportError{Op: op, Err: fmt.Errorf("unexpected result type from circuit breaker")}
			}
			metrics.RecordProviderRequest(op, "ok")
			return resp, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.RecordProviderRequest(op, "circuit_open")
			return nil, &weather.TransportError{Op: op, Err: fmt.Errorf("%w: %v", errCircuitOpen, err)}
		}
		metrics.RecordProviderRequest(op, "error")

		if !retryable(err) || attempt >= cfg.Backoff.MaxRetries {
			return nil, err
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &weather.TransportError{Op: op, Err: ctx.Err()}
		case <-timer.C:
		}

		attempt++
	}
}

// retryable reports whether err is a failure of the provider rather than of
// the request: network errors, rate limiting and server errors.
func retryable(err error) bool {
	var te *weather.TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.StatusCode == 0 {
		return !errors.Is(te.Err, context.Canceled) && !errors.Is(te.Err, context.DeadlineExceeded)
	}
	return te.StatusCode == http.StatusTooManyRequests || te.StatusCode >= 500
}

// statusError drains a non-success response into a TransportError carrying
// the provider's message, if any.
func statusError(op string, resp *http.Response) error {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	msg := ""
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case payload.Message != "":
			msg = payload.Message
		case payload.Reason != "":
			msg = payload.Reason
		default:
			msg = payload.Error.Message
		}
	}
	return &weather.TransportError{Op: op, StatusCode: resp.StatusCode, Message: msg}
}

// stripURL drops the request URL from client errors: it carries the API key.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

// decodeJSON decodes and closes a successful response body.
func decodeJSON(op string, resp *http.Response, v any) error {
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &weather.TransportError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
