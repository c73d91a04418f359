package openweather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/couchcryptid/tree-care-advisory/internal/observability"
	json "github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"
)

// DefaultBaseURL is the OpenWeather current-weather endpoint.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

// ErrMalformedPayload is returned when a 200 response lacks the fields the
// rules depend on.
var ErrMalformedPayload = errors.New("malformed weather payload")

// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
var ErrCircuitOpen = errors.New("weather provider circuit open")

// Client implements domain.WeatherProvider using the OpenWeather API.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker[domain.WeatherSnapshot]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an OpenWeather client. An empty baseURL selects DefaultBaseURL.
func NewClient(apiKey, baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		breaker: newBreaker(logger),
		metrics: metrics,
		logger:  logger,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker[domain.WeatherSnapshot] {
	return gobreaker.NewCircuitBreaker[domain.WeatherSnapshot](gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// Current fetches current conditions for city in metric units.
func (c *Client) Current(ctx context.Context, city string) (domain.WeatherSnapshot, error) {
	snap, err := c.breaker.Execute(func() (domain.WeatherSnapshot, error) {
		return c.doRequest(ctx, city)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.metrics.FetchRequests.WithLabelValues("circuit_open").Inc()
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: %w", ErrCircuitOpen, err)
	}
	return snap, err
}

// CheckReadiness reports an error while the circuit breaker is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, city string) (domain.WeatherSnapshot, error) {
	params := url.Values{
		"q":     {city},
		"appid": {c.apiKey},
		"units": {"metric"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("error").Inc()
		return domain.WeatherSnapshot{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.FetchRequests.WithLabelValues("upstream_error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return domain.WeatherSnapshot{}, fmt.Errorf("openweather API error: status %d: %s", resp.StatusCode, body)
	}

	var owResp response
	if err := json.NewDecoder(resp.Body).Decode(&owResp); err != nil {
		c.metrics.FetchRequests.WithLabelValues("malformed").Inc()
		return domain.WeatherSnapshot{}, fmt.Errorf("decode response: %w", err)
	}

	snap, err := owResp.snapshot()
	if err != nil {
		c.metrics.FetchRequests.WithLabelValues("malformed").Inc()
		return domain.WeatherSnapshot{}, err
	}

	c.metrics.FetchRequests.WithLabelValues("success").Inc()
	return snap, nil
}

// OpenWeather API response types.

type response struct {
	Main    *mainBlock  `json:"main"`
	Weather []condition `json:"weather"`
	Wind    windBlock   `json:"wind"`
}

type mainBlock struct {
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"humidity"`
}

type condition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type windBlock struct {
	Speed float64 `json:"speed"`
}

func (r response) snapshot() (domain.WeatherSnapshot, error) {
	if r.Main == nil || r.Main.Temp == nil || r.Main.Humidity == nil {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: missing main.temp or main.humidity", ErrMalformedPayload)
	}
	if len(r.Weather) == 0 {
		return domain.WeatherSnapshot{}, fmt.Errorf("%w: empty weather array", ErrMalformedPayload)
	}

	w := r.Weather[0]
	return domain.WeatherSnapshot{
		TempC:       *r.Main.Temp,
		Humidity:    *r.Main.Humidity,
		Category:    w.Main,
		Description: w.Description,
		WindSpeed:   r.Wind.Speed,
		Icon:        w.Icon,
	}, nil
}
