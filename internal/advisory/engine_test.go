package advisory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/tree-care-advisory/internal/adapter/openweather"
	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/couchcryptid/tree-care-advisory/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCity = "Gampaha"

var colombo = time.FixedZone("+0530", 5*3600+1800)

// --- mock provider ---

type mockProvider struct {
	mu    sync.Mutex
	snap  domain.WeatherSnapshot
	err   error
	calls atomic.Int32

	// block, when set, holds every call until closed.
	block   chan struct{}
	started chan struct{}
}

func (m *mockProvider) Current(ctx context.Context, city string) (domain.WeatherSnapshot, error) {
	m.calls.Add(1)
	if m.started != nil {
		select {
		case m.started <- struct{}{}:
		default:
		}
	}
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return domain.WeatherSnapshot{}, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap, m.err
}

func (m *mockProvider) set(snap domain.WeatherSnapshot, err error) {
	m.mu.Lock()
	m.snap, m.err = snap, err
	m.mu.Unlock()
}

type readyProvider struct {
	mockProvider
	readyErr error
}

func (r *readyProvider) CheckReadiness(_ context.Context) error { return r.readyErr }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(p domain.WeatherProvider, clock clockwork.Clock) *Engine {
	return NewEngine(p, Settings{City: testCity, Location: colombo}, clock, discardLogger(), observability.NewMetricsForTesting())
}

// localTime builds a Colombo wall-clock instant.
func localTime(month time.Month, hour int) time.Time {
	return time.Date(2025, month, 14, hour, 0, 0, 0, colombo)
}

var overcast = domain.WeatherSnapshot{TempC: 27, Humidity: 78, Category: "Clouds", Description: "overcast clouds"}

// --- fallback mode ---

func TestEngine_Fallback_DrySeason(t *testing.T) {
	e := newTestEngine(nil, clockwork.NewFakeClockAt(localTime(time.February, 15)))

	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertWatering, alert.Type)
	assert.Equal(t, domain.UrgencyHigh, alert.Urgency)
	assert.True(t, e.FallbackMode())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.FallbackMode))
	assert.Equal(t, CacheEmpty, e.CacheState(), "fallback mode never touches the cache")
}

func TestEngine_Fallback_WetSeasonMorning(t *testing.T) {
	e := newTestEngine(nil, clockwork.NewFakeClockAt(localTime(time.October, 8)))

	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertMaintenance, alert.Type)
	assert.Equal(t, domain.UrgencyLow, alert.Urgency)
}

func TestEngine_Fallback_WetSeasonAfternoon(t *testing.T) {
	e := newTestEngine(nil, clockwork.NewFakeClockAt(localTime(time.October, 14)))

	assert.Nil(t, e.GetAlert(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Evaluations.WithLabelValues("none")))
}

func TestEngine_Fallback_IsReady(t *testing.T) {
	e := newTestEngine(nil, clockwork.NewFakeClock())
	assert.NoError(t, e.CheckReadiness(context.Background()))
}

// --- rule evaluation through the engine ---

func TestEngine_EvaluatesFetchedSnapshot(t *testing.T) {
	p := &mockProvider{snap: domain.WeatherSnapshot{TempC: 35, Humidity: 40, Category: "Clear", Description: "clear sky"}}
	e := newTestEngine(p, clockwork.NewFakeClockAt(localTime(time.October, 14)))

	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertWatering, alert.Type)
	assert.Contains(t, alert.Message, "35")
	assert.Equal(t, CacheFresh, e.CacheState())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.AlertsProduced.WithLabelValues("watering", "high", "rules")))
}

func TestEngine_UsesConfiguredTimezone(t *testing.T) {
	// 01:00 UTC is 06:30 in Colombo.
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.October, 14, 1, 0, 0, 0, time.UTC))
	e := newTestEngine(&mockProvider{snap: overcast}, clock)

	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertMaintenance, alert.Type)
}

func TestEngine_NoRuleMatches(t *testing.T) {
	e := newTestEngine(&mockProvider{snap: overcast}, clockwork.NewFakeClockAt(localTime(time.October, 14)))

	assert.Nil(t, e.GetAlert(context.Background()))
}

// --- cache behaviour ---

func TestEngine_CacheHitWithinTTL(t *testing.T) {
	p := &mockProvider{snap: overcast}
	clock := clockwork.NewFakeClockAt(localTime(time.October, 7))
	e := newTestEngine(p, clock)

	e.GetAlert(context.Background())
	clock.Advance(29*time.Minute + 59*time.Second)
	e.GetAlert(context.Background())

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.CacheLookups.WithLabelValues("miss")))
}

func TestEngine_RefetchAfterTTL(t *testing.T) {
	p := &mockProvider{snap: overcast}
	clock := clockwork.NewFakeClockAt(localTime(time.October, 7))
	e := newTestEngine(p, clock)

	e.GetAlert(context.Background())
	clock.Advance(30 * time.Minute)
	assert.Equal(t, CacheStale, e.CacheState())

	p.set(domain.WeatherSnapshot{Category: "Thunderstorm", Description: "thunderstorm", Humidity: 90}, nil)
	alert := e.GetAlert(context.Background())

	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertStorm, alert.Type, "fresh data is evaluated")
	assert.Equal(t, int32(2), p.calls.Load())

	e.GetAlert(context.Background())
	assert.Equal(t, int32(2), p.calls.Load(), "refreshed slot is reused")
}

func TestEngine_RefetchFailureDiscardsStaleSnapshot(t *testing.T) {
	p := &mockProvider{snap: domain.WeatherSnapshot{Category: "Rain", Description: "light rain", Humidity: 90}}
	clock := clockwork.NewFakeClockAt(localTime(time.October, 14))
	e := newTestEngine(p, clock)

	require.NotNil(t, e.GetAlert(context.Background()))

	clock.Advance(31 * time.Minute)
	p.set(domain.WeatherSnapshot{}, errors.New("openweather API error: status 503"))

	assert.Nil(t, e.GetAlert(context.Background()), "stale data is never evaluated")
	assert.Equal(t, CacheEmpty, e.CacheState())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Evaluations.WithLabelValues("failed")))

	p.set(domain.WeatherSnapshot{Category: "Rain", Description: "light rain", Humidity: 90}, nil)
	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertMaintenance, alert.Type)
	assert.Equal(t, int32(3), p.calls.Load())
}

func TestEngine_InitialFetchFailure(t *testing.T) {
	p := &mockProvider{err: errors.New("dial tcp: connection refused")}
	e := newTestEngine(p, clockwork.NewFakeClockAt(localTime(time.October, 7)))

	assert.Nil(t, e.GetAlert(context.Background()))
	assert.Equal(t, CacheEmpty, e.CacheState())

	assert.Nil(t, e.GetAlert(context.Background()))
	assert.Equal(t, int32(2), p.calls.Load(), "failures are not cached")
}

// --- real provider over HTTP ---

func openWeatherServer(t *testing.T, status *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		code := int(status.Load())
		w.WriteHeader(code)
		if code != http.StatusOK {
			_, _ = w.Write([]byte(`{"cod":503,"message":"service unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"main":{"temp":26,"humidity":88},"weather":[{"main":"Rain","description":"heavy intensity rain","icon":"10d"}],"wind":{"speed":4.1}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newOpenWeatherEngine(srv *httptest.Server, clock clockwork.Clock) *Engine {
	metrics := observability.NewMetricsForTesting()
	client := openweather.NewClient("ow-test-key", srv.URL, time.Second, metrics, discardLogger())
	return NewEngine(client, Settings{City: testCity, Location: colombo}, clock, discardLogger(), metrics)
}

func TestEngine_OpenWeather_UpstreamUnavailable(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusServiceUnavailable)
	e := newOpenWeatherEngine(openWeatherServer(t, &status), clockwork.NewFakeClockAt(localTime(time.October, 7)))

	var alert *domain.WeatherAlert
	require.NotPanics(t, func() { alert = e.GetAlert(context.Background()) })
	assert.Nil(t, alert, "a 503 is not turned into the morning advisory")
	assert.Equal(t, CacheEmpty, e.CacheState())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.Evaluations.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.FetchRequests.WithLabelValues("upstream_error")))
	assert.NoError(t, e.CheckReadiness(context.Background()), "one failure does not open the breaker")
}

func TestEngine_OpenWeather_OutageAfterExpiry(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	clock := clockwork.NewFakeClockAt(localTime(time.October, 14))
	e := newOpenWeatherEngine(openWeatherServer(t, &status), clock)

	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertFlood, alert.Type)
	assert.Equal(t, CacheFresh, e.CacheState())

	clock.Advance(31 * time.Minute)
	status.Store(http.StatusServiceUnavailable)

	assert.Nil(t, e.GetAlert(context.Background()))
	assert.Equal(t, CacheEmpty, e.CacheState())

	status.Store(http.StatusOK)
	alert = e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, domain.AlertFlood, alert.Type)
}

// --- concurrency ---

func TestEngine_ConcurrentCallersShareOneFetch(t *testing.T) {
	p := &mockProvider{
		snap:    domain.WeatherSnapshot{Category: "Thunderstorm", Description: "thunderstorm", Humidity: 90},
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	e := newTestEngine(p, clockwork.NewFakeClockAt(localTime(time.October, 14)))

	const callers = 16
	results := make([]*domain.WeatherAlert, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.GetAlert(context.Background())
		}()
	}

	<-p.started
	close(p.block)
	wg.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	for i, r := range results {
		require.NotNil(t, r, "caller %d", i)
		assert.Equal(t, domain.AlertStorm, r.Type)
	}
}

func TestEngine_FetchTimeout(t *testing.T) {
	p := &mockProvider{snap: overcast, block: make(chan struct{})}
	e := NewEngine(p, Settings{City: testCity, Location: colombo, FetchTimeout: 20 * time.Millisecond},
		clockwork.NewFakeClockAt(localTime(time.October, 7)), discardLogger(), observability.NewMetricsForTesting())

	start := time.Now()
	assert.Nil(t, e.GetAlert(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, CacheEmpty, e.CacheState())
}

func TestEngine_CallerCancellationDoesNotAbortSharedFetch(t *testing.T) {
	p := &mockProvider{snap: overcast, block: make(chan struct{}), started: make(chan struct{}, 1)}
	e := newTestEngine(p, clockwork.NewFakeClockAt(localTime(time.October, 7)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan *domain.WeatherAlert)
	go func() { done <- e.GetAlert(ctx) }()

	<-p.started
	cancel()
	assert.Nil(t, <-done)

	close(p.block)
	require.Eventually(t, func() bool { return e.CacheState() == CacheFresh }, time.Second, 5*time.Millisecond)

	alert := e.GetAlert(context.Background())
	require.NotNil(t, alert)
	assert.Equal(t, int32(1), p.calls.Load())
}

// --- readiness ---

func TestEngine_CheckReadiness_DelegatesToProvider(t *testing.T) {
	p := &readyProvider{readyErr: errors.New("circuit open")}
	e := newTestEngine(p, clockwork.NewFakeClock())

	require.EqualError(t, e.CheckReadiness(context.Background()), "circuit open")

	p.readyErr = nil
	assert.NoError(t, e.CheckReadiness(context.Background()))
}

func TestEngine_CheckReadiness_PlainProvider(t *testing.T) {
	e := newTestEngine(&mockProvider{}, clockwork.NewFakeClock())
	assert.NoError(t, e.CheckReadiness(context.Background()))
}

func TestNewEngine_Defaults(t *testing.T) {
	e := NewEngine(&mockProvider{}, Settings{City: testCity}, nil, discardLogger(), observability.NewMetricsForTesting())

	assert.Equal(t, DefaultTTL, e.settings.TTL)
	assert.Equal(t, DefaultFetchTimeout, e.settings.FetchTimeout)
	assert.Equal(t, time.Local, e.settings.Location)
	assert.NotNil(t, e.clock)
	assert.False(t, e.FallbackMode())
	assert.Equal(t, 0.0, testutil.ToFloat64(e.metrics.FallbackMode))
}
