// Package advisory turns current weather into at most one tree-care advisory.
//
// The Engine owns a single cached snapshot with a TTL. Expired snapshots are
// refetched once per expiry window no matter how many callers are waiting,
// and every failure degrades to "no advisory" instead of an error.
package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/couchcryptid/tree-care-advisory/internal/observability"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL          = 30 * time.Minute
	DefaultFetchTimeout = 5 * time.Second
)

// Settings configures an Engine.
type Settings struct {
	City         string
	Location     *time.Location
	TTL          time.Duration
	FetchTimeout time.Duration
}

// ReadinessChecker is implemented by providers that can report their own health.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Engine evaluates advisories for one fixed city.
type Engine struct {
	provider domain.WeatherProvider
	settings Settings
	rules    []domain.Rule
	cache    *snapshotCache
	clock    clockwork.Clock
	group    singleflight.Group
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewEngine creates an Engine. A nil provider puts the engine in fallback
// mode: advisories come from the calendar heuristic and no fetch is ever made.
func NewEngine(provider domain.WeatherProvider, settings Settings, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	if settings.TTL <= 0 {
		settings.TTL = DefaultTTL
	}
	if settings.FetchTimeout <= 0 {
		settings.FetchTimeout = DefaultFetchTimeout
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	if provider == nil {
		metrics.FallbackMode.Set(1)
	} else {
		metrics.FallbackMode.Set(0)
	}

	return &Engine{
		provider: provider,
		settings: settings,
		rules:    domain.Rules(),
		cache:    newSnapshotCache(settings.TTL, clock),
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// FallbackMode reports whether the engine runs without a weather provider.
func (e *Engine) FallbackMode() bool {
	return e.provider == nil
}

// CacheState reports the current state of the snapshot slot.
func (e *Engine) CacheState() CacheState {
	return e.cache.state()
}

// CheckReadiness delegates to the provider when it can report health.
// Fallback mode is always ready.
func (e *Engine) CheckReadiness(ctx context.Context) error {
	if rc, ok := e.provider.(ReadinessChecker); ok {
		return rc.CheckReadiness(ctx)
	}
	return nil
}

// GetAlert returns the current advisory, or nil when there is none or when
// conditions could not be determined. It never fails.
func (e *Engine) GetAlert(ctx context.Context) *domain.WeatherAlert {
	now := e.clock.Now().In(e.settings.Location)

	if e.provider == nil {
		return e.record(domain.Fallback(now, e.settings.City), "fallback")
	}

	snap, ok := e.cache.get()
	if ok {
		e.metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		e.metrics.CacheLookups.WithLabelValues("miss").Inc()

		var err error
		snap, err = e.refresh(ctx)
		if err != nil {
			e.metrics.Evaluations.WithLabelValues("failed").Inc()
			return nil
		}
	}

	alert, rule := domain.EvaluateRules(e.rules, snap, now, e.settings.City)
	if alert != nil {
		e.logger.Debug("advisory rule matched", "rule", rule, "type", alert.Type, "urgency", alert.Urgency)
	}
	return e.record(alert, "rules")
}

// Warm makes sure a fresh snapshot is cached without evaluating rules. It is
// a no-op in fallback mode.
func (e *Engine) Warm(ctx context.Context) error {
	if e.provider == nil {
		return nil
	}
	if _, ok := e.cache.get(); ok {
		return nil
	}
	_, err := e.refresh(ctx)
	return err
}

// refresh fetches a new snapshot, coalescing concurrent callers into a single
// provider call. The shared fetch is detached from any one caller's
// cancellation and bounded by the fetch timeout.
func (e *Engine) refresh(ctx context.Context) (domain.WeatherSnapshot, error) {
	ch := e.group.DoChan("snapshot", func() (any, error) {
		// A caller that just finished a fetch may have refilled the slot.
		if snap, ok := e.cache.get(); ok {
			return snap, nil
		}

		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.settings.FetchTimeout)
		defer cancel()

		snap, err := e.provider.Current(fetchCtx, e.settings.City)
		if err != nil {
			e.cache.clear()
			e.logger.Error("weather fetch failed", "city", e.settings.City, "error", err)
			return nil, err
		}

		e.cache.put(snap)
		e.logger.Debug("weather snapshot refreshed",
			"city", e.settings.City,
			"temp_c", snap.TempC,
			"humidity", snap.Humidity,
			"category", snap.Category,
		)
		return snap, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.WeatherSnapshot{}, res.Err
		}
		return res.Val.(domain.WeatherSnapshot), nil
	case <-ctx.Done():
		e.logger.Warn("caller gave up waiting for weather fetch", "error", ctx.Err())
		return domain.WeatherSnapshot{}, fmt.Errorf("wait for weather fetch: %w", ctx.Err())
	}
}

func (e *Engine) record(alert *domain.WeatherAlert, source string) *domain.WeatherAlert {
	if alert == nil {
		e.metrics.Evaluations.WithLabelValues("none").Inc()
		return nil
	}
	e.metrics.Evaluations.WithLabelValues("alert").Inc()
	e.metrics.AlertsProduced.WithLabelValues(string(alert.Type), string(alert.Urgency), source).Inc()
	return alert
}
