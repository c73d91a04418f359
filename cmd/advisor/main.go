package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/tree-care-advisory/internal/adapter/http"
	"github.com/couchcryptid/tree-care-advisory/internal/adapter/openweather"
	"github.com/couchcryptid/tree-care-advisory/internal/advisory"
	"github.com/couchcryptid/tree-care-advisory/internal/config"
	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/couchcryptid/tree-care-advisory/internal/observability"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()
	clock := clockwork.NewRealClock()

	engine := newEngine(cfg, clock, logger, metrics)
	srv := httpadapter.NewServer(cfg.HTTPAddr, engine, engine, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Keep the snapshot warm if requested.
	if cfg.PrefetchInterval > 0 {
		warmer := advisory.NewWarmer(engine, cfg.PrefetchInterval, clock, logger)
		go func() {
			if err := warmer.Run(ctx); err != nil {
				logger.Error("snapshot warmer error", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// newEngine wires the provider (feature-flagged via OPENWEATHER_API_KEY) into an engine.
func newEngine(cfg *config.Config, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *advisory.Engine {
	var provider domain.WeatherProvider
	if cfg.FallbackMode() {
		logger.Info("no OPENWEATHER_API_KEY set, using calendar heuristic", "city", cfg.City)
	} else {
		provider = openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.FetchTimeout, metrics, logger)
		logger.Info("openweather provider enabled", "city", cfg.City, "cache_ttl", cfg.CacheTTL, "timeout", cfg.FetchTimeout)
	}

	return advisory.NewEngine(provider, advisory.Settings{
		City:         cfg.City,
		Location:     cfg.Location,
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
	}, clock, logger, metrics)
}
