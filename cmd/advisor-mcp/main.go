// Command advisor-mcp serves the tree-care advisory as an MCP tool over stdio.
//
// Configuration is the same environment as the HTTP service; HTTP_ADDR is
// ignored. Logs go to stderr.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/couchcryptid/tree-care-advisory/internal/adapter/mcp"
	"github.com/couchcryptid/tree-care-advisory/internal/adapter/openweather"
	"github.com/couchcryptid/tree-care-advisory/internal/advisory"
	"github.com/couchcryptid/tree-care-advisory/internal/config"
	"github.com/couchcryptid/tree-care-advisory/internal/domain"
	"github.com/couchcryptid/tree-care-advisory/internal/observability"
	json "github.com/goccy/go-json"
	"github.com/jonboulle/clockwork"
	"github.com/miyamo2/qilin"
)

const version = "0.1.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	// Nothing scrapes an stdio process, so the collectors stay off the default registry.
	metrics := observability.NewUnregisteredMetrics()

	var provider domain.WeatherProvider
	if !cfg.FallbackMode() {
		provider = openweather.NewClient(cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL, cfg.FetchTimeout, metrics, logger)
	}
	engine := advisory.NewEngine(provider, advisory.Settings{
		City:         cfg.City,
		Location:     cfg.Location,
		TTL:          cfg.CacheTTL,
		FetchTimeout: cfg.FetchTimeout,
	}, clockwork.NewRealClock(), logger, metrics)

	q := qilin.New("tree-care-advisor",
		qilin.WithVersion(version),
		qilin.WithJSONMarshalFunc(json.Marshal),
		qilin.WithJSONUnmarshalFunc(json.Unmarshal),
	)
	mcpadapter.Register(q, engine, cfg.City, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("mcp server starting", "city", cfg.City, "fallback", engine.FallbackMode())
	if err := q.Start(qilin.StartWithContext(ctx)); err != nil {
		logger.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
