package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"
	_ "time/tzdata" // WEATHER_TIMEZONE must resolve on minimal images

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080" validate:"required"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json" validate:"oneof=json text"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`

	// OpenWeather provider configuration. An empty key switches the engine
	// to the calendar heuristic.
	OpenWeatherAPIKey  string `envconfig:"OPENWEATHER_API_KEY"`
	OpenWeatherBaseURL string `envconfig:"OPENWEATHER_BASE_URL" default:"https://api.openweathermap.org/data/2.5/weather" validate:"required,url"`

	// Advisory engine configuration.
	City         string        `envconfig:"WEATHER_CITY" default:"Gampaha" validate:"required"`
	TimezoneName string        `envconfig:"WEATHER_TIMEZONE" default:"Asia/Colombo" validate:"required"`
	FetchTimeout time.Duration `envconfig:"WEATHER_FETCH_TIMEOUT" default:"5s" validate:"gt=0"`
	CacheTTL     time.Duration `envconfig:"WEATHER_CACHE_TTL" default:"30m" validate:"gt=0"`
	// Background refresh interval; zero leaves refreshing to incoming requests.
	PrefetchInterval time.Duration  `envconfig:"WEATHER_PREFETCH_INTERVAL" default:"0s" validate:"gte=0"`
	Location         *time.Location `ignored:"true"`
}

// FallbackMode reports whether no provider key is configured.
func (c *Config) FallbackMode() bool {
	return c.OpenWeatherAPIKey == ""
}

// Load reads configuration from environment variables, applying defaults where unset.
// A .env file in the working directory is loaded first if present; it never
// overrides variables already set in the environment. A missing .env is fine;
// an unreadable or malformed one is an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	loc, err := time.LoadLocation(cfg.TimezoneName)
	if err != nil {
		return nil, fmt.Errorf("invalid WEATHER_TIMEZONE %q: %w", cfg.TimezoneName, err)
	}
	cfg.Location = loc

	return &cfg, nil
}
