package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	// AppURL is the public origin allowed to open state streams.
	AppURL string `env:"APP_URL" default:"http://localhost:8080"`

	// Empty DatabaseURL selects the in-memory document store.
	DatabaseURL string `env:"DATABASE_URL"`
	// Empty RedisURL disables cross-process cache invalidation.
	RedisURL string `env:"REDIS_URL"`
	// Empty EngineDBPath keeps simulated persisted anchors in memory.
	EngineDBPath string `env:"ENGINE_DB_PATH"`

	TrackingPollInterval time.Duration `env:"TRACKING_POLL_INTERVAL" default:"500ms"`
	PlacementDistance    float64       `env:"PLACEMENT_DISTANCE" default:"1.0"`
	RemoteTimeout        time.Duration `env:"REMOTE_TIMEOUT" default:"10s"`

	BreakerFailureThreshold int           `env:"BREAKER_FAILURE_THRESHOLD" default:"5"`
	BreakerOpenTimeout      time.Duration `env:"BREAKER_OPEN_TIMEOUT" default:"30s"`

	APIRateLimit float64 `env:"API_RATE_LIMIT" default:"20"`
	APIRateBurst int     `env:"API_RATE_BURST" default:"40"`
	MaxScreens   int     `env:"MAX_SCREENS" default:"64"`

	// AnchorCreator is written as created_by on anchor records saved by this server.
	AnchorCreator string `env:"ANCHOR_CREATOR" default:"anonymous"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	positive := map[string]time.Duration{
		"TRACKING_POLL_INTERVAL": cfg.TrackingPollInterval,
		"REMOTE_TIMEOUT":         cfg.RemoteTimeout,
		"BREAKER_OPEN_TIMEOUT":   cfg.BreakerOpenTimeout,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	if cfg.PlacementDistance <= 0 {
		return errors.New("PLACEMENT_DISTANCE must be positive")
	}
	if cfg.BreakerFailureThreshold < 1 {
		return errors.New("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	if cfg.APIRateLimit <= 0 || cfg.APIRateBurst < 1 {
		return errors.New("API_RATE_LIMIT and API_RATE_BURST must be positive")
	}
	if cfg.MaxScreens < 1 {
		return errors.New("MAX_SCREENS must be at least 1")
	}

	return nil
}
