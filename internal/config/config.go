package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	BackendURL    string `env:"BACKEND_URL"`
	SyncURL       string `env:"SYNC_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	// DataDir is the root for the local durable stores (offline queue and
	// user-data view). Empty disables offline support entirely.
	DataDir string `env:"DATA_DIR"`

	ScheduleRefresh   time.Duration `env:"SCHEDULE_REFRESH" default:"30m"`
	ReconcileInterval time.Duration `env:"RECONCILE_INTERVAL" default:"5m"`
	SessionMaxAge     time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days

	MutationRatePerMinute int `env:"MUTATION_RATE_PER_MINUTE" default:"60"`
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
	required := map[string]string{
		"BACKEND_URL":    cfg.BackendURL,
		"SESSION_SECRET": cfg.SessionSecret,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if _, err := url.Parse(cfg.BackendURL); err != nil {
		return fmt.Errorf("BACKEND_URL is not a valid URL: %w", err)
	}
	if cfg.SyncURL != "" {
		u, err := url.Parse(cfg.SyncURL)
		if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			return fmt.Errorf("SYNC_URL must be a ws:// or wss:// URL")
		}
	}
	if len(cfg.SessionSecret) < 16 {
		return fmt.Errorf("SESSION_SECRET must be at least 16 characters")
	}
	if cfg.MutationRatePerMinute <= 0 {
		return fmt.Errorf("MUTATION_RATE_PER_MINUTE must be positive")
	}

	return nil
}
