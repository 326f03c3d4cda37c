// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all service settings.
type Config struct {
	AppEnv      string `env:"APP_ENV" envDefault:"local"`
	PostgresDSN string `env:"POSTGRES_DSN,required"`

	// VKGroupID is the positive group number; the wall owner ID is its
	// negation.
	VKGroupID int64 `env:"VK_GROUP_ID" envDefault:"225463959"`

	SyncInterval  time.Duration `env:"SYNC_INTERVAL" envDefault:"1h"`
	SyncBatchSize int           `env:"SYNC_BATCH_SIZE" envDefault:"20"`

	BackfillPageSize  int           `env:"BACKFILL_PAGE_SIZE" envDefault:"100"`
	BackfillPageDelay time.Duration `env:"BACKFILL_PAGE_DELAY" envDefault:"1s"`

	ExcerptMaxLen int `env:"EXCERPT_MAX_LEN" envDefault:"200"`

	FetchTimeout time.Duration `env:"FETCH_TIMEOUT" envDefault:"30s"`
	FetchRPS     float64       `env:"FETCH_RPS" envDefault:"2"`

	HealthPort int `env:"HEALTH_PORT" envDefault:"8080"`
}

// OwnerID returns the negative wall owner ID used by the listing API and
// permalinks.
func (c *Config) OwnerID() int64 {
	return -c.VKGroupID
}

// Load reads configuration from the environment, honoring an optional
// .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	return cfg, nil
}
