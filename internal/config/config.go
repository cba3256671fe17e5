// Package config is the ambient environment-driven configuration layer
// (SPEC_FULL.md AMBIENT STACK), grounded directly on the teacher's own
// envconfig-based Config — same library, same Load() shape, fields
// renamed to the worker-pool domain.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the process-wide environment configuration for the admin
// server and the pool's external dependencies. Pool-instance options
// (concurrency, queue strategy, retry policy, ...) live in Options
// (options.go) since those are constructed per-pool, not per-process.
type Config struct {
	// Admin HTTP surface (cmd/admin)
	Port         string        `envconfig:"PORT" default:"8080"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `envconfig:"IDLE_TIMEOUT" default:"120s"`

	// Audit log (internal/audit)
	PostgresURL       string `envconfig:"POSTGRES_URL"`
	AuditMigrationsDir string `envconfig:"AUDIT_MIGRATIONS_DIR" default:"internal/audit/migrations"`

	// Metrics + admission-side rate limiting (internal/metricscore, internal/ratelimit)
	RedisURL string `envconfig:"REDIS_URL"`

	// Distributed channel fallback (internal/channel)
	NATSURL string `envconfig:"NATS_URL"`

	// Pool sizing values; nothing in this module reads them (cmd/admin and
	// cmd/demo size their pools through gopool.Options)
	PoolSize  int `envconfig:"POOL_SIZE" default:"0"`
	QueueSize int `envconfig:"QUEUE_SIZE" default:"10000"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
