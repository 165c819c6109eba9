// Package config holds two distinct things under one roof, the way the
// teacher's own internal/config does: the process Bootstrap (env-driven,
// read once at startup) and the Config Service (spec §4.2, DB-backed,
// re-read every poll cycle).
package config

import (
	"fmt"

	"github.com/Ragavinnay/CLI-based-background-job-queue-system/internal/env"
)

// Bootstrap holds what queuectl needs before it can even open the
// database: where the database lives and how loudly to log. Everything
// downstream of opening the Store is the Config Service's job, not this
// struct's.
type Bootstrap struct {
	DBPath   string `env:"QUEUECTL_DB" default:"./queuectl.db"`
	LogLevel string `env:"QUEUECTL_LOG_LEVEL" default:"info"` // debug, info, warn, error
}

// Load parses environment variables into a Bootstrap.
func Load() (*Bootstrap, error) {
	cfg := &Bootstrap{}
	if err := env.Load(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Bootstrap) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown QUEUECTL_LOG_LEVEL: %s", c.LogLevel)
	}
	if c.DBPath == "" {
		return fmt.Errorf("QUEUECTL_DB must not be empty")
	}
	return nil
}
