package capture

import (
	"time"

	"github.com/smallbiznis/escrow/internal/config"
)

// Config controls the capture retry worker loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int

	// UnclaimedGrace is how long a proofSubmitted offer may wait for its
	// first capture claim before the worker takes it.
	UnclaimedGrace time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:      25,
		PollInterval:   30 * time.Second,
		MaxAttempts:    5,
		UnclaimedGrace: 2 * time.Minute,
	}
}

func NewConfig(cfg config.Config) Config {
	return Config{
		BatchSize:      cfg.CaptureRetry.BatchSize,
		PollInterval:   cfg.CaptureRetry.PollInterval,
		MaxAttempts:    cfg.CaptureRetry.MaxAttempts,
		UnclaimedGrace: cfg.CaptureRetry.UnclaimedGrace,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaults.MaxAttempts
	}
	if c.UnclaimedGrace <= 0 {
		c.UnclaimedGrace = defaults.UnclaimedGrace
	}
	return c
}
