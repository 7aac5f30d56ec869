package scheduler

import "time"

// Config controls how often the cache sweep runs and how long one pass
// may take.
type Config struct {
	RunInterval  time.Duration
	SweepTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:  time.Hour,
		SweepTimeout: 30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.SweepTimeout <= 0 {
		c.SweepTimeout = defaults.SweepTimeout
	}
	return c
}
