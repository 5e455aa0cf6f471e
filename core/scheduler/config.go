package scheduler

import (
	"errors"
	"time"
)

// DefaultIntervalMS is the tick period used when none is configured.
const DefaultIntervalMS = 1000

// Config controls tick delivery.
type Config struct {
	IntervalMS int `json:"interval_ms" yaml:"interval_ms"`
	// FixedStep reports the nominal interval as elapsed time instead of the
	// measured gap between ticks.
	FixedStep bool `json:"fixed_step" yaml:"fixed_step"`
	AutoStart bool `json:"auto_start" yaml:"auto_start"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.IntervalMS == 0 {
		c.IntervalMS = DefaultIntervalMS
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IntervalMS <= 0 {
		return errors.New("scheduler.interval_ms must be positive")
	}
	return nil
}

// Interval returns the tick period, falling back to the default.
func (c Config) Interval() time.Duration {
	if c.IntervalMS <= 0 {
		return DefaultIntervalMS * time.Millisecond
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}
