package telemetry

import (
	"fmt"

	"github.com/kilianp07/batsim/core/factory"
)

// DefaultObserverBuffer is the per-subscriber channel size.
const DefaultObserverBuffer = 64

// Config lists the sinks to build and the observer buffer size.
type Config struct {
	Sinks          []factory.ModuleConfig `json:"sinks"`
	ObserverBuffer int                    `json:"observer_buffer"`
}

func (c *Config) SetDefaults() {
	if c.ObserverBuffer == 0 {
		c.ObserverBuffer = DefaultObserverBuffer
	}
}

func (c Config) Validate() error {
	if c.ObserverBuffer < 0 {
		return fmt.Errorf("observer_buffer must not be negative")
	}
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("sink %d: type is required", i)
		}
	}
	return nil
}
