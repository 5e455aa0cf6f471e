package engine

import (
	"time"

	"github.com/kilianp07/batsim/core/logger"
)

// DefaultHardwareTimeout bounds every call into the hardware adapter.
const DefaultHardwareTimeout = 500 * time.Millisecond

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithHardwareTimeout bounds MeasureCurrent, SetLoad and SetOutputVoltage.
func WithHardwareTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.hwTimeout = d
		}
	}
}

// WithDriveOutput makes every step command the terminal voltage back to the
// hardware adapter.
func WithDriveOutput(enabled bool) Option {
	return func(e *Engine) { e.driveOutput = enabled }
}

// WithClock overrides the wall clock used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSessionID tags records with id instead of a random UUID.
func WithSessionID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.session = id
		}
	}
}

// WithObserverBuffer sets the per-observer channel capacity.
func WithObserverBuffer(n int) Option {
	return func(e *Engine) { e.observerBuffer = n }
}
