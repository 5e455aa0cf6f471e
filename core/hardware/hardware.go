package hardware

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrHardwareRead wraps failures of MeasureCurrent.
	ErrHardwareRead = errors.New("hardware read error")
	// ErrHardwareWrite wraps failures of SetLoad and SetOutputVoltage.
	ErrHardwareWrite = errors.New("hardware write error")
)

// Adapter is the boundary to the bench: it reports the current drawn by the
// device under test and optionally drives a programmable load or output.
type Adapter interface {
	// MeasureCurrent returns the instantaneous load current in mA.
	// Positive values discharge the emulated battery.
	MeasureCurrent(ctx context.Context) (float64, error)
	// SetLoad configures a programmable sink to draw currentMA.
	SetLoad(ctx context.Context, currentMA float64) error
	// SetOutputVoltage drives the emulated terminal voltage. Adapters
	// without a controllable output treat it as a no-op.
	SetOutputVoltage(ctx context.Context, voltageMV float64) error
}

// DefaultSimulatedLoadMA is the load drawn by a fresh Simulated adapter.
const DefaultSimulatedLoadMA = 100

// Simulated is an in-memory adapter: the measured current is whatever load
// was last configured.
type Simulated struct {
	mu        sync.Mutex
	loadMA    float64
	outputMV  float64
	outputSet bool
}

// NewSimulated returns an adapter drawing loadMA.
func NewSimulated(loadMA float64) *Simulated {
	return &Simulated{loadMA: loadMA}
}

func (s *Simulated) MeasureCurrent(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMA, nil
}

func (s *Simulated) SetLoad(_ context.Context, currentMA float64) error {
	s.mu.Lock()
	s.loadMA = currentMA
	s.mu.Unlock()
	return nil
}

func (s *Simulated) SetOutputVoltage(_ context.Context, voltageMV float64) error {
	s.mu.Lock()
	s.outputMV = voltageMV
	s.outputSet = true
	s.mu.Unlock()
	return nil
}

// OutputVoltage returns the last commanded output and whether one was set.
func (s *Simulated) OutputVoltage() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outputMV, s.outputSet
}
