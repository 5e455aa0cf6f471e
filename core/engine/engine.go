package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/hardware"
	"github.com/kilianp07/batsim/core/logger"
	"github.com/kilianp07/batsim/core/monitoring"
	"github.com/kilianp07/batsim/core/telemetry"
	"github.com/kilianp07/batsim/internal/eventbus"
)

// Engine advances the equivalent-circuit model one step at a time. All
// mutations are serialized so a step never observes a half-applied
// parameter update.
type Engine struct {
	mu        sync.Mutex
	params    battery.Parameters
	ocv       *battery.OCVTable
	state     State
	latest    telemetry.Record
	hasLatest bool

	hw   hardware.Adapter
	sink telemetry.Sink
	bus  *eventbus.TypedBus[telemetry.Record]
	log  logger.Logger

	hwTimeout      time.Duration
	driveOutput    bool
	now            func() time.Time
	session        string
	observerBuffer int
}

// New creates a stopped engine loaded with params. A nil sink discards
// records.
func New(params battery.Parameters, hw hardware.Adapter, sink telemetry.Sink, opts ...Option) (*Engine, error) {
	if hw == nil {
		return nil, errors.New("engine: hardware adapter is required")
	}
	if sink == nil {
		sink = telemetry.NopSink{}
	}
	e := &Engine{
		hw:        hw,
		sink:      sink,
		log:       logger.NopLogger{},
		hwTimeout: DefaultHardwareTimeout,
		now:       time.Now,
		session:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.bus = eventbus.NewTyped[telemetry.Record](e.observerBuffer)
	if err := e.apply(params); err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateParameters atomically replaces the battery parameters. The remaining
// charge restarts from the initial capacity percentage and both RC stages
// relax to zero. The run state is left untouched. On error the previous
// parameters stay in effect.
func (e *Engine) UpdateParameters(p battery.Parameters) error {
	if err := e.apply(p); err != nil {
		return err
	}
	e.log.Infof("parameters updated: capacity=%.1fmAh initial=%.1f%% r0=%.1fmOhm rc_enabled=%t",
		p.CapacityMAh, p.InitialCapacityPct, p.SeriesResistanceMOhm, p.RCEnabled)
	return nil
}

func (e *Engine) apply(p battery.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	tbl, err := battery.NewOCVTable(p.OCVTable)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = p.Clone()
	e.ocv = tbl
	e.state.RemainingChargeMAs = p.InitialChargeMAs()
	e.state.StateOfChargePct = battery.StateOfCharge(e.state.RemainingChargeMAs, p.CapacityMAh)
	e.state.RC1PrevMV = 0
	e.state.RC2PrevMV = 0
	return nil
}

// Start moves a stopped or depleted engine to Running.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.params.CapacityMAh <= 0 {
		return fmt.Errorf("%w: capacity_mah must be positive, got %v", ErrInvalidCapacity, e.params.CapacityMAh)
	}
	if e.state.RunState == Running {
		return nil
	}
	if e.state.RemainingChargeMAs <= 0 {
		return ErrCannotStart
	}
	e.state.RunState = Running
	e.state.LastStep = e.now()
	e.log.Infof("simulation started: session=%s soc=%.2f%%", e.session, e.state.StateOfChargePct)
	return nil
}

// Stop moves the engine to Stopped.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.RunState == Stopped {
		return
	}
	e.state.RunState = Stopped
	e.log.Infof("simulation stopped: soc=%.2f%%", e.state.StateOfChargePct)
}

// Step advances the simulation by elapsedS seconds of load. A failed current
// measurement leaves the state untouched and is reported as a diagnostic.
// A failed output command is reported after the record has been emitted.
func (e *Engine) Step(ctx context.Context, elapsedS float64) (telemetry.Record, error) {
	e.mu.Lock()
	if e.state.RunState != Running {
		e.mu.Unlock()
		return telemetry.Record{}, ErrNotRunning
	}
	if elapsedS < 0 || math.IsNaN(elapsedS) || math.IsInf(elapsedS, 0) {
		elapsedS = 0
	}

	current, err := e.measure(ctx)
	if err != nil {
		e.mu.Unlock()
		err = fmt.Errorf("%w: %w", hardware.ErrHardwareRead, err)
		e.diagnose(telemetry.DiagnosticHardwareRead, err)
		return telemetry.Record{}, err
	}

	p := e.params
	remaining, _ := battery.Advance(current, elapsedS, e.state.RemainingChargeMAs)
	if full := battery.ChargeMAs(math.Max(p.CapacityMAh, 0)); remaining > full {
		remaining = full
	}
	depleted := remaining == 0
	soc := battery.StateOfCharge(remaining, p.CapacityMAh)
	ocv := e.ocv.Lookup(soc)
	vAfterSeries := ocv - current*p.SeriesResistanceMOhm/1000
	var rc1, rc2 float64
	if p.RCEnabled {
		rc1 = p.RC1.Step(elapsedS, e.state.RC1PrevMV, current)
		rc2 = p.RC2.Step(elapsedS, e.state.RC2PrevMV, current)
	}
	terminal := vAfterSeries - rc1 - rc2

	now := e.now()
	e.state.RemainingChargeMAs = remaining
	e.state.StateOfChargePct = soc
	e.state.RC1PrevMV = rc1
	e.state.RC2PrevMV = rc2
	e.state.LastStep = now
	if depleted {
		e.state.RunState = Depleted
	}
	rec := telemetry.Record{
		Timestamp:            now,
		OCVMV:                ocv,
		TerminalVoltageMV:    terminal,
		CurrentMA:            current,
		VAfterSeriesMV:       vAfterSeries,
		RC1VoltageMV:         rc1,
		RC2VoltageMV:         rc2,
		RemainingCapacityMAh: remaining / 3600,
		StateOfChargePct:     soc,
		Session:              e.session,
		ElapsedS:             elapsedS,
	}
	e.latest = rec
	e.hasLatest = true
	e.mu.Unlock()

	if err := e.sink.RecordStep(rec); err != nil {
		e.diagnose(telemetry.DiagnosticSink, fmt.Errorf("record step: %w", err))
	}
	e.bus.Publish(rec)

	var outErr error
	if e.driveOutput {
		if err := e.callHardware(ctx, func(ctx context.Context) error {
			return e.hw.SetOutputVoltage(ctx, terminal)
		}); err != nil {
			outErr = fmt.Errorf("%w: %w", hardware.ErrHardwareWrite, err)
			e.diagnose(telemetry.DiagnosticHardwareWrite, outErr)
		}
	}
	if depleted {
		e.log.Infof("battery depleted: session=%s", e.session)
	}
	return rec, outErr
}

// SetLoad asks the hardware adapter to draw currentMA.
func (e *Engine) SetLoad(ctx context.Context, currentMA float64) error {
	if math.IsNaN(currentMA) || math.IsInf(currentMA, 0) {
		return fmt.Errorf("%w: load must be finite", battery.ErrInvalidParameter)
	}
	if err := e.callHardware(ctx, func(ctx context.Context) error {
		return e.hw.SetLoad(ctx, currentMA)
	}); err != nil {
		return fmt.Errorf("%w: %w", hardware.ErrHardwareWrite, err)
	}
	e.log.Infof("external load set to %.1f mA", currentMA)
	return nil
}

func (e *Engine) measure(ctx context.Context) (float64, error) {
	var current float64
	err := e.callHardware(ctx, func(ctx context.Context) error {
		v, err := e.hw.MeasureCurrent(ctx)
		current = v
		return err
	})
	if err != nil {
		return 0, err
	}
	if math.IsNaN(current) || math.IsInf(current, 0) {
		return 0, fmt.Errorf("non-finite current %v", current)
	}
	return current, nil
}

// callHardware runs fn with the hardware timeout. Adapters that ignore the
// context are abandoned once the deadline passes.
func (e *Engine) callHardware(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.hwTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) diagnose(kind telemetry.DiagnosticKind, err error) {
	e.log.Warnf("%s: %v", kind, err)
	if kind != telemetry.DiagnosticSink {
		monitoring.CaptureException(err, map[string]string{"kind": string(kind), "session": e.session})
	}
	dr, ok := e.sink.(telemetry.DiagnosticRecorder)
	if !ok {
		return
	}
	d := telemetry.Diagnostic{Timestamp: e.now(), Session: e.session, Kind: kind, Message: err.Error()}
	if derr := dr.RecordDiagnostic(d); derr != nil && kind != telemetry.DiagnosticSink {
		e.log.Errorf("record diagnostic: %v", derr)
	}
}

// State returns a snapshot of the simulation state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// RunState returns the current lifecycle state.
func (e *Engine) RunState() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.RunState
}

// Parameters returns a copy of the active parameters.
func (e *Engine) Parameters() battery.Parameters {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params.Clone()
}

// OCVMonotonic reports whether the active OCV table never decreases.
func (e *Engine) OCVMonotonic() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ocv.Monotonic()
}

// Latest returns the last emitted record.
func (e *Engine) Latest() (telemetry.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.latest, e.hasLatest
}

// Session returns the identifier attached to every record.
func (e *Engine) Session() string { return e.session }

// Subscribe returns a channel receiving every record. Slow observers miss
// records instead of delaying the simulation.
func (e *Engine) Subscribe() <-chan telemetry.Record { return e.bus.Subscribe() }

// Unsubscribe detaches an observer and closes its channel.
func (e *Engine) Unsubscribe(ch <-chan telemetry.Record) { e.bus.Unsubscribe(ch) }

// Close releases observers.
func (e *Engine) Close() { e.bus.Close() }
