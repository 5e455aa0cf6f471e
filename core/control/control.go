// Package control exposes the simulation to remote surfaces (HTTP, MQTT)
// through one facade that owns the engine and its scheduler.
package control

import (
	"context"
	"errors"

	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/engine"
	"github.com/kilianp07/batsim/core/hardware"
	"github.com/kilianp07/batsim/core/logger"
	"github.com/kilianp07/batsim/core/scheduler"
	"github.com/kilianp07/batsim/core/telemetry"
)

// Error codes shared by the remote surfaces.
const (
	CodeInvalidTable     = "INVALID_TABLE"
	CodeInvalidParameter = "INVALID_PARAMETER"
	CodeInvalidCapacity  = "INVALID_CAPACITY"
	CodeCannotStart      = "CANNOT_START"
	CodeHardwareError    = "HARDWARE_ERROR"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL"
)

// ErrorCode maps a domain error to its code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, battery.ErrInvalidTable):
		return CodeInvalidTable
	case errors.Is(err, battery.ErrInvalidParameter):
		return CodeInvalidParameter
	case errors.Is(err, engine.ErrInvalidCapacity):
		return CodeInvalidCapacity
	case errors.Is(err, engine.ErrCannotStart):
		return CodeCannotStart
	case errors.Is(err, hardware.ErrHardwareRead), errors.Is(err, hardware.ErrHardwareWrite):
		return CodeHardwareError
	default:
		return CodeInternal
	}
}

// Status summarizes the simulation for remote callers.
type Status struct {
	RunState             engine.RunState   `json:"run_state"`
	Ticking              bool              `json:"ticking"`
	Session              string            `json:"session"`
	StateOfChargePct     float64           `json:"state_of_charge_percent"`
	RemainingCapacityMAh float64           `json:"remaining_capacity_mah"`
	RC1VoltageMV         float64           `json:"rc1_voltage_mv"`
	RC2VoltageMV         float64           `json:"rc2_voltage_mv"`
	TicksDelivered       uint64            `json:"ticks_delivered"`
	TicksDropped         uint64            `json:"ticks_dropped"`
	OCVMonotonic         bool              `json:"ocv_monotonic"`
	Latest               *telemetry.Record `json:"latest,omitempty"`
}

// Service is what the HTTP API and the MQTT control loop drive.
type Service interface {
	Start() error
	Stop()
	SetLoad(ctx context.Context, currentMA float64) error
	UpdateParameters(p battery.Parameters) error
	Parameters() battery.Parameters
	Latest() (telemetry.Record, bool)
	Status() Status
}

// Controller implements Service on an engine and its scheduler.
type Controller struct {
	eng   *engine.Engine
	sched *scheduler.Scheduler
	log   logger.Logger
}

var _ Service = (*Controller)(nil)

// New returns a Controller.
func New(eng *engine.Engine, sched *scheduler.Scheduler, log logger.Logger) *Controller {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Controller{eng: eng, sched: sched, log: log}
}

// Start starts the engine and tick delivery.
func (c *Controller) Start() error { return c.sched.Start() }

// Stop halts tick delivery and the engine.
func (c *Controller) Stop() { c.sched.Stop() }

// SetLoad forwards to the hardware adapter.
func (c *Controller) SetLoad(ctx context.Context, currentMA float64) error {
	return c.eng.SetLoad(ctx, currentMA)
}

// UpdateParameters replaces the battery parameters.
func (c *Controller) UpdateParameters(p battery.Parameters) error {
	if err := c.eng.UpdateParameters(p); err != nil {
		return err
	}
	if !battery.IsMonotonic(p.OCVTable) {
		c.log.Warnf("OCV table is not monotonic; terminal voltage may rise while discharging")
	}
	return nil
}

func (c *Controller) Parameters() battery.Parameters { return c.eng.Parameters() }

func (c *Controller) Latest() (telemetry.Record, bool) { return c.eng.Latest() }

// Status returns a snapshot of the engine and scheduler.
func (c *Controller) Status() Status {
	st := c.eng.State()
	delivered, dropped := c.sched.Stats()
	s := Status{
		RunState:             st.RunState,
		Ticking:              c.sched.Running(),
		Session:              c.eng.Session(),
		StateOfChargePct:     st.StateOfChargePct,
		RemainingCapacityMAh: st.RemainingCapacityMAh(),
		RC1VoltageMV:         st.RC1PrevMV,
		RC2VoltageMV:         st.RC2PrevMV,
		TicksDelivered:       delivered,
		TicksDropped:         dropped,
		OCVMonotonic:         c.eng.OCVMonotonic(),
	}
	if rec, ok := c.eng.Latest(); ok {
		s.Latest = &rec
	}
	return s
}
