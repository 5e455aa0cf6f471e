package engine

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCapacity is returned by Start when capacity_mah is not positive.
	ErrInvalidCapacity = errors.New("invalid capacity")
	// ErrCannotStart is returned by Start when no charge remains.
	ErrCannotStart = errors.New("cannot start: battery depleted")
	// ErrNotRunning is returned by Step outside the Running state.
	ErrNotRunning = errors.New("simulation not running")
)

// RunState is the lifecycle of a simulation.
type RunState int

const (
	Stopped RunState = iota
	Running
	Depleted
)

func (s RunState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Depleted:
		return "depleted"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s RunState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a state name.
func (s *RunState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "stopped":
		*s = Stopped
	case "running":
		*s = Running
	case "depleted":
		*s = Depleted
	default:
		return fmt.Errorf("unknown run state %q", b)
	}
	return nil
}

// State is a snapshot of the simulation state.
type State struct {
	RemainingChargeMAs float64   `json:"remaining_charge_mas"`
	StateOfChargePct   float64   `json:"state_of_charge_percent"`
	RC1PrevMV          float64   `json:"rc1_prev_mv"`
	RC2PrevMV          float64   `json:"rc2_prev_mv"`
	LastStep           time.Time `json:"last_step"`
	RunState           RunState  `json:"run_state"`
}

// RemainingCapacityMAh converts the remaining charge to mAh.
func (s State) RemainingCapacityMAh() float64 { return s.RemainingChargeMAs / 3600 }
