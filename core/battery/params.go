package battery

import (
	"fmt"
	"math"
)

// Parameters describes one battery: series resistance, two RC stages, the
// OCV curve and the nominal capacity.
type Parameters struct {
	SeriesResistanceMOhm float64   `json:"series_resistance_mohm" yaml:"series_resistance_mohm"`
	RC1                  RCBranch  `json:"rc1" yaml:"rc1"`
	RC2                  RCBranch  `json:"rc2" yaml:"rc2"`
	RCEnabled            bool      `json:"rc_enabled" yaml:"rc_enabled"`
	OCVTable             []float64 `json:"ocv_table" yaml:"ocv_table"`
	CapacityMAh          float64   `json:"capacity_mah" yaml:"capacity_mah"`
	InitialCapacityPct   float64   `json:"initial_capacity_percent" yaml:"initial_capacity_percent"`
}

// DefaultParameters returns a 2000 mAh Li-ion cell, fully charged.
func DefaultParameters() Parameters {
	return Parameters{
		SeriesResistanceMOhm: 50,
		RC1:                  RCBranch{ResistanceMOhm: 30, CapacitanceF: 1000},
		RC2:                  RCBranch{ResistanceMOhm: 20, CapacitanceF: 10000},
		RCEnabled:            true,
		OCVTable:             DefaultOCVTable(),
		CapacityMAh:          2000,
		InitialCapacityPct:   100,
	}
}

// Validate checks the table length and that circuit values are usable.
// A zero capacity is accepted here; it only prevents starting.
func (p Parameters) Validate() error {
	if len(p.OCVTable) != OCVTableSize {
		return fmt.Errorf("%w: expected %d entries, got %d", ErrInvalidTable, OCVTableSize, len(p.OCVTable))
	}
	for i, v := range p.OCVTable {
		if !finite(v) {
			return fmt.Errorf("%w: entry %d is not finite", ErrInvalidTable, i)
		}
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"series_resistance_mohm", p.SeriesResistanceMOhm},
		{"rc1.resistance_mohm", p.RC1.ResistanceMOhm},
		{"rc1.capacitance_f", p.RC1.CapacitanceF},
		{"rc2.resistance_mohm", p.RC2.ResistanceMOhm},
		{"rc2.capacitance_f", p.RC2.CapacitanceF},
	}
	for _, c := range checks {
		if !finite(c.v) || c.v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrInvalidParameter, c.name, c.v)
		}
	}
	if !finite(p.CapacityMAh) {
		return fmt.Errorf("%w: capacity_mah must be finite", ErrInvalidParameter)
	}
	if !finite(p.InitialCapacityPct) || p.InitialCapacityPct < 0 || p.InitialCapacityPct > 100 {
		return fmt.Errorf("%w: initial_capacity_percent must be within [0,100], got %v", ErrInvalidParameter, p.InitialCapacityPct)
	}
	return nil
}

// InitialChargeMAs is the remaining charge a fresh simulation starts with.
func (p Parameters) InitialChargeMAs() float64 {
	if p.CapacityMAh <= 0 {
		return 0
	}
	return p.InitialCapacityPct / 100 * ChargeMAs(p.CapacityMAh)
}

// Clone returns a deep copy.
func (p Parameters) Clone() Parameters {
	p.OCVTable = append([]float64(nil), p.OCVTable...)
	return p
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
