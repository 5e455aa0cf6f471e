package battery

import "math"

// settleTaus is the number of time constants after which a branch is
// considered fully charged.
const settleTaus = 5

// RCBranch is one resistor-capacitor stage of the Thevenin model.
type RCBranch struct {
	ResistanceMOhm float64 `json:"resistance_mohm" yaml:"resistance_mohm"`
	CapacitanceF   float64 `json:"capacitance_f" yaml:"capacitance_f"`
}

// Tau returns the time constant in seconds.
func (b RCBranch) Tau() float64 {
	return b.ResistanceMOhm * b.CapacitanceF / 1000
}

// Step advances the branch voltage by elapsedS seconds.
func (b RCBranch) Step(elapsedS, prevMV, currentMA float64) float64 {
	return RCStep(elapsedS, prevMV, currentMA, b.ResistanceMOhm, b.CapacitanceF)
}

// RCStep returns the voltage across an RC stage after elapsedS seconds,
// starting from prevMV with a constant currentMA flowing. Beyond five time
// constants, or with a zero time constant, the drop is purely resistive.
func RCStep(elapsedS, prevMV, currentMA, rMOhm, cF float64) float64 {
	steady := currentMA * rMOhm / 1000
	tau := rMOhm * cF / 1000
	if tau <= 0 || math.IsNaN(tau) || math.IsInf(tau, 0) {
		return steady
	}
	if elapsedS < 0 || math.IsNaN(elapsedS) {
		elapsedS = 0
	}
	if elapsedS > settleTaus*tau {
		return steady
	}
	decay := math.Exp(-elapsedS / tau)
	return prevMV*decay + steady*(1-decay)
}
