package battery

// Advance removes currentMA*elapsedS from remainingMAs. Positive current
// discharges; a negative current adds charge through the same subtraction.
// The result never drops below zero and depleted reports when it hits it.
func Advance(currentMA, elapsedS, remainingMAs float64) (newRemaining float64, depleted bool) {
	drained := currentMA * elapsedS
	newRemaining = remainingMAs - drained
	if newRemaining < 0 {
		newRemaining = 0
	}
	return newRemaining, newRemaining == 0
}

// ChargeMAs converts a capacity in mAh to milliamp-seconds.
func ChargeMAs(capacityMAh float64) float64 { return capacityMAh * 3600 }

// StateOfCharge returns remainingMAs as a percentage of capacityMAh,
// clamped to [0,100]. A non-positive capacity yields 0.
func StateOfCharge(remainingMAs, capacityMAh float64) float64 {
	if capacityMAh <= 0 {
		return 0
	}
	return ClampPercent(remainingMAs * 100 / ChargeMAs(capacityMAh))
}
