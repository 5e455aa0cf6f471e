package battery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceMonotonicDischarge(t *testing.T) {
	currents := []float64{0.001, 1, 100, 3600, 1e6}
	elapsed := []float64{0.001, 0.5, 1, 30, 7200}
	for _, c := range currents {
		for _, e := range elapsed {
			remaining := 3600.0
			got, depleted := Advance(c, e, remaining)
			if got > remaining {
				t.Fatalf("charge increased for current %v elapsed %v", c, e)
			}
			if got < 0 {
				t.Fatalf("negative charge %v", got)
			}
			assert.Equal(t, got == 0, depleted)
		}
	}
}

func TestAdvanceClampsToZero(t *testing.T) {
	got, depleted := Advance(5000, 1, 3600)
	assert.Equal(t, 0.0, got)
	assert.True(t, depleted)
}

func TestAdvanceNegativeCurrentCharges(t *testing.T) {
	got, depleted := Advance(-100, 2, 1000)
	assert.Equal(t, 1200.0, got)
	assert.False(t, depleted)
}

func TestStateOfCharge(t *testing.T) {
	assert.Equal(t, 50.0, StateOfCharge(1800, 1))
	assert.Equal(t, 0.0, StateOfCharge(1800, 0))
	assert.Equal(t, 100.0, StateOfCharge(9000, 1))
}
