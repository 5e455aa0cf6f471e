package battery

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/interp"
)

// OCVTableSize is the number of entries of an OCV table: one voltage per
// percent of state of charge, 0 to 100 inclusive.
const OCVTableSize = 101

// OCVTable maps state of charge (percent) to open-circuit voltage (mV).
type OCVTable struct {
	values []float64
	pl     interp.PiecewiseLinear
}

// NewOCVTable copies values into a lookup table.
func NewOCVTable(values []float64) (*OCVTable, error) {
	if len(values) != OCVTableSize {
		return nil, fmt.Errorf("%w: expected %d entries, got %d", ErrInvalidTable, OCVTableSize, len(values))
	}
	t := &OCVTable{values: append([]float64(nil), values...)}
	xs := make([]float64, OCVTableSize)
	for i := range xs {
		xs[i] = float64(i)
	}
	if err := t.pl.Fit(xs, t.values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}
	return t, nil
}

// Lookup returns the open-circuit voltage for pct. Integer percentages hit
// the table directly, anything in between is linearly interpolated.
func (t *OCVTable) Lookup(pct float64) float64 {
	pct = ClampPercent(pct)
	if pct == math.Trunc(pct) {
		return t.values[int(pct)]
	}
	return t.pl.Predict(pct)
}

// Values returns a copy of the table.
func (t *OCVTable) Values() []float64 {
	return append([]float64(nil), t.values...)
}

// Monotonic reports whether voltages never decrease with state of charge.
// The engine does not require it.
func (t *OCVTable) Monotonic() bool {
	return IsMonotonic(t.values)
}

// IsMonotonic reports whether values is non-decreasing.
func IsMonotonic(values []float64) bool {
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			return false
		}
	}
	return true
}

// ClampPercent bounds pct to [0,100]. NaN maps to 0.
func ClampPercent(pct float64) float64 {
	switch {
	case math.IsNaN(pct), pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}

// ParseOCVTable parses a comma or whitespace separated list of voltages.
func ParseOCVTable(s string) ([]float64, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	if len(fields) != OCVTableSize {
		return nil, fmt.Errorf("%w: expected %d entries, got %d", ErrInvalidTable, OCVTableSize, len(fields))
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidTable, i, err)
		}
		out[i] = v
	}
	return out, nil
}

// anchor points of a generic single-cell Li-ion discharge curve (percent, mV)
var liIonAnchors = [][2]float64{
	{0, 3000}, {5, 3300}, {10, 3450}, {20, 3550}, {30, 3620}, {40, 3670},
	{50, 3710}, {60, 3760}, {70, 3830}, {80, 3920}, {90, 4020}, {100, 4180},
}

// DefaultOCVTable returns a 101 entry table for a generic Li-ion cell.
func DefaultOCVTable() []float64 {
	xs := make([]float64, len(liIonAnchors))
	ys := make([]float64, len(liIonAnchors))
	for i, a := range liIonAnchors {
		xs[i], ys[i] = a[0], a[1]
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		panic(err)
	}
	out := make([]float64, OCVTableSize)
	for i := range out {
		out[i] = math.Round(pl.Predict(float64(i)))
	}
	return out
}
