package telemetry

import (
	"strconv"
	"time"
)

// Header lists the column names of a Record in its guaranteed order.
var Header = []string{
	"timestamp",
	"ocv_mv",
	"terminal_voltage_mv",
	"current_ma",
	"v_after_series_mv",
	"rc1_voltage_mv",
	"rc2_voltage_mv",
	"remaining_capacity_mah",
	"state_of_charge_percent",
}

// Record is the immutable result of one simulation step.
type Record struct {
	Timestamp            time.Time `json:"timestamp"`
	OCVMV                float64   `json:"ocv_mv"`
	TerminalVoltageMV    float64   `json:"terminal_voltage_mv"`
	CurrentMA            float64   `json:"current_ma"`
	VAfterSeriesMV       float64   `json:"v_after_series_mv"`
	RC1VoltageMV         float64   `json:"rc1_voltage_mv"`
	RC2VoltageMV         float64   `json:"rc2_voltage_mv"`
	RemainingCapacityMAh float64   `json:"remaining_capacity_mah"`
	StateOfChargePct     float64   `json:"state_of_charge_percent"`

	Session  string  `json:"session,omitempty"`
	ElapsedS float64 `json:"elapsed_s"`
}

// Values formats the record fields in Header order. The timestamp is Unix
// seconds with sub-second precision.
func (r Record) Values() []string {
	return []string{
		strconv.FormatFloat(float64(r.Timestamp.UnixNano())/1e9, 'f', 6, 64),
		formatFloat(r.OCVMV),
		formatFloat(r.TerminalVoltageMV),
		formatFloat(r.CurrentMA),
		formatFloat(r.VAfterSeriesMV),
		formatFloat(r.RC1VoltageMV),
		formatFloat(r.RC2VoltageMV),
		formatFloat(r.RemainingCapacityMAh),
		formatFloat(r.StateOfChargePct),
	}
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// DiagnosticKind classifies a Diagnostic.
type DiagnosticKind string

const (
	DiagnosticHardwareRead  DiagnosticKind = "hardware_read"
	DiagnosticHardwareWrite DiagnosticKind = "hardware_write"
	DiagnosticSink          DiagnosticKind = "sink"
)

// Diagnostic marks a step that could not run normally.
type Diagnostic struct {
	Timestamp time.Time      `json:"timestamp"`
	Session   string         `json:"session,omitempty"`
	Kind      DiagnosticKind `json:"kind"`
	Message   string         `json:"message"`
}

// Sink consumes one record per step.
type Sink interface {
	RecordStep(rec Record) error
}

// DiagnosticRecorder is implemented by sinks that also persist diagnostics.
type DiagnosticRecorder interface {
	RecordDiagnostic(d Diagnostic) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordStep(Record) error           { return nil }
func (NopSink) RecordDiagnostic(Diagnostic) error { return nil }
