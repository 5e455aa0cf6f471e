package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
)

// PromSink exposes the latest record as gauges.
type PromSink struct {
	ocv         prometheus.Gauge
	terminal    prometheus.Gauge
	current     prometheus.Gauge
	afterSeries prometheus.Gauge
	rc          *prometheus.GaugeVec
	remaining   prometheus.Gauge
	soc         prometheus.Gauge
	steps       prometheus.Counter
	diagnostics *prometheus.CounterVec
}

var _ coretelemetry.DiagnosticRecorder = (*PromSink)(nil)

// NewPromSink registers battery metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help})
	}
	s := &PromSink{
		ocv:         gauge("battery_ocv_millivolts", "Open-circuit voltage at the current state of charge"),
		terminal:    gauge("battery_terminal_voltage_millivolts", "Emulated terminal voltage"),
		current:     gauge("battery_current_milliamps", "Measured load current"),
		afterSeries: gauge("battery_voltage_after_series_millivolts", "Voltage after the series resistance drop"),
		rc: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "battery_rc_voltage_millivolts",
			Help: "Voltage across each RC branch",
		}, []string{"branch"}),
		remaining: gauge("battery_remaining_capacity_mah", "Remaining capacity"),
		soc:       gauge("battery_state_of_charge_percent", "State of charge"),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "battery_steps_total",
			Help: "Number of simulation steps recorded",
		}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "battery_diagnostics_total",
			Help: "Number of diagnostics by kind",
		}, []string{"kind"}),
	}

	var err error
	for _, g := range []*prometheus.Gauge{&s.ocv, &s.terminal, &s.current, &s.afterSeries, &s.remaining, &s.soc} {
		if *g, err = register(reg, *g); err != nil {
			return nil, err
		}
	}
	if s.rc, err = register(reg, s.rc); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, s.steps); err != nil {
		return nil, err
	}
	if s.diagnostics, err = register(reg, s.diagnostics); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the already registered collector when an identical one
// exists, so several sinks can share one registry.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordStep updates the gauges from rec.
func (s *PromSink) RecordStep(rec coretelemetry.Record) error {
	s.ocv.Set(rec.OCVMV)
	s.terminal.Set(rec.TerminalVoltageMV)
	s.current.Set(rec.CurrentMA)
	s.afterSeries.Set(rec.VAfterSeriesMV)
	s.rc.WithLabelValues("rc1").Set(rec.RC1VoltageMV)
	s.rc.WithLabelValues("rc2").Set(rec.RC2VoltageMV)
	s.remaining.Set(rec.RemainingCapacityMAh)
	s.soc.Set(rec.StateOfChargePct)
	s.steps.Inc()
	return nil
}

// RecordDiagnostic counts d by kind.
func (s *PromSink) RecordDiagnostic(d coretelemetry.Diagnostic) error {
	s.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	return nil
}
