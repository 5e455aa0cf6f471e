package telemetry

import (
	"context"
	"math"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
	"github.com/kilianp07/batsim/infra/logger"
)

// InfluxConfig holds the InfluxDB connection settings.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

var _ coretelemetry.DiagnosticRecorder = (*InfluxSink)(nil)

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coretelemetry.Sink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coretelemetry.NopSink{}
	}
	return sink
}

// RecordStep writes rec as a battery_step point.
func (s *InfluxSink) RecordStep(rec coretelemetry.Record) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_step")
	if rec.Session != "" {
		p = p.AddTag("session", rec.Session)
	}
	p = p.AddField("ocv_mv", round3(rec.OCVMV)).
		AddField("terminal_voltage_mv", round3(rec.TerminalVoltageMV)).
		AddField("current_ma", round3(rec.CurrentMA)).
		AddField("v_after_series_mv", round3(rec.VAfterSeriesMV)).
		AddField("rc1_voltage_mv", round3(rec.RC1VoltageMV)).
		AddField("rc2_voltage_mv", round3(rec.RC2VoltageMV)).
		AddField("remaining_capacity_mah", round3(rec.RemainingCapacityMAh)).
		AddField("state_of_charge_percent", round3(rec.StateOfChargePct)).
		SetTime(rec.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDiagnostic writes d as a battery_diagnostic point.
func (s *InfluxSink) RecordDiagnostic(d coretelemetry.Diagnostic) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("battery_diagnostic").
		AddTag("kind", string(d.Kind))
	if d.Session != "" {
		p = p.AddTag("session", d.Session)
	}
	p = p.AddField("message", d.Message).SetTime(d.Timestamp)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
