package telemetry

import (
	"encoding/json"

	coremqtt "github.com/kilianp07/batsim/core/mqtt"
	coretelemetry "github.com/kilianp07/batsim/core/telemetry"
)

// MQTTSink publishes records to <prefix>/telemetry and diagnostics to
// <prefix>/diagnostic as JSON.
type MQTTSink struct {
	cli             coremqtt.Client
	telemetryTopic  string
	diagnosticTopic string
}

var _ coretelemetry.DiagnosticRecorder = (*MQTTSink)(nil)

// NewMQTTSink publishes through cli.
func NewMQTTSink(cli coremqtt.Client) *MQTTSink {
	return &MQTTSink{
		cli:             cli,
		telemetryTopic:  cli.Topic("telemetry"),
		diagnosticTopic: cli.Topic("diagnostic"),
	}
}

func (s *MQTTSink) RecordStep(rec coretelemetry.Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.cli.Publish(s.telemetryTopic, b)
}

func (s *MQTTSink) RecordDiagnostic(d coretelemetry.Diagnostic) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.cli.Publish(s.diagnosticTopic, b)
}

// Close disconnects the client when it supports it.
func (s *MQTTSink) Close() error {
	if c, ok := s.cli.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
