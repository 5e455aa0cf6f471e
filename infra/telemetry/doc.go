// Package telemetry provides the concrete sinks simulation records are
// written to: CSV files, JSONL and SQLite stores, Prometheus gauges,
// InfluxDB points and MQTT messages. Sinks are registered by name and built
// from configuration through core/telemetry.NewSinks.
package telemetry
