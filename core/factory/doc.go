// Package factory provides a small generic registry used to build hardware
// adapters and telemetry sinks from their type name and raw configuration.
package factory
