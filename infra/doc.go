// Package infra holds the adapters behind the core interfaces: bench
// instruments, telemetry sinks, the MQTT client and error monitoring.
package infra
