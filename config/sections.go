package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/batsim/core/battery"
	"github.com/kilianp07/batsim/core/factory"
)

// BatteryConfig selects the battery parameters: a profile file, inline
// parameters, or the built-in default cell when both are empty.
type BatteryConfig struct {
	Profile    string              `json:"profile"`
	Parameters *battery.Parameters `json:"parameters"`
}

// Validate rejects ambiguous sources and invalid inline parameters.
func (c BatteryConfig) Validate() error {
	if c.Profile != "" && c.Parameters != nil {
		return fmt.Errorf("profile and parameters are mutually exclusive")
	}
	if c.Parameters != nil {
		return c.Parameters.Validate()
	}
	return nil
}

// Resolve returns the configured parameters.
func (c BatteryConfig) Resolve() (battery.Parameters, error) {
	switch {
	case c.Profile != "":
		return battery.LoadProfile(c.Profile)
	case c.Parameters != nil:
		return c.Parameters.Clone(), nil
	default:
		return battery.DefaultParameters(), nil
	}
}

// DefaultHardwareTimeoutMS bounds every adapter call.
const DefaultHardwareTimeoutMS = 500

// HardwareConfig selects the adapter and how the engine talks to it.
type HardwareConfig struct {
	Type        string         `json:"type"`
	Conf        map[string]any `json:"conf"`
	TimeoutMS   int            `json:"timeout_ms"`
	DriveOutput bool           `json:"drive_output"`
}

func (c *HardwareConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "simulated"
	}
	if c.TimeoutMS == 0 {
		c.TimeoutMS = DefaultHardwareTimeoutMS
	}
}

func (c HardwareConfig) Validate() error {
	if c.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must not be negative")
	}
	return nil
}

// Module returns the adapter factory configuration.
func (c HardwareConfig) Module() factory.ModuleConfig {
	return factory.ModuleConfig{Type: c.Type, Conf: c.Conf}
}

func (c HardwareConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// LogConfig sets the global log level.
type LogConfig struct {
	Level string `json:"level"`
}

func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic", "disabled":
		return nil
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
}

// SentryConfig enables error reporting when DSN is set. Tags are attached
// to every event, e.g. the bench or cell under test.
type SentryConfig struct {
	DSN              string            `json:"dsn"`
	Environment      string            `json:"environment"`
	TracesSampleRate float64           `json:"traces_sample_rate"`
	Release          string            `json:"release"`
	ServerName       string            `json:"server_name"`
	Tags             map[string]string `json:"tags"`
}
