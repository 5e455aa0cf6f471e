package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `battery:
  parameters:
    series_resistance_mohm: 40
    rc1: {resistance_mohm: 20, capacitance_f: 500}
    rc2: {resistance_mohm: 10, capacitance_f: 5000}
    rc_enabled: true
    capacity_mah: 3000
    initial_capacity_percent: 80
    ocv_table: [`+table(3000, 4200)+`]
scheduler:
  interval_ms: 250
  fixed_step: true
  auto_start: true
hardware:
  type: scpi
  conf:
    port: /dev/ttyUSB0
  drive_output: true
telemetry:
  sinks:
    - type: csv
      conf:
        path: out.csv
mqtt:
  enabled: true
  broker: tcp://localhost:1883
  topic_prefix: lab/cell1
api:
  enabled: true
  allowed_origins: ["http://bench.local"]
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"scheduler.interval_ms", cfg.Scheduler.IntervalMS, 250},
		{"scheduler.fixed_step", cfg.Scheduler.FixedStep, true},
		{"scheduler.auto_start", cfg.Scheduler.AutoStart, true},
		{"hardware.type", cfg.Hardware.Type, "scpi"},
		{"hardware.conf.port", cfg.Hardware.Conf["port"], "/dev/ttyUSB0"},
		{"hardware.timeout", cfg.Hardware.Timeout(), 500 * time.Millisecond},
		{"hardware.drive_output", cfg.Hardware.DriveOutput, true},
		{"telemetry.sinks", len(cfg.Telemetry.Sinks), 1},
		{"telemetry.observer_buffer", cfg.Telemetry.ObserverBuffer, 64},
		{"mqtt.prefix", cfg.MQTT.Prefix(), "lab/cell1"},
		{"api.address", cfg.API.Address, ":8080"},
		{"api.allowed_origins", len(cfg.API.AllowedOrigins), 1},
		{"log.level", cfg.Log.Level, "debug"},
	}
	for _, c := range checks {
		assert.Equal(t, c.want, c.got, c.name)
	}

	p, err := cfg.Battery.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 3000.0, p.CapacityMAh)
	assert.Equal(t, 80.0, p.InitialCapacityPct)
	assert.Equal(t, 500.0, p.RC1.CapacitanceF)
	assert.Len(t, p.OCVTable, 101)
	assert.Equal(t, 4200.0, p.OCVTable[100])
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Scheduler.IntervalMS)
	assert.Equal(t, "simulated", cfg.Hardware.Type)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.API.Enabled)

	p, err := cfg.Battery.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, p.CapacityMAh)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BATSIM_API__ADDRESS", ":9999")
	t.Setenv("BATSIM_SCHEDULER__INTERVAL_MS", "100")
	t.Setenv("BATSIM_LOG__LEVEL", "warn")
	path := writeFile(t, "config.json", `{"api":{"enabled":true,"address":":8081"}}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.API.Address)
	assert.Equal(t, 100, cfg.Scheduler.IntervalMS)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadProfile(t *testing.T) {
	profile := writeFile(t, "cell.yaml", `series_resistance_mohm: 60
rc_enabled: false
capacity_mah: 1200
initial_capacity_percent: 50
ocv_table: [`+table(3300, 4100)+`]
`)
	path := writeFile(t, "config.yaml", "battery:\n  profile: "+profile+"\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	p, err := cfg.Battery.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1200.0, p.CapacityMAh)
	assert.False(t, p.RCEnabled)
}

func TestLoadErrors(t *testing.T) {
	cases := map[string]string{
		"config.toml":         "a = 1",
		"bad-level.yaml":      "log:\n  level: loud\n",
		"bad-interval.yaml":   "scheduler:\n  interval_ms: -5\n",
		"mqtt-no-broker.yaml": "mqtt:\n  enabled: true\n",
		"short-table.yaml":    "battery:\n  parameters:\n    capacity_mah: 10\n    ocv_table: [3000, 3100]\n",
		"sink-no-type.yaml":   "telemetry:\n  sinks:\n    - conf: {}\n",
		"both-sources.yaml":   "battery:\n  profile: x.yaml\n  parameters:\n    capacity_mah: 1\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, name, data))
			assert.Error(t, err)
		})
	}
}

// table renders a linear 101-entry OCV table for YAML.
func table(lo, hi float64) string {
	vals := make([]string, 0, 101)
	for i := 0; i <= 100; i++ {
		vals = append(vals, strconv.FormatFloat(lo+(hi-lo)*float64(i)/100, 'f', -1, 64))
	}
	return strings.Join(vals, ", ")
}
