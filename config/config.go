// Package config loads the simulator configuration from a YAML or JSON file
// with environment overrides.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/batsim/api"
	"github.com/kilianp07/batsim/core/scheduler"
	"github.com/kilianp07/batsim/core/telemetry"
	"github.com/kilianp07/batsim/infra/mqtt"
)

// EnvPrefix selects the environment variables applied over the file.
// BATSIM_API__ADDRESS sets api.address.
const EnvPrefix = "BATSIM_"

type Config struct {
	Battery   BatteryConfig    `json:"battery"`
	Scheduler scheduler.Config `json:"scheduler"`
	Hardware  HardwareConfig   `json:"hardware"`
	Telemetry telemetry.Config `json:"telemetry"`
	MQTT      mqtt.Config      `json:"mqtt"`
	API       api.Config       `json:"api"`
	Log       LogConfig        `json:"log"`
	Sentry    SentryConfig     `json:"sentry"`
}

// Load reads path (may be empty) and the environment, applies defaults and
// validates every section.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.Scheduler.SetDefaults()
	c.Hardware.SetDefaults()
	c.Telemetry.SetDefaults()
	c.API.SetDefaults()
	c.Log.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	validators := []struct {
		name string
		fn   func() error
	}{
		{"battery", c.Battery.Validate},
		{"scheduler", c.Scheduler.Validate},
		{"hardware", c.Hardware.Validate},
		{"telemetry", c.Telemetry.Validate},
		{"mqtt", c.validateMQTT},
		{"api", c.API.Validate},
		{"log", c.Log.Validate},
	}
	for _, v := range validators {
		if err := v.fn(); err != nil {
			return fmt.Errorf("config %s: %w", v.name, err)
		}
	}
	return nil
}

func (c Config) validateMQTT() error {
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("broker is required when mqtt is enabled")
	}
	return nil
}
