package api

import (
	"fmt"
	"strings"
)

// DefaultAddress is used when Config.Address is empty.
const DefaultAddress = ":8080"

// Config configures the HTTP API.
type Config struct {
	Enabled        bool     `json:"enabled"`
	Address        string   `json:"address"`
	AllowedOrigins []string `json:"allowed_origins"`
	// Token, when set, must be sent as "Authorization: Bearer <token>" on
	// /api/v1 routes.
	Token string `json:"token"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if strings.TrimSpace(c.Address) == "" {
		c.Address = DefaultAddress
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("api: address is required")
	}
	for _, o := range c.AllowedOrigins {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("api: empty allowed origin")
		}
	}
	return nil
}
