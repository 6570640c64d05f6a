package forecast

import (
	"fmt"
	"time"
)

// Config defines normalization parameters loaded from configuration.
type Config struct {
	SlotMinutes int `json:"slot_minutes" yaml:"slot_minutes"`
	// SyntheticFallback substitutes deterministic flagged values for slots
	// without any reference data instead of aborting the cycle.
	SyntheticFallback bool   `json:"synthetic_fallback" yaml:"synthetic_fallback"`
	DefaultRegion     string `json:"default_region" yaml:"default_region"`
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if c.SlotMinutes == 0 {
		c.SlotMinutes = 30
	}
	if c.DefaultRegion == "" {
		c.DefaultRegion = "GB"
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.SlotMinutes <= 0 {
		return fmt.Errorf("slot_minutes must be positive")
	}
	return nil
}

// Slot returns the configured slot width.
func (c Config) Slot() time.Duration {
	return time.Duration(c.SlotMinutes) * time.Minute
}
