package protocol

import (
	"fmt"
	"time"
)

// Config defines state machine parameters loaded from configuration.
type Config struct {
	ProviderID string `json:"provider_id" yaml:"provider_id"`
	// Workers is the size of the pool draining the async work queue.
	Workers   int `json:"workers" yaml:"workers"`
	QueueSize int `json:"queue_size" yaml:"queue_size"`
	// TransactionTimeoutSeconds bounds how long a transaction may stay in an
	// Awaiting state before the janitor ages it out to Failed.
	TransactionTimeoutSeconds int `json:"transaction_timeout_seconds" yaml:"transaction_timeout_seconds"`
	JanitorIntervalSeconds    int `json:"janitor_interval_seconds" yaml:"janitor_interval_seconds"`
	// TerminalRetentionSeconds bounds how long Confirmed and Failed
	// transactions stay in the registry for terminal-state NACKs before the
	// janitor evicts them.
	TerminalRetentionSeconds int     `json:"terminal_retention_seconds" yaml:"terminal_retention_seconds"`
	CatalogTTLHours          float64 `json:"catalog_ttl_hours" yaml:"catalog_ttl_hours"`
	DefaultHorizonHours      float64 `json:"default_horizon_hours" yaml:"default_horizon_hours"`
}

// SetDefaults fills unset fields with defaults.
func (c *Config) SetDefaults() {
	if c.ProviderID == "" {
		c.ProviderID = "flexcompute-hpc"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.TransactionTimeoutSeconds == 0 {
		c.TransactionTimeoutSeconds = 300
	}
	if c.JanitorIntervalSeconds == 0 {
		c.JanitorIntervalSeconds = 30
	}
	if c.TerminalRetentionSeconds == 0 {
		c.TerminalRetentionSeconds = 3600
	}
	if c.CatalogTTLHours == 0 {
		c.CatalogTTLHours = 12
	}
	if c.DefaultHorizonHours == 0 {
		c.DefaultHorizonHours = 24
	}
}

// Validate checks configuration consistency.
func (c Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1")
	}
	return nil
}

// TransactionTimeout returns the pending-state bound as a duration.
func (c Config) TransactionTimeout() time.Duration {
	return time.Duration(c.TransactionTimeoutSeconds) * time.Second
}

// JanitorInterval returns the janitor period as a duration.
func (c Config) JanitorInterval() time.Duration {
	return time.Duration(c.JanitorIntervalSeconds) * time.Second
}

// TerminalRetention returns the terminal-state retention bound as a duration.
func (c Config) TerminalRetention() time.Duration {
	return time.Duration(c.TerminalRetentionSeconds) * time.Second
}
