// Package config loads the service configuration from a YAML or JSON file
// with optional environment overrides.
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

	"github.com/flexcompute/flexd/core/forecast"
	"github.com/flexcompute/flexd/core/metrics"
	"github.com/flexcompute/flexd/core/protocol"
	"github.com/flexcompute/flexd/core/scheduler"
	"github.com/flexcompute/flexd/infra/callback"
	"github.com/flexcompute/flexd/infra/logger"
	"github.com/flexcompute/flexd/infra/mqtt"
)

// ServerConfig defines the public HTTP listener.
type ServerConfig struct {
	Addr string `json:"addr"`
}

// SetDefaults fills unset fields with defaults.
func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}

type Config struct {
	Server    ServerConfig     `json:"server"`
	Logging   logger.Config    `json:"logging"`
	Forecast  forecast.Config  `json:"forecast"`
	Scheduler scheduler.Config `json:"scheduler"`
	Protocol  protocol.Config  `json:"protocol"`
	Callback  callback.Config  `json:"callback"`
	Metrics   metrics.Config   `json:"metrics"`
	MQTT      mqtt.Config      `json:"mqtt"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
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
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a ready-to-run configuration without reading a file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// ApplyDefaults fills every section's unset fields.
func (c *Config) ApplyDefaults() {
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
	c.Forecast.SetDefaults()
	c.Scheduler.SetDefaults()
	c.Protocol.SetDefaults()
	c.Callback.SetDefaults()
	c.Metrics.SetDefaults()
	c.MQTT.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Forecast.Validate(); err != nil {
		return fmt.Errorf("forecast: %w", err)
	}
	if err := c.Scheduler.Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	if err := c.Protocol.Validate(); err != nil {
		return fmt.Errorf("protocol: %w", err)
	}
	return nil
}
