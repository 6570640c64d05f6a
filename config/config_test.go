package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `server:
  addr: ":8088"
logging:
  level: "debug"
  format: "console"
forecast:
  slot_minutes: 15
  synthetic_fallback: true
  default_region: "fr"
scheduler:
  default_cluster_cap_kw: 2500
  cluster_caps_kw:
    gpu-1: 1200
  weights:
    cost: 1
    carbon: 0.8
    sla: 3
protocol:
  provider_id: "hpc-west"
  workers: 2
  queue_size: 16
callback:
  max_attempts: 6
metrics:
  prometheus_enabled: true
  prometheus_port: ":9102"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
  topic_prefix: "site/reservations"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"server.addr", cfg.Server.Addr, ":8088"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"logging.format", cfg.Logging.Format, "console"},
		{"forecast.slot_minutes", cfg.Forecast.SlotMinutes, 15},
		{"forecast.synthetic_fallback", cfg.Forecast.SyntheticFallback, true},
		{"forecast.default_region", cfg.Forecast.DefaultRegion, "fr"},
		{"scheduler.default_cap", cfg.Scheduler.DefaultClusterCapKW, 2500.0},
		{"scheduler.cluster_cap", cfg.Scheduler.ClusterCapsKW["gpu-1"], 1200.0},
		{"scheduler.weights.carbon", cfg.Scheduler.Weights.Carbon, 0.8},
		{"protocol.provider_id", cfg.Protocol.ProviderID, "hpc-west"},
		{"protocol.workers", cfg.Protocol.Workers, 2},
		{"protocol.queue_size", cfg.Protocol.QueueSize, 16},
		{"callback.max_attempts", cfg.Callback.MaxAttempts, 6},
		{"metrics.prometheus_port", cfg.Metrics.PrometheusPort, ":9102"},
		{"mqtt.enabled", cfg.MQTT.Enabled, true},
		{"mqtt.topic_prefix", cfg.MQTT.TopicPrefix, "site/reservations"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	// defaults fill the sections the file left out
	if cfg.Protocol.TransactionTimeoutSeconds != 300 {
		t.Errorf("transaction timeout default missing: %d", cfg.Protocol.TransactionTimeoutSeconds)
	}
	if cfg.Callback.TimeoutSeconds != 10 {
		t.Errorf("callback timeout default missing: %d", cfg.Callback.TimeoutSeconds)
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `logging:
  level: "verbose"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown log level")
	}
}

func TestLoadRejectsUnknownFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("x = 1"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `scheduler:
  default_cluster_cap_kw: -5
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for negative cap")
	}
}

func TestDefaultIsRunnable(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Server.Addr == "" || cfg.Protocol.Workers == 0 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}
