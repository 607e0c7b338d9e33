package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTOMLConfig(t *testing.T) {
	cfg := DefaultTOMLConfig()

	if cfg.Server.ListenAddr == "" {
		t.Fatal("expected default listen address to be set")
	}

	if cfg.Heartbeat.IntervalSeconds <= 0 {
		t.Fatalf("expected positive default heartbeat interval, got %d", cfg.Heartbeat.IntervalSeconds)
	}

	if cfg.Limits.MaxMessageBytes <= 0 {
		t.Fatalf("expected positive default message size limit, got %d", cfg.Limits.MaxMessageBytes)
	}
}

func TestToHubConfigMapsSettings(t *testing.T) {
	cfg := DefaultTOMLConfig()
	cfg.Heartbeat.IntervalSeconds = 5
	cfg.Heartbeat.WriteTimeoutSeconds = 2
	cfg.Limits.MaxMessageBytes = 1024

	hubCfg := cfg.ToHubConfig()

	if hubCfg.HeartbeatInterval != 5*time.Second {
		t.Fatalf("expected 5s heartbeat interval, got %v", hubCfg.HeartbeatInterval)
	}

	if hubCfg.WriteTimeout != 2*time.Second {
		t.Fatalf("expected 2s write timeout, got %v", hubCfg.WriteTimeout)
	}

	if hubCfg.MaxMessageBytes != 1024 {
		t.Fatalf("expected 1024 byte limit, got %d", hubCfg.MaxMessageBytes)
	}
}

func TestToHubConfigFallsBackToDefaults(t *testing.T) {
	var cfg TOMLConfig

	hubCfg := cfg.ToHubConfig()

	if hubCfg.HeartbeatInterval != 30*time.Second {
		t.Fatalf("expected fallback 30s heartbeat interval, got %v", hubCfg.HeartbeatInterval)
	}

	if hubCfg.MaxMessageBytes != 65536 {
		t.Fatalf("expected fallback message size limit, got %d", hubCfg.MaxMessageBytes)
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.toml")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddr != DefaultTOMLConfig().Server.ListenAddr {
		t.Fatalf("expected default listen address, got %s", cfg.Server.ListenAddr)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected default config file to be written: %v", err)
	}
}

func TestLoadConfigReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hub.toml")
	content := `
[server]
listen_addr = ":9999"

[heartbeat]
interval_seconds = 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.ListenAddr != ":9999" {
		t.Fatalf("expected :9999, got %s", cfg.Server.ListenAddr)
	}

	if cfg.Heartbeat.IntervalSeconds != 7 {
		t.Fatalf("expected heartbeat interval 7, got %d", cfg.Heartbeat.IntervalSeconds)
	}
}
