package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/harrissondutra/fitOS-sub015/pkg/hub"
)

// TOMLConfig represents the structure of the hub config file
type TOMLConfig struct {
	Server    ServerSection    `toml:"server"`
	Heartbeat HeartbeatSection `toml:"heartbeat"`
	Limits    LimitsSection    `toml:"limits"`
}

type ServerSection struct {
	ListenAddr string `toml:"listen_addr"`
	PprofAddr  string `toml:"pprof_addr"`
}

type HeartbeatSection struct {
	IntervalSeconds     int `toml:"interval_seconds"`
	WriteTimeoutSeconds int `toml:"write_timeout_seconds"`
}

type LimitsSection struct {
	MaxMessageBytes int64 `toml:"max_message_bytes"`
}

// DefaultTOMLConfig returns the default TOML configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			ListenAddr: ":8090",
			PprofAddr:  "localhost:6060",
		},
		Heartbeat: HeartbeatSection{
			IntervalSeconds:     30,
			WriteTimeoutSeconds: 10,
		},
		Limits: LimitsSection{
			MaxMessageBytes: 65536,
		},
	}
}

// LoadConfig loads configuration from a TOML file, creates default if not found
func LoadConfig(path string) (TOMLConfig, error) {
	// Expand ~ in path
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return TOMLConfig{}, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, create default config
		config := DefaultTOMLConfig()
		if err := writeDefaultConfig(path, config); err != nil {
			// If we can't write, just return defaults without error
			// (might be a permissions issue, but we can still run)
			return config, nil
		}
		return config, nil
	}

	var config TOMLConfig
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return TOMLConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// writeDefaultConfig writes the default config to a file
func writeDefaultConfig(path string, config TOMLConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	header := `# FitOS Realtime Hub Configuration
# This file was auto-generated with default values
# Edit as needed and restart the hub for changes to take effect

`
	if _, err := f.WriteString(header); err != nil {
		return err
	}

	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// ToHubConfig converts the heartbeat and limits sections to a hub.Config
func (c *TOMLConfig) ToHubConfig() hub.Config {
	cfg := hub.DefaultConfig()

	if c.Heartbeat.IntervalSeconds > 0 {
		cfg.HeartbeatInterval = time.Duration(c.Heartbeat.IntervalSeconds) * time.Second
	}

	if c.Heartbeat.WriteTimeoutSeconds > 0 {
		cfg.WriteTimeout = time.Duration(c.Heartbeat.WriteTimeoutSeconds) * time.Second
	}

	if c.Limits.MaxMessageBytes > 0 {
		cfg.MaxMessageBytes = c.Limits.MaxMessageBytes
	}

	return cfg
}
