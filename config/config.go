package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kastheco/mountie/log"
)

const (
	ConfigFileName = "config.toml"
	appName        = "mountie"

	defaultTickIntervalMs = 100
	defaultMaxRestarts    = 3
)

// GetConfigDir returns the path to the application's configuration directory,
// $XDG_CONFIG_HOME/mountie or ~/.config/mountie.
func GetConfigDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", appName), nil
}

// GetStateDir returns the directory for the audit database,
// $XDG_STATE_HOME/mountie or ~/.local/state/mountie.
func GetStateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get state home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "state", appName), nil
}

// Config represents the application configuration
type Config struct {
	// TickIntervalMs is how often (ms) the UI polls the session for finished
	// tasks and agent requests.
	TickIntervalMs int `toml:"tick_interval_ms"`
	// MaxRestarts bounds how many times the UI is restarted after a panic.
	MaxRestarts int `toml:"max_restarts"`
	// PolkitAgent registers the session as the polkit authentication agent.
	PolkitAgent bool `toml:"polkit_agent"`
	// PolkitHelper overrides the path of polkit-agent-helper-1.
	PolkitHelper string `toml:"polkit_helper"`
	// PreferredUser is picked first when polkit offers several identities.
	PreferredUser string `toml:"preferred_user"`
	// AuditEnabled records operations in the audit database.
	AuditEnabled bool `toml:"audit_enabled"`
	// TelemetryEnabled controls whether crash reporting via Sentry is active.
	TelemetryEnabled bool `toml:"telemetry_enabled"`
	SentryDSN        string `toml:"sentry_dsn"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		TickIntervalMs: defaultTickIntervalMs,
		MaxRestarts:    defaultMaxRestarts,
		PolkitAgent:    true,
		AuditEnabled:   true,
	}
}

// TickInterval returns the UI tick as a duration. Non-positive values fall
// back to the default.
func (c *Config) TickInterval() time.Duration {
	if c.TickIntervalMs <= 0 {
		return defaultTickIntervalMs * time.Millisecond
	}
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// IsTelemetryEnabled returns whether Sentry telemetry is enabled. A DSN is
// required.
func (c *Config) IsTelemetryEnabled() bool {
	return c.TelemetryEnabled && c.SentryDSN != ""
}

// Path returns the default config file location.
func Path() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// LoadConfig reads the config from the default location.
func LoadConfig() *Config {
	configPath, err := Path()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultConfig()
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom reads the config at path. A missing file is created with the
// defaults; an unreadable or malformed one yields the defaults.
func LoadConfigFrom(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultCfg := DefaultConfig()
			if saveErr := SaveConfigTo(defaultCfg, path); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
			return defaultCfg
		}

		log.WarningLog.Printf("failed to get config file: %v", err)
		return DefaultConfig()
	}

	// Keys absent from the file keep their defaults.
	config := DefaultConfig()
	md, err := toml.Decode(string(data), config)
	if err != nil {
		log.ErrorLog.Printf("failed to parse config file: %v", err)
		return DefaultConfig()
	}
	for _, key := range md.Undecoded() {
		log.WarningLog.Printf("unknown config key %q in %s", key.String(), path)
	}
	if config.MaxRestarts < 0 {
		config.MaxRestarts = 0
	}
	return config
}

// SaveConfig writes config to the default location.
func SaveConfig(config *Config) error {
	configPath, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}
	return SaveConfigTo(config, configPath)
}

// SaveConfigTo writes config to path, creating the parent directory.
func SaveConfigTo(config *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
