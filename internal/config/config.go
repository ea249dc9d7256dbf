package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	BLE      BLEConfig `yaml:"ble"`
	LogLevel string    `yaml:"log_level"`
}

// BLEConfig holds discovery and link settings.
type BLEConfig struct {
	Device       string        `yaml:"device"`        // name pattern; empty picks the first module found
	NameFilter   string        `yaml:"name_filter"`   // case-sensitive scan filter
	ScanTimeout  time.Duration `yaml:"scan_timeout"`  // discovery window
	PollInterval time.Duration `yaml:"poll_interval"` // receive polling period in listen mode
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "modi-ble")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		BLE: BLEConfig{
			NameFilter:   "MODI",
			ScanTimeout:  time.Second,
			PollInterval: 10 * time.Millisecond,
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.BLE.NameFilter == "" {
		return fmt.Errorf("ble.name_filter must not be empty")
	}

	if c.BLE.ScanTimeout <= 0 {
		return fmt.Errorf("ble.scan_timeout must be > 0, got %s", c.BLE.ScanTimeout)
	}

	if c.BLE.PollInterval <= 0 {
		return fmt.Errorf("ble.poll_interval must be > 0, got %s", c.BLE.PollInterval)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ParseLogLevel maps a config log level to a slog level. Unknown values
// fall back to info.
func ParseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const defaultConfigTemplate = `# modi-ble configuration
# Written on first run. Edit as needed.

ble:
  # Name pattern of the network module to open (case-insensitive).
  # Empty connects to the first module found.
  device: ""
  # Only peripherals whose name contains this text are listed.
  name_filter: MODI
  scan_timeout: 1s
  poll_interval: 10ms

# debug, info, warn, or error
log_level: info
`

// WriteDefault writes the default config file if none exists. It returns
// the path written, or "" when a config file is already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}
	return path, nil
}
