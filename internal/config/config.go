package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	LogFile    string           `yaml:"log_file"`
	Device     DeviceConfig     `yaml:"device"`
	Connection ConnectionConfig `yaml:"connection"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Permission PermissionConfig `yaml:"permission"`
	Server     ServerConfig     `yaml:"server"`
	UI         UIConfig         `yaml:"ui"`
}

// DeviceConfig describes the simulated focus band.
type DeviceConfig struct {
	Name        string `yaml:"name"`
	ServiceUUID string `yaml:"service_uuid"`
}

// ConnectionConfig holds the simulated connection phase durations.
type ConnectionConfig struct {
	ScanDelay    time.Duration `yaml:"scan_delay"`
	ConnectDelay time.Duration `yaml:"connect_delay"`
}

// MonitorConfig holds focus sampling settings.
type MonitorConfig struct {
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// PermissionConfig controls the simulated permission prompt.
type PermissionConfig struct {
	Grant bool `yaml:"grant"`
}

// ServerConfig holds the snapshot stream server settings.
type ServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// UIConfig toggles the terminal front end.
type UIConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "focusband")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultLogPath is where logs go while the terminal UI owns the screen.
func DefaultLogPath() string {
	return filepath.Join(DefaultConfigDir(), "focusband.log")
}

// Default returns a Config with the reference timings.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Device: DeviceConfig{
			Name:        "Focus Band",
			ServiceUUID: "f0c05000-7a2b-4c1e-9d3f-8e6b1a2c3d4e",
		},
		Connection: ConnectionConfig{
			ScanDelay:    2 * time.Second,
			ConnectDelay: 2 * time.Second,
		},
		Monitor: MonitorConfig{
			SampleInterval: 5 * time.Second,
		},
		Permission: PermissionConfig{
			Grant: true,
		},
		Server: ServerConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8080",
		},
		UI: UIConfig{
			Enabled: true,
		},
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults. Tilde (~) in log_file is expanded to the user's home directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.LogFile = expandTilde(cfg.LogFile)

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	if c.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}
	if _, err := uuid.Parse(c.Device.ServiceUUID); err != nil {
		return fmt.Errorf("device.service_uuid is not a valid UUID: %w", err)
	}

	if c.Connection.ScanDelay <= 0 {
		return fmt.Errorf("connection.scan_delay must be > 0")
	}
	if c.Connection.ConnectDelay <= 0 {
		return fmt.Errorf("connection.connect_delay must be > 0")
	}
	if c.Monitor.SampleInterval <= 0 {
		return fmt.Errorf("monitor.sample_interval must be > 0")
	}

	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty when server.enabled is true")
	}

	if !c.Server.Enabled && !c.UI.Enabled {
		return fmt.Errorf("at least one of ui.enabled or server.enabled must be true")
	}

	return nil
}

// ParseLogLevel maps a config log level to a slog.Level, defaulting to info.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

const defaultHeader = `# focusband configuration
# Durations use Go syntax (e.g. 2s, 500ms).
`

// WriteDefault writes the default config to DefaultConfigPath. It returns
// the written path, or "" with no error when a config file already exists.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if _, err := os.Stat(path); err == nil {
		return "", nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	body, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("encoding default config: %w", err)
	}

	data := append([]byte(defaultHeader), body...)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing config file: %w", err)
	}
	return path, nil
}

// expandTilde replaces a leading ~ with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
