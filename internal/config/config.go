package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.codepulse/config.yaml"

// Config holds all codepulse configuration.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Capture   CaptureConfig   `yaml:"capture"`
	API       APIConfig       `yaml:"api"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Logging   LoggingConfig   `yaml:"logging"`
	Plugin    PluginConfig    `yaml:"plugin"`
}

type StorageConfig struct {
	Dir         string `yaml:"dir"`
	SessionFile string `yaml:"session_file"`
	SummaryFile string `yaml:"summary_file"`
	BufferFile  string `yaml:"buffer_file"`
	HistoryFile string `yaml:"history_file"`
}

type SessionConfig struct {
	ThresholdSeconds int `yaml:"threshold_seconds"`
	AverageDays      int `yaml:"average_days"`
}

type CaptureConfig struct {
	ExcludeDirs []string `yaml:"exclude_dirs"`
}

type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryMax       int    `yaml:"retry_max"`
}

// SchedulerConfig holds the reconciliation intervals, in minutes.
type SchedulerConfig struct {
	OnlineRetryMinutes  int  `yaml:"online_retry_minutes"`
	HeartbeatMinutes    int  `yaml:"heartbeat_minutes"`
	FlushMinutes        int  `yaml:"flush_minutes"`
	SessionCheckMinutes int  `yaml:"session_check_minutes"`
	UserStatusMinutes   int  `yaml:"user_status_minutes"`
	LiveshareMinutes    int  `yaml:"liveshare_minutes"`
	WatchSessionFile    bool `yaml:"watch_session_file"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	Console    bool   `yaml:"console"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type PluginConfig struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Product string `yaml:"product"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// A non-positive threshold would fold no gap into the session at all.
	if cfg.Session.ThresholdSeconds <= 0 {
		cfg.Session.ThresholdSeconds = DefaultSessionThresholdSeconds
	}

	return cfg, nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}

// DataDir returns the expanded storage directory.
func (c *Config) DataDir() (string, error) {
	return ExpandPath(c.Storage.Dir)
}

// Resolve joins a storage file name onto the data directory unless it is
// already absolute.
func (c *Config) Resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := c.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// APITimeout is the bound applied to every outbound backend call.
func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Interval converts a minutes setting into a duration, falling back to def
// when the setting is unset.
func Interval(minutes int, def time.Duration) time.Duration {
	if minutes <= 0 {
		return def
	}
	return time.Duration(minutes) * time.Minute
}

// ExcludedDirs returns the built-in excluded directories followed by the
// configured ones.
func (c *Config) ExcludedDirs() []string {
	return append(DefaultExcludedDirs(), c.Capture.ExcludeDirs...)
}
