// Package config loads and persists the hotword daemon configuration.
// It is read from ~/.hotword/config.yaml and can be overridden by
// environment variables with the HOTWORD_ prefix.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/normanking/hotword/internal/logging"
	"github.com/normanking/hotword/pkg/wake"
)

// Config holds all daemon configuration.
type Config struct {
	Detector DetectorConfig `mapstructure:"detector" yaml:"detector"`
	Engine   EngineConfig   `mapstructure:"engine" yaml:"engine"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Prefs    PrefsConfig    `mapstructure:"prefs" yaml:"prefs"`
	Logging  logging.Config `mapstructure:"logging" yaml:"logging"`
}

// DetectorConfig contains the wake-detection settings.
type DetectorConfig struct {
	// Enabled is the initial enablement of wake detection.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Phrases are the wake phrases to listen for.
	Phrases []string `mapstructure:"phrases" yaml:"phrases"`

	// MaxDistance is the edit-distance tolerance for a match.
	MaxDistance int `mapstructure:"max_distance" yaml:"max_distance"`

	// Cooldown is the quiet period after a trigger (e.g. "4s").
	Cooldown time.Duration `mapstructure:"cooldown" yaml:"cooldown"`

	// MinInterval is the minimum spacing between two triggers.
	MinInterval time.Duration `mapstructure:"min_interval" yaml:"min_interval"`

	// WatchdogInterval is the liveness check period. Zero disables it.
	WatchdogInterval time.Duration `mapstructure:"watchdog_interval" yaml:"watchdog_interval"`

	// RequireInteraction holds listening until the host app reports a
	// user interaction, unless a prior permission grant is on record.
	RequireInteraction bool `mapstructure:"require_interaction" yaml:"require_interaction"`

	// AutoStart attempts a first listen as soon as the daemon is up.
	AutoStart bool `mapstructure:"auto_start" yaml:"auto_start"`

	// Environment describes the host environment for the capability
	// probe, e.g. a user-agent string from an embedding web view.
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// EngineConfig contains the speech-service connection settings.
type EngineConfig struct {
	// URL is the WebSocket endpoint of the local speech service.
	URL string `mapstructure:"url" yaml:"url"`

	// ConnectTimeout bounds the WebSocket handshake.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`

	// PingInterval is the keepalive period. Zero disables pings.
	PingInterval time.Duration `mapstructure:"ping_interval" yaml:"ping_interval"`

	// Language is the recognition language tag.
	Language string `mapstructure:"language" yaml:"language"`
}

// ServerConfig contains the control API settings.
type ServerConfig struct {
	// Addr is the listen address of the loopback control API.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// JournalConfig contains the trigger journal settings.
type JournalConfig struct {
	// Path is the SQLite database file for the trigger journal.
	Path string `mapstructure:"path" yaml:"path"`

	// Retain is how many journal entries to keep. Zero keeps all.
	Retain int `mapstructure:"retain" yaml:"retain"`
}

// PrefsConfig contains the preference store settings.
type PrefsConfig struct {
	// Path is the YAML file backing persisted preferences.
	Path string `mapstructure:"path" yaml:"path"`
}

// Default returns a Config with production default values.
func Default() *Config {
	dataDir := DataDir()

	return &Config{
		Detector: DetectorConfig{
			Enabled:            true,
			Phrases:            []string{"hey jacq"},
			MaxDistance:        2,
			Cooldown:           4 * time.Second,
			MinInterval:        2 * time.Second,
			WatchdogInterval:   7 * time.Second,
			RequireInteraction: true,
			AutoStart:          true,
			Environment:        "desktop chromium",
		},
		Engine: EngineConfig{
			URL:            "ws://127.0.0.1:8765/v1/recognize",
			ConnectTimeout: 5 * time.Second,
			PingInterval:   20 * time.Second,
			Language:       "en-US",
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8390",
		},
		Journal: JournalConfig{
			Path:   filepath.Join(dataDir, "journal.db"),
			Retain: 500,
		},
		Prefs: PrefsConfig{
			Path: filepath.Join(dataDir, "prefs.yaml"),
		},
		Logging: logging.DefaultConfig(),
	}
}

// ToWakeConfig converts the detector settings into a wake.Config. The
// caller fills in the prefs store, callbacks, and logger.
func (c DetectorConfig) ToWakeConfig() wake.Config {
	cfg := wake.DefaultConfig()
	cfg.Enabled = c.Enabled
	cfg.Phrases = c.Phrases
	cfg.MaxDistance = c.MaxDistance
	cfg.Cooldown = c.Cooldown
	cfg.MinInterval = c.MinInterval
	cfg.WatchdogInterval = c.WatchdogInterval
	cfg.RequireInteraction = c.RequireInteraction
	cfg.AutoStart = c.AutoStart
	cfg.Environment = c.Environment
	return cfg
}

// ToEngineConfig converts the engine settings into a wake.SpeechEngineConfig.
// The caller sets the strategy from the capability probe.
func (c EngineConfig) ToEngineConfig() wake.SpeechEngineConfig {
	return wake.SpeechEngineConfig{
		URL:            c.URL,
		ConnectTimeout: c.ConnectTimeout,
		PingInterval:   c.PingInterval,
		Language:       c.Language,
	}
}

// Load reads configuration from the default location (~/.hotword/config.yaml)
// and merges environment variables. A missing file is created with defaults.
func Load() (*Config, error) {
	return LoadFromPath(DefaultPath())
}

// LoadFromPath reads configuration from a specific file and merges
// environment variables. A missing file is created with defaults.
func LoadFromPath(path string) (*Config, error) {
	path = expandPath(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("config: create directory: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeConfigFile(path, Default()); err != nil {
			return nil, fmt.Errorf("config: write defaults: %w", err)
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Example override: HOTWORD_DETECTOR_ENABLED=false
	v.SetEnvPrefix("HOTWORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Journal.Path = expandPath(cfg.Journal.Path)
	cfg.Prefs.Path = expandPath(cfg.Prefs.Path)
	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills blank fields so a hand-trimmed config file still
// yields a runnable daemon.
func (c *Config) applyDefaults() {
	defaults := Default()

	if len(c.Detector.Phrases) == 0 {
		c.Detector.Phrases = defaults.Detector.Phrases
	}
	if c.Detector.Environment == "" {
		c.Detector.Environment = defaults.Detector.Environment
	}
	if c.Engine.URL == "" {
		c.Engine.URL = defaults.Engine.URL
	}
	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if c.Journal.Path == "" {
		c.Journal.Path = defaults.Journal.Path
	}
	if c.Prefs.Path == "" {
		c.Prefs.Path = defaults.Prefs.Path
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}
}

// Save writes the configuration to the default config file location.
func (c *Config) Save() error {
	return c.SaveToPath(DefaultPath())
}

// SaveToPath writes the configuration to a specific file path.
func (c *Config) SaveToPath(path string) error {
	path = expandPath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}
	return writeConfigFile(path, c)
}

// DataDir returns the daemon data directory (~/.hotword).
func DataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".hotword")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(DataDir(), "config.yaml")
}

// EnsureDirectories creates the directories the daemon writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		filepath.Dir(c.Journal.Path),
		filepath.Dir(c.Prefs.Path),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Validate checks the configuration for common errors.
func (c *Config) Validate() error {
	hasPhrase := false
	for _, p := range c.Detector.Phrases {
		if strings.TrimSpace(p) != "" {
			hasPhrase = true
			break
		}
	}
	if !hasPhrase {
		return fmt.Errorf("detector.phrases must contain at least one phrase")
	}
	if c.Detector.MaxDistance < 0 {
		return fmt.Errorf("detector.max_distance cannot be negative")
	}
	if c.Detector.Cooldown <= 0 {
		return fmt.Errorf("detector.cooldown must be positive")
	}

	if !strings.HasPrefix(c.Engine.URL, "ws://") && !strings.HasPrefix(c.Engine.URL, "wss://") {
		return fmt.Errorf("engine.url must be a ws:// or wss:// endpoint, got %q", c.Engine.URL)
	}

	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}

	if c.Journal.Retain < 0 {
		return fmt.Errorf("journal.retain cannot be negative")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level %q, must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.Format != "console" && c.Logging.Format != "json" {
		return fmt.Errorf("invalid log format %q, must be 'console' or 'json'", c.Logging.Format)
	}

	return nil
}

// writeConfigFile writes a Config to a YAML file using the yaml struct tags.
func writeConfigFile(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("config: write file: %w", err)
	}
	return nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
