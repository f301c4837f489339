// Package config loads the ptyhost service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/ptyhost/ptyhost/internal/pty"
)

// Config holds service configuration.
//
// Configuration is layered: defaults → YAML file → environment variables.
// Command-line flags are applied on top by the CLI.
type Config struct {
	Addr           string // HTTP listen address
	DBPath         string // SQLite database file
	LogDir         string // Directory for asciicast recordings
	MaxSessions    int    // Concurrently running sessions
	DefaultShell   string // Program for `run` without arguments
	HelperPath     string // Optional pre-exec helper
	Cols           int    // Default window size
	Rows           int
	LogLevel       string        // logrus level name
	LogFormat      string        // text or json
	RingBufferSize int           // History bytes kept per session
	DrainTimeout   time.Duration // Output drain wait after exit
}

// yamlConfig is the YAML file structure.
type yamlConfig struct {
	Addr           string `yaml:"addr"`
	DBPath         string `yaml:"db_path"`
	LogDir         string `yaml:"log_dir"`
	MaxSessions    int    `yaml:"max_sessions"`
	DefaultShell   string `yaml:"default_shell"`
	HelperPath     string `yaml:"helper_path"`
	Cols           int    `yaml:"cols"`
	Rows           int    `yaml:"rows"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"`
	RingBufferSize int    `yaml:"ring_buffer_size"`
	DrainTimeout   string `yaml:"drain_timeout"`
}

// DefaultConfigFile is read when no path is given and it exists.
const DefaultConfigFile = "ptyhost.yaml"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:           ":8080",
		DBPath:         "data/sessions.db",
		LogDir:         "data/logs",
		MaxSessions:    10,
		DefaultShell:   defaultShell(),
		Cols:           pty.DefaultCols,
		Rows:           pty.DefaultRows,
		LogLevel:       "info",
		LogFormat:      "text",
		RingBufferSize: 64 * 1024,
		DrainTimeout:   pty.DefaultDrainTimeout,
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// the environment. An empty path falls back to $PTYHOST_CONFIG_FILE, then
// DefaultConfigFile if present.
//
// Environment variable overrides:
//   - PORT → Addr (":PORT"), PTYHOST_ADDR → Addr
//   - DB_PATH, LOG_DIR
//   - PTYHOST_MAX_SESSIONS, PTYHOST_SHELL, PTYHOST_HELPER
//   - PTYHOST_COLS, PTYHOST_ROWS
//   - PTYHOST_LOG_LEVEL, PTYHOST_LOG_FORMAT
//   - PTYHOST_RING_BUFFER_SIZE, PTYHOST_DRAIN_TIMEOUT
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("PTYHOST_CONFIG_FILE")
	}
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := cfg.loadYAML(path, explicit); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) loadYAML(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	setString(&cfg.Addr, yc.Addr)
	setString(&cfg.DBPath, yc.DBPath)
	setString(&cfg.LogDir, yc.LogDir)
	setString(&cfg.DefaultShell, yc.DefaultShell)
	setString(&cfg.HelperPath, yc.HelperPath)
	setString(&cfg.LogLevel, yc.LogLevel)
	setString(&cfg.LogFormat, yc.LogFormat)
	setInt(&cfg.MaxSessions, yc.MaxSessions)
	setInt(&cfg.Cols, yc.Cols)
	setInt(&cfg.Rows, yc.Rows)
	setInt(&cfg.RingBufferSize, yc.RingBufferSize)
	if yc.DrainTimeout != "" {
		d, err := time.ParseDuration(yc.DrainTimeout)
		if err != nil {
			return fmt.Errorf("invalid drain_timeout in %s: %w", path, err)
		}
		cfg.DrainTimeout = d
	}
	return nil
}

func (cfg *Config) applyEnvOverrides() error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	cfg.Addr = getEnv("PTYHOST_ADDR", cfg.Addr)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.LogDir = getEnv("LOG_DIR", cfg.LogDir)
	cfg.DefaultShell = getEnv("PTYHOST_SHELL", cfg.DefaultShell)
	cfg.HelperPath = getEnv("PTYHOST_HELPER", cfg.HelperPath)
	cfg.LogLevel = getEnv("PTYHOST_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("PTYHOST_LOG_FORMAT", cfg.LogFormat)

	ints := []struct {
		key string
		dst *int
	}{
		{"PTYHOST_MAX_SESSIONS", &cfg.MaxSessions},
		{"PTYHOST_COLS", &cfg.Cols},
		{"PTYHOST_ROWS", &cfg.Rows},
		{"PTYHOST_RING_BUFFER_SIZE", &cfg.RingBufferSize},
	}
	for _, e := range ints {
		if v := os.Getenv(e.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", e.key, err)
			}
			*e.dst = n
		}
	}

	if v := os.Getenv("PTYHOST_DRAIN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PTYHOST_DRAIN_TIMEOUT: %w", err)
		}
		cfg.DrainTimeout = d
	}
	return nil
}

// Validate rejects configurations the service cannot run with.
func (cfg *Config) Validate() error {
	if cfg.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive, got %d", cfg.MaxSessions)
	}
	if cfg.Cols <= 0 || cfg.Rows <= 0 || cfg.Cols > 0xffff || cfg.Rows > 0xffff {
		return fmt.Errorf("window size must be between 1 and 65535, got %dx%d", cfg.Cols, cfg.Rows)
	}
	if cfg.RingBufferSize <= 0 {
		return fmt.Errorf("ring buffer size must be positive, got %d", cfg.RingBufferSize)
	}
	if cfg.DrainTimeout < 0 {
		return fmt.Errorf("drain timeout must not be negative, got %s", cfg.DrainTimeout)
	}
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("log format must be text or json, got %q", cfg.LogFormat)
	}
	return nil
}

// ConfigureLogging applies the level and format to the standard logrus logger.
func (cfg *Config) ConfigureLogging() error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
