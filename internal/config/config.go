// Package config loads the server configuration from YAML.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults/bgserver.yaml
var defaultYAML []byte

// FileName is the configuration file looked up in the search path.
const FileName = "bgserver.yaml"

// Config is the complete server configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Match   MatchConfig   `yaml:"match"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	MaxWorkers      int           `yaml:"max_workers"`
	MaxStreams      int           `yaml:"max_streams"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// MatchConfig holds defaults for new sessions.
type MatchConfig struct {
	DefaultTarget int           `yaml:"default_target"` // 0 = unlimited
	MaxCube       int           `yaml:"max_cube"`
	EventBuffer   int           `yaml:"event_buffer"`
	ActionQueue   int           `yaml:"action_queue"`
	PruneInterval time.Duration `yaml:"prune_interval"` // 0 disables pruning
}

// StorageConfig configures result persistence.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxWorkers:      100,
			MaxStreams:      256,
			ShutdownTimeout: 10 * time.Second,
		},
		Match: MatchConfig{
			DefaultTarget: 5,
			MaxCube:       64,
			EventBuffer:   64,
			ActionQueue:   16,
			PruneInterval: 5 * time.Minute,
		},
		Storage: StorageConfig{
			Enabled: true,
			DBPath:  "~/.bgserver/bgserver.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the configuration.
// Search order: customPath -> ~/.bgserver/bgserver.yaml -> ./configs/bgserver.yaml -> embedded default.
// Values missing from a file keep their defaults. Only a customPath that
// cannot be read or parsed is an error.
func Load(customPath string) (Config, error) {
	if customPath != "" {
		data, err := os.ReadFile(customPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", customPath, err)
		}
		cfg, err := Parse(data)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", customPath, err)
		}
		return cfg, nil
	}

	if path := userConfigPath(); path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if cfg, err := Parse(data); err == nil {
				return cfg, nil
			}
		}
	}

	if data, err := os.ReadFile(filepath.Join("configs", FileName)); err == nil {
		if cfg, err := Parse(data); err == nil {
			return cfg, nil
		}
	}

	cfg, err := Parse(defaultYAML)
	if err != nil {
		return Default(), nil
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	case c.Server.MaxWorkers < 1:
		return fmt.Errorf("server.max_workers must be positive")
	case c.Server.MaxStreams < 1:
		return fmt.Errorf("server.max_streams must be positive")
	case c.Match.DefaultTarget < 0:
		return fmt.Errorf("match.default_target must not be negative")
	case c.Match.MaxCube < 1 || c.Match.MaxCube&(c.Match.MaxCube-1) != 0:
		return fmt.Errorf("match.max_cube %d is not a power of two", c.Match.MaxCube)
	case c.Match.EventBuffer < 1:
		return fmt.Errorf("match.event_buffer must be positive")
	case c.Match.ActionQueue < 1:
		return fmt.Errorf("match.action_queue must be positive")
	case c.Storage.Enabled && c.Storage.DBPath == "":
		return fmt.Errorf("storage.db_path is required when storage is enabled")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Addr returns the listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// userConfigPath returns the path to the user config file, or empty if home is unavailable.
func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".bgserver", FileName)
}
