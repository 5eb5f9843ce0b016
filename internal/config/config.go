// Package config loads the YAML app config. This is the wiring-level config
// (paths, logging, client selection); user-facing preferences live in the
// store's settings file and are editable from the app.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir    string    `yaml:"data_dir"`
	LogFile    string    `yaml:"log_file"`
	Log        LogConfig `yaml:"log"`
	TUI        TUIConfig `yaml:"tui"`
	MockClient bool      `yaml:"mock_client"`
	MockViewer string    `yaml:"mock_viewer"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type TUIConfig struct {
	RefreshInterval time.Duration `yaml:"-"`
	RawInterval     string        `yaml:"refresh_interval"`
}

// Load reads the config file at path. A missing file yields the defaults; an
// unreadable or invalid one is an error.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.setDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) setDefaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, ".prpulse")
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "logs", "prpulse.log")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.TUI.RawInterval == "" {
		c.TUI.RawInterval = "2s"
	}
	interval, err := time.ParseDuration(c.TUI.RawInterval)
	if err != nil {
		return fmt.Errorf("parse tui.refresh_interval %q: %w", c.TUI.RawInterval, err)
	}
	if interval <= 0 {
		return fmt.Errorf("tui.refresh_interval must be positive, got %s", c.TUI.RawInterval)
	}
	c.TUI.RefreshInterval = interval

	return nil
}

func (c *Config) validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.Log),
	)
}

// Validate lets LogConfig participate in the struct validation above.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.Required,
			validation.In("debug", "info", "warn", "error")),
	)
}
