// Package config loads taskdeck configuration: the backend base URL,
// request timeout and the session identity. Identity is explicit
// configuration here rather than an ambient global lookup.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// ConfigDir is the per-user configuration directory under $HOME.
	ConfigDir = ".taskdeck"
	// ConfigFileName is the config file name inside ConfigDir.
	ConfigFileName = "config.yaml"
	// EnvPrefix prefixes environment overrides (TASKDECK_BACKEND_URL, ...).
	EnvPrefix = "TASKDECK"
)

// Identity is the session user on whose behalf the engine acts.
type Identity struct {
	UserID   string `yaml:"user_id" mapstructure:"user_id"`
	UserName string `yaml:"user_name" mapstructure:"user_name"`
}

// Config is the resolved taskdeck configuration.
type Config struct {
	// BackendURL is the base URL of the backend collaborator.
	BackendURL string `yaml:"backend_url" mapstructure:"backend_url"`
	// Timeout bounds each backend request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
	// Identity is the current session user.
	Identity Identity `yaml:"identity" mapstructure:"identity"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		BackendURL: "http://localhost:3000",
		Timeout:    30 * time.Second,
	}
}

// Path returns the user config file path.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ConfigDir, ConfigFileName), nil
}

// Load resolves configuration. Order (later overrides earlier):
//
//  1. Built-in defaults
//  2. User config (~/.taskdeck/config.yaml) - optional
//  3. Environment variables (TASKDECK_*)
func Load() (*Config, error) {
	v := viper.New()
	def := Default()
	v.SetDefault("backend_url", def.BackendURL)
	v.SetDefault("timeout", def.Timeout)
	v.SetDefault("identity.user_id", "")
	v.SetDefault("identity.user_name", "")

	if path, err := Path(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				slog.Warn("failed to load user config", "path", path, "error", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.MustBindEnv("backend_url")
	v.MustBindEnv("timeout")
	v.MustBindEnv("identity.user_id", EnvPrefix+"_USER_ID")
	v.MustBindEnv("identity.user_name", EnvPrefix+"_USER_NAME")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &cfg, nil
}

// Save writes the config to the user config file, creating the
// directory as needed.
func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
