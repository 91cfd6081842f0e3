package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Paths    PathsConfig    `yaml:"paths"`
	Transfer TransferConfig `yaml:"transfer"`
	Hooks    HooksConfig    `yaml:"hooks"`
}

// ServerConfig holds connection settings for the file server.
type ServerConfig struct {
	BaseURL string `yaml:"base_url"`
	// ReconnectDelay is the pause before reopening a dropped event stream.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	// AdminRedirectDelay is how long the admin screen stays visible
	// after losing the admin role.
	AdminRedirectDelay time.Duration `yaml:"admin_redirect_delay"`
}

// PathsConfig holds filesystem paths for local data.
type PathsConfig struct {
	Downloads string `yaml:"downloads"`
	DropDir   string `yaml:"drop_dir"`
	Data      string `yaml:"data"`
	Database  string `yaml:"database"`
}

// TransferConfig holds upload limits and filters.
type TransferConfig struct {
	MaxUploadSize     int64    `yaml:"max_upload_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	// SettleDelay is how long a dropped file must stay quiet before
	// the drop-folder uploader sends it.
	SettleDelay time.Duration `yaml:"settle_delay"`
}

// HooksConfig holds the optional Lua event hook script.
type HooksConfig struct {
	Script string `yaml:"script"`
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:            "http://localhost:5000",
			ReconnectDelay:     5 * time.Second,
			AdminRedirectDelay: 2500 * time.Millisecond,
		},
		Paths: PathsConfig{
			Downloads: "./downloads",
			DropDir:   "./drop",
			Data:      "./data",
			Database:  "./data/shareterm.db",
		},
		Transfer: TransferConfig{
			MaxUploadSize: 16 << 20,
			SettleDelay:   2 * time.Second,
		},
	}
}
