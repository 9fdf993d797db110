package config

import (
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Load parses a TOML configuration file and returns the Config.
// If the file does not exist, returns the default configuration.
// The loader reads from both [server] (shared settings) and [pop3d]
// (specific settings), with [pop3d] values taking precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig FileConfig
	if err := toml.Unmarshal(data, &fileConfig); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	// First merge shared server config into defaults
	cfg = mergeServerConfig(cfg, fileConfig.Server)

	// Then merge pop3d-specific config (takes precedence)
	cfg = mergeConfig(cfg, fileConfig.Pop3d)

	return cfg, nil
}

// Overrides holds values that override the configuration file, typically
// sourced from command-line flags.
type Overrides struct {
	Hostname       string
	LogLevel       string
	Listen         string
	Maildir        string
	AuthDB         string
	MaxConnections int
}

// Apply merges non-zero override values into the config.
func (o *Overrides) Apply(cfg Config) Config {
	if o.Hostname != "" {
		cfg.Hostname = o.Hostname
	}

	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}

	if o.Listen != "" {
		cfg.Listen = o.Listen
	}

	if o.Maildir != "" {
		cfg.Maildir = o.Maildir
	}

	if o.AuthDB != "" {
		cfg.AuthDB = o.AuthDB
	}

	if o.MaxConnections > 0 {
		cfg.Limits.MaxConnections = o.MaxConnections
	}

	return cfg
}

// mergeServerConfig merges shared server settings into the config.
func mergeServerConfig(dst Config, src ServerConfig) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.Maildir != "" {
		dst.Maildir = src.Maildir
	}

	if src.AuthDB != "" {
		dst.AuthDB = src.AuthDB
	}

	return dst
}

// mergeConfig merges non-zero values from src into dst.
func mergeConfig(dst, src Config) Config {
	if src.Hostname != "" {
		dst.Hostname = src.Hostname
	}

	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}

	if src.Listen != "" {
		dst.Listen = src.Listen
	}

	if src.Maildir != "" {
		dst.Maildir = src.Maildir
	}

	if src.AuthDB != "" {
		dst.AuthDB = src.AuthDB
	}

	if src.Timeouts.Command != "" {
		dst.Timeouts.Command = src.Timeouts.Command
	}

	if src.Timeouts.Idle != "" {
		dst.Timeouts.Idle = src.Timeouts.Idle
	}

	if src.Limits.MaxConnections > 0 {
		dst.Limits.MaxConnections = src.Limits.MaxConnections
	}

	if src.Metrics.Enabled {
		dst.Metrics.Enabled = src.Metrics.Enabled
	}

	if src.Metrics.Address != "" {
		dst.Metrics.Address = src.Metrics.Address
	}

	if src.Metrics.Path != "" {
		dst.Metrics.Path = src.Metrics.Path
	}

	return dst
}
