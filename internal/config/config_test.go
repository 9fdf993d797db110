package config

import (
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}

	if cfg.Listen != "127.0.0.1:1110" {
		t.Errorf("default listen = %q, want 127.0.0.1:1110", cfg.Listen)
	}
	if cfg.Timeouts.IdleTimeout() != 10*time.Minute {
		t.Errorf("default idle timeout = %v, want 10m", cfg.Timeouts.IdleTimeout())
	}
	if cfg.Metrics.Enabled {
		t.Error("metrics enabled by default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:   "valid default",
			mutate: func(c *Config) {},
		},
		{
			name:    "missing hostname",
			mutate:  func(c *Config) { c.Hostname = "" },
			wantErr: true,
		},
		{
			name:    "missing listen",
			mutate:  func(c *Config) { c.Listen = "" },
			wantErr: true,
		},
		{
			name:    "missing maildir",
			mutate:  func(c *Config) { c.Maildir = "" },
			wantErr: true,
		},
		{
			name:    "missing authdb",
			mutate:  func(c *Config) { c.AuthDB = "" },
			wantErr: true,
		},
		{
			name:    "zero max connections",
			mutate:  func(c *Config) { c.Limits.MaxConnections = 0 },
			wantErr: true,
		},
		{
			name:    "bad idle timeout",
			mutate:  func(c *Config) { c.Timeouts.Idle = "not-a-duration" },
			wantErr: true,
		},
		{
			name:    "bad command timeout",
			mutate:  func(c *Config) { c.Timeouts.Command = "10 parsecs" },
			wantErr: true,
		},
		{
			name: "metrics enabled without address",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Address = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeoutFallbacks(t *testing.T) {
	var tc TimeoutsConfig

	if got := tc.CommandTimeout(); got != time.Minute {
		t.Errorf("empty CommandTimeout() = %v, want 1m", got)
	}
	if got := tc.IdleTimeout(); got != 10*time.Minute {
		t.Errorf("empty IdleTimeout() = %v, want 10m", got)
	}

	tc = TimeoutsConfig{Command: "30s", Idle: "5m"}
	if got := tc.CommandTimeout(); got != 30*time.Second {
		t.Errorf("CommandTimeout() = %v, want 30s", got)
	}
	if got := tc.IdleTimeout(); got != 5*time.Minute {
		t.Errorf("IdleTimeout() = %v, want 5m", got)
	}
}
