package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pop3d.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Default()
	if cfg.Listen != want.Listen || cfg.Hostname != want.Hostname {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	path := writeConfig(t, "this is not toml = = =")

	if _, err := Load(path); err == nil {
		t.Error("Load of invalid TOML did not error")
	}
}

func TestLoadMergesServerAndPop3d(t *testing.T) {
	path := writeConfig(t, `
[server]
hostname = "shared.example.com"
maildir = "/srv/mail"
authdb = "/srv/auth.db"

[pop3d]
log_level = "debug"
listen = "127.0.0.1:9110"

[pop3d.limits]
max_connections = 7
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hostname != "shared.example.com" {
		t.Errorf("hostname = %q, want shared.example.com", cfg.Hostname)
	}
	if cfg.Maildir != "/srv/mail" {
		t.Errorf("maildir = %q, want /srv/mail", cfg.Maildir)
	}
	if cfg.AuthDB != "/srv/auth.db" {
		t.Errorf("authdb = %q, want /srv/auth.db", cfg.AuthDB)
	}
	if cfg.Listen != "127.0.0.1:9110" {
		t.Errorf("listen = %q, want 127.0.0.1:9110", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Limits.MaxConnections != 7 {
		t.Errorf("max_connections = %d, want 7", cfg.Limits.MaxConnections)
	}
}

func TestPop3dOverridesServer(t *testing.T) {
	path := writeConfig(t, `
[server]
hostname = "shared.example.com"
maildir = "/srv/mail"

[pop3d]
hostname = "pop.example.com"
maildir = "/srv/pop-mail"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Hostname != "pop.example.com" {
		t.Errorf("hostname = %q, want pop.example.com", cfg.Hostname)
	}
	if cfg.Maildir != "/srv/pop-mail" {
		t.Errorf("maildir = %q, want /srv/pop-mail", cfg.Maildir)
	}
}

func TestOverridesApply(t *testing.T) {
	cfg := Default()

	o := Overrides{
		Listen:         "127.0.0.1:2110",
		Maildir:        "/tmp/mail",
		AuthDB:         "/tmp/auth.db",
		LogLevel:       "debug",
		MaxConnections: 3,
	}
	cfg = o.Apply(cfg)

	if cfg.Listen != "127.0.0.1:2110" {
		t.Errorf("listen = %q, want 127.0.0.1:2110", cfg.Listen)
	}
	if cfg.Maildir != "/tmp/mail" {
		t.Errorf("maildir = %q, want /tmp/mail", cfg.Maildir)
	}
	if cfg.AuthDB != "/tmp/auth.db" {
		t.Errorf("authdb = %q, want /tmp/auth.db", cfg.AuthDB)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.Limits.MaxConnections != 3 {
		t.Errorf("max_connections = %d, want 3", cfg.Limits.MaxConnections)
	}

	// Zero-valued overrides leave the config untouched.
	cfg = (&Overrides{}).Apply(cfg)
	if cfg.Listen != "127.0.0.1:2110" {
		t.Errorf("empty override changed listen to %q", cfg.Listen)
	}
}

func TestTimeoutsFromFile(t *testing.T) {
	path := writeConfig(t, `
[pop3d.timeouts]
command = "15s"
idle = "2m"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Timeouts.Command != "15s" {
		t.Errorf("command timeout = %q, want 15s", cfg.Timeouts.Command)
	}
	if cfg.Timeouts.Idle != "2m" {
		t.Errorf("idle timeout = %q, want 2m", cfg.Timeouts.Idle)
	}
}
