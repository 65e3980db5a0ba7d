package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Limits.Auth.Max >= cfg.Limits.General.Max {
		t.Error("auth limiter should be stricter than general")
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.Health.Interval != 30*time.Second {
		t.Errorf("health interval = %v, want 30s", cfg.Health.Interval)
	}
	if got := cfg.Health.Thresholds["memory"]; got.Warning != 75 || got.Critical != 90 {
		t.Errorf("memory thresholds = %+v", got)
	}
	if cfg.Alerts.WebhookURL != "" {
		t.Error("webhook should be disabled by default")
	}
	if cfg.Sessions.Driver != "memory" {
		t.Errorf("session driver = %q, want memory", cfg.Sessions.Driver)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOVERN_SERVER__PORT", "9090")
	t.Setenv("GOVERN_SESSIONS__DRIVER", "sqlite")
	t.Setenv("GOVERN_ALERTS__WEBHOOK_URL", "https://hooks.example.com/notify")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sessions.Driver != "sqlite" {
		t.Errorf("driver = %q, want sqlite", cfg.Sessions.Driver)
	}
	if cfg.Alerts.WebhookURL != "https://hooks.example.com/notify" {
		t.Errorf("webhook url = %q", cfg.Alerts.WebhookURL)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "governance.yaml")
	yaml := `
server:
  port: 7070
limits:
  auth:
    max: 5
    window: 10m
cache:
  routes:
    /api/v1/bookings: 30s
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Limits.Auth.Max != 5 || cfg.Limits.Auth.Window != 10*time.Minute {
		t.Errorf("auth limits = %+v", cfg.Limits.Auth)
	}
	if got := cfg.Cache.Routes["/api/v1/bookings"]; got != 30*time.Second {
		t.Errorf("route ttl = %v, want 30s", got)
	}
	// Untouched sections keep their defaults.
	if cfg.Limits.General.Max != 100 {
		t.Errorf("general max = %d, want default 100", cfg.Limits.General.Max)
	}
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default", cfg.Server.Port)
	}
}
