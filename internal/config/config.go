// Package config loads the governance pipeline configuration from an
// optional YAML file layered under GOVERN_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server   ServerConfig  `koanf:"server"`
	Auth     AuthConfig    `koanf:"auth"`
	Sessions SessionConfig `koanf:"sessions"`
	Limits   LimitsConfig  `koanf:"limits"`
	Cache    CacheConfig   `koanf:"cache"`
	Health   HealthConfig  `koanf:"health"`
	Alerts   AlertsConfig  `koanf:"alerts"`
}

type ServerConfig struct {
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

type AuthConfig struct {
	JWTSecret   string   `koanf:"jwt_secret"`
	PublicPaths []string `koanf:"public_paths"`
}

type SessionConfig struct {
	// Driver selects the session store: "sqlite" or "memory".
	Driver  string        `koanf:"driver"`
	Path    string        `koanf:"path"`
	TTL     time.Duration `koanf:"ttl"`
	Renewal time.Duration `koanf:"renewal"`
	Timeout time.Duration `koanf:"timeout"`
}

type LimitsConfig struct {
	General  ClassConfig   `koanf:"general"`
	Auth     ClassConfig   `koanf:"auth"`
	API      ClassConfig   `koanf:"api"`
	Failures FailureConfig `koanf:"failures"`
}

type ClassConfig struct {
	Max    int           `koanf:"max"`
	Window time.Duration `koanf:"window"`
}

type FailureConfig struct {
	Threshold int           `koanf:"threshold"`
	Window    time.Duration `koanf:"window"`
}

type CacheConfig struct {
	TTL        time.Duration            `koanf:"ttl"`
	MaxEntries int                      `koanf:"max_entries"`
	Sweep      time.Duration            `koanf:"sweep"`
	Routes     map[string]time.Duration `koanf:"routes"`
}

type HealthConfig struct {
	Interval   time.Duration              `koanf:"interval"`
	DiskPath   string                     `koanf:"disk_path"`
	Thresholds map[string]ThresholdConfig `koanf:"thresholds"`
}

type ThresholdConfig struct {
	Warning  float64 `koanf:"warning"`
	Critical float64 `koanf:"critical"`
}

type AlertsConfig struct {
	HistorySize      int           `koanf:"history_size"`
	AutoResolveAfter int           `koanf:"auto_resolve_after"`
	WebhookURL       string        `koanf:"webhook_url"`
	WebhookTimeout   time.Duration `koanf:"webhook_timeout"`
}

// Load reads configuration from path (skipped when empty or absent) and
// then from GOVERN_-prefixed environment variables, with defaults applied
// first. Double underscores separate nesting levels, so
// GOVERN_SERVER__PORT=9090 sets server.port and
// GOVERN_ALERTS__WEBHOOK_URL sets alerts.webhook_url.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	setDefaults(k)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider("GOVERN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "GOVERN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(k *koanf.Koanf) {
	k.Set("server.port", 8080)
	k.Set("server.timeout", "30s")

	k.Set("auth.public_paths", []string{"/healthz", "/auth/login", "/api/v1/public/*"})

	k.Set("sessions.driver", "memory")
	k.Set("sessions.path", "./data/sessions.db")
	k.Set("sessions.ttl", "24h")
	k.Set("sessions.renewal", "30m")
	k.Set("sessions.timeout", "2s")

	k.Set("limits.general.max", 100)
	k.Set("limits.general.window", "1m")
	k.Set("limits.auth.max", 10)
	k.Set("limits.auth.window", "15m")
	k.Set("limits.api.max", 60)
	k.Set("limits.api.window", "1m")
	k.Set("limits.failures.threshold", 5)
	k.Set("limits.failures.window", "15m")

	k.Set("cache.ttl", "5m")
	k.Set("cache.max_entries", 1024)
	k.Set("cache.sweep", "1m")

	k.Set("health.interval", "30s")
	k.Set("health.disk_path", "/")
	k.Set("health.thresholds.memory.warning", 75)
	k.Set("health.thresholds.memory.critical", 90)
	k.Set("health.thresholds.heap.warning", 50)
	k.Set("health.thresholds.heap.critical", 75)
	k.Set("health.thresholds.cpu.warning", 80)
	k.Set("health.thresholds.cpu.critical", 95)
	k.Set("health.thresholds.disk.warning", 85)
	k.Set("health.thresholds.disk.critical", 95)
	// Response time thresholds are milliseconds, not percent.
	k.Set("health.thresholds.response_time.warning", 1000)
	k.Set("health.thresholds.response_time.critical", 3000)
	k.Set("health.thresholds.error_rate.warning", 5)
	k.Set("health.thresholds.error_rate.critical", 10)

	k.Set("alerts.history_size", 100)
	k.Set("alerts.auto_resolve_after", 3)
	k.Set("alerts.webhook_timeout", "5s")
}
