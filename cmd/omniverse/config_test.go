package main

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"OMNIVERSE_ADDR", "OMNIVERSE_LOG_LEVEL", "OMNIVERSE_SAMPLE_DATA", "OMNIVERSE_SYNC_INTERVAL",
	"DATABASE_URL", "REDIS_ADDR", "KAFKA_BROKERS",
	"KALSHI_API_KEY", "KALSHI_USER_ID", "POLYMARKET_API_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadConfigDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := readConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("readConfig() error = %v", err)
	}
	if cfg.Server.Addr != ":8000" {
		t.Errorf("Server.Addr = %q, want :8000", cfg.Server.Addr)
	}
	if cfg.Retry.Attempts != 3 || cfg.Retry.BaseDelay.Duration() != time.Second || cfg.Retry.Timeout.Duration() != 30*time.Second {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	if cfg.kalshiLive() || cfg.polymarketLive() {
		t.Error("providers live without credentials")
	}
}

func TestReadConfigFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
log_level: debug
sync_interval: 1m
server:
  addr: ":9000"
retry:
  attempts: 5
  base_delay: 250ms
kafka:
  brokers: ["localhost:9092"]
`)
	cfg, err := readConfig(path)
	if err != nil {
		t.Fatalf("readConfig() error = %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.LogLevel != "debug" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SyncInterval.Duration() != time.Minute {
		t.Errorf("SyncInterval = %v, want 1m", cfg.SyncInterval)
	}
	if cfg.Retry.Attempts != 5 || cfg.Retry.BaseDelay.Duration() != 250*time.Millisecond {
		t.Errorf("Retry = %+v", cfg.Retry)
	}
	// Unset keys keep their defaults.
	if cfg.Retry.Timeout.Duration() != 30*time.Second || cfg.Kafka.Topic == "" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestReadConfigEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("OMNIVERSE_ADDR", ":7000")
	t.Setenv("KALSHI_API_KEY", "k")
	t.Setenv("POLYMARKET_API_KEY", "p")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092")

	cfg, err := readConfig(writeConfig(t, "server:\n  addr: \":9000\"\n"))
	if err != nil {
		t.Fatalf("readConfig() error = %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Server.Addr = %q, want env value", cfg.Server.Addr)
	}
	if !slices.Equal(cfg.Kafka.Brokers, []string{"a:9092", "b:9092"}) {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	// Kalshi also needs a user id.
	if cfg.kalshiLive() {
		t.Error("kalshiLive() = true without KALSHI_USER_ID")
	}
	if !cfg.polymarketLive() {
		t.Error("polymarketLive() = false")
	}

	t.Setenv("KALSHI_USER_ID", "u")
	cfg, err = readConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.kalshiLive() {
		t.Error("kalshiLive() = false with key and user id")
	}
}

func TestReadConfigMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := readConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "couldn't read file") {
		t.Errorf("readConfig(missing) error = %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config)
		wantErr string
	}{
		{"defaults", func(*config) {}, ""},
		{"bad level", func(c *config) { c.LogLevel = "loud" }, "log_level"},
		{"no addr", func(c *config) { c.Server.Addr = "" }, "server.addr"},
		{"zero attempts", func(c *config) { c.Retry.Attempts = 0 }, "retry.attempts"},
		{"negative interval", func(c *config) { c.SyncInterval = -1 }, "sync_interval"},
		{"db host without user", func(c *config) { c.Database.Host = "db" }, "database.user"},
		{"db url skips fields", func(c *config) { c.Database.URL = "postgres://db/x" }, ""},
		{"brokers without topic", func(c *config) {
			c.Kafka.Brokers = []string{"k:9092"}
			c.Kafka.Topic = ""
		}, "kafka.topic"},
		{"no clob url", func(c *config) { c.Platforms.PolyMarket.ClobURL = "" }, "clob_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("validateConfig() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("validateConfig() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}
