package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.DSN != "" {
		t.Fatalf("Database.DSN = %q, want empty default", cfg.Database.DSN)
	}
	if cfg.Auth.JWTSecret != "change-me-in-production" {
		t.Fatalf("Auth.JWTSecret = %q, want default", cfg.Auth.JWTSecret)
	}
	if cfg.Services.PollInterval != "30s" {
		t.Fatalf("Services.PollInterval = %q, want %q", cfg.Services.PollInterval, "30s")
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("CRITIC_HOST", "127.0.0.1")
	t.Setenv("CRITIC_PORT", "4000")
	t.Setenv("CRITIC_DB_DSN", "postgres://example")
	t.Setenv("CRITIC_JWT_SECRET", "unit-test-secret-123")
	t.Setenv("CRITIC_TOKEN_DURATION", "12h")
	t.Setenv("CRITIC_SERVICES", "reviewupdater, pubsub")
	t.Setenv("CRITIC_POLL_INTERVAL", "5s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Fatalf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 4000 {
		t.Fatalf("Server.Port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://example" {
		t.Fatalf("Database.DSN = %q, want %q", cfg.Database.DSN, "postgres://example")
	}
	if cfg.Auth.JWTSecret != "unit-test-secret-123" {
		t.Fatalf("Auth.JWTSecret = %q, want override", cfg.Auth.JWTSecret)
	}
	if len(cfg.Services.Enabled) != 2 || cfg.Services.Enabled[0] != "reviewupdater" || cfg.Services.Enabled[1] != "pubsub" {
		t.Fatalf("Services.Enabled = %v, want [reviewupdater pubsub]", cfg.Services.Enabled)
	}
	duration, err := cfg.TokenDuration()
	if err != nil {
		t.Fatalf("TokenDuration: %v", err)
	}
	if duration != 12*time.Hour {
		t.Fatalf("TokenDuration = %v, want 12h", duration)
	}
	interval, err := cfg.PollInterval()
	if err != nil {
		t.Fatalf("PollInterval: %v", err)
	}
	if interval != 5*time.Second {
		t.Fatalf("PollInterval = %v, want 5s", interval)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
server:
  host: 127.0.0.1
  port: 5555
database:
  dsn: postgres://critic@localhost/critic
auth:
  jwt_secret: yaml-secret-123456
  token_duration: 12h
services:
  enabled:
    - branchtracker
    - reviewupdater
  poll_interval: 10s
repository:
  path: /srv/repos
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(path): %v", err)
	}

	if cfg.Server.Port != 5555 {
		t.Fatalf("Server.Port = %d, want 5555", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://critic@localhost/critic" {
		t.Fatalf("Database.DSN = %q", cfg.Database.DSN)
	}
	if cfg.Auth.TokenDuration != "12h" {
		t.Fatalf("Auth.TokenDuration = %q, want %q", cfg.Auth.TokenDuration, "12h")
	}
	if len(cfg.Services.Enabled) != 2 {
		t.Fatalf("Services.Enabled = %v, want 2 entries", cfg.Services.Enabled)
	}
	if cfg.Repository.Path != "/srv/repos" {
		t.Fatalf("Repository.Path = %q, want %q", cfg.Repository.Path, "/srv/repos")
	}
}

func TestValidateServe(t *testing.T) {
	cfg := Default()
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("default config should fail validation")
	}
	cfg.Database.DSN = "postgres://critic@localhost/critic"
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("default jwt secret should fail validation")
	}
	cfg.Auth.JWTSecret = "short"
	if err := cfg.ValidateServe(); err == nil {
		t.Fatal("short jwt secret should fail validation")
	}
	cfg.Auth.JWTSecret = "long-enough-secret-value"
	if err := cfg.ValidateServe(); err != nil {
		t.Fatalf("ValidateServe: %v", err)
	}
}
