package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Services   ServicesConfig   `yaml:"services"`
	Repository RepositoryConfig `yaml:"repository"`
}

// ServerConfig covers the admin surface: health and metrics.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"` // postgres connection string
}

type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	TokenDuration string `yaml:"token_duration"` // e.g. "24h"
}

// ServicesConfig selects which background services this process runs.
// An empty list runs all of them.
type ServicesConfig struct {
	Enabled      []string `yaml:"enabled"`
	PollInterval string   `yaml:"poll_interval"` // e.g. "30s"
}

type RepositoryConfig struct {
	Path string `yaml:"path"` // root under which repositories live
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func (c *Config) TokenDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Auth.TokenDuration)
	if err != nil {
		return 0, fmt.Errorf("auth.token_duration: %w", err)
	}
	return d, nil
}

func (c *Config) PollInterval() (time.Duration, error) {
	d, err := time.ParseDuration(c.Services.PollInterval)
	if err != nil {
		return 0, fmt.Errorf("services.poll_interval: %w", err)
	}
	return d, nil
}

func (c *Config) ValidateServe() error {
	if c == nil {
		return fmt.Errorf("config is required")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn must be configured (example: CRITIC_DB_DSN=postgres://critic@localhost/critic)")
	}
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("CRITIC_JWT_SECRET must be set to a non-default value")
	}
	if len(c.Auth.JWTSecret) < 16 {
		return fmt.Errorf("CRITIC_JWT_SECRET must be at least 16 characters (current length: %d)", len(c.Auth.JWTSecret))
	}
	if _, err := c.TokenDuration(); err != nil {
		return err
	}
	if _, err := c.PollInterval(); err != nil {
		return err
	}
	return nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Auth: AuthConfig{
			JWTSecret:     "change-me-in-production",
			TokenDuration: "24h",
		},
		Services: ServicesConfig{
			PollInterval: "30s",
		},
		Repository: RepositoryConfig{
			Path: "data/repos",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CRITIC_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("CRITIC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CRITIC_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("CRITIC_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("CRITIC_TOKEN_DURATION"); v != "" {
		cfg.Auth.TokenDuration = v
	}
	if v := os.Getenv("CRITIC_SERVICES"); v != "" {
		cfg.Services.Enabled = parseCSV(v)
	}
	if v := os.Getenv("CRITIC_POLL_INTERVAL"); v != "" {
		cfg.Services.PollInterval = v
	}
	if v := os.Getenv("CRITIC_REPOSITORY_PATH"); v != "" {
		cfg.Repository.Path = v
	}
}

func parseCSV(v string) []string {
	raw := strings.TrimSpace(v)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
