package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var (
	ErrMissingSanityProject = errors.New("SANITY_PROJECT_ID is required")
	ErrMissingSanityDataset = errors.New("SANITY_DATASET is required")
)

// Config holds application configuration. Database and Redis are optional;
// without them snapshots and caching are disabled.
type Config struct {
	ArenaAccessToken string  `yaml:"arena_access_token" env:"ARENA_ACCESS_TOKEN"`
	ArenaBaseURL     string  `yaml:"arena_base_url" env:"ARENA_BASE_URL" envDefault:"https://api.are.na/v2"`
	ArenaRateLimit   float64 `yaml:"arena_rate_limit" env:"ARENA_RATE_LIMIT" envDefault:"0"`

	SanityProjectID  string `yaml:"sanity_project_id" env:"SANITY_PROJECT_ID" envDefault:"p9yhyed1"`
	SanityDataset    string `yaml:"sanity_dataset" env:"SANITY_DATASET" envDefault:"production"`
	SanityAPIVersion string `yaml:"sanity_api_version" env:"SANITY_API_VERSION" envDefault:"2024-01-01"`
	SanityUseCDN     bool   `yaml:"sanity_use_cdn" env:"SANITY_USE_CDN" envDefault:"true"`

	ServerPort string        `yaml:"server_port" env:"SERVER_PORT" envDefault:"8080"`
	UserAgent  string        `yaml:"user_agent" env:"FETCHER_USER_AGENT" envDefault:"Folio/1.0"`
	Timeout    time.Duration `yaml:"timeout" env:"FETCHER_TIMEOUT" envDefault:"30s"`

	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	RedisURL    string `yaml:"redis_url" env:"REDIS_URL"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL" envDefault:"info"`

	VoyageAPIKey string `yaml:"voyage_api_key" env:"VOYAGE_API_KEY"`
	VoyageModel  string `yaml:"voyage_model" env:"VOYAGE_MODEL" envDefault:"voyage-3-lite"`
}

// Load builds config from environment variables, after loading .env.local
// and .env from the working directory and the executable's directory.
// Variables already set in the environment win.
func Load() (*Config, error) {
	loadEnvFiles()
	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFromFile loads config from a YAML file. Keys missing from the file
// keep their defaults; the environment is not consulted.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := &Config{}
	if err := env.ParseWithOptions(c, env.Options{Environment: map[string]string{}}); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	if c.SanityProjectID == "" {
		return ErrMissingSanityProject
	}
	if c.SanityDataset == "" {
		return ErrMissingSanityDataset
	}
	if c.ArenaRateLimit < 0 {
		return fmt.Errorf("ARENA_RATE_LIMIT must not be negative, got %v", c.ArenaRateLimit)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SnapshotsEnabled reports whether a database is configured.
func (c *Config) SnapshotsEnabled() bool {
	return c.DatabaseURL != ""
}

// SearchEnabled reports whether snapshots are indexed for semantic search.
func (c *Config) SearchEnabled() bool {
	return c.SnapshotsEnabled() && c.VoyageAPIKey != ""
}

// CacheEnabled reports whether Redis is configured.
func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

func loadEnvFiles() {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		if dir := filepath.Dir(exe); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range dirs {
		for _, name := range []string{".env.local", ".env"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err != nil {
				continue
			}
			// godotenv.Load never overrides variables that are already set.
			_ = godotenv.Load(path)
		}
	}
}
