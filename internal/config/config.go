package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all simulation driver settings.
type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error

	// Tick loop
	TickSeconds int `yaml:"tick_seconds"`
	Parallelism int `yaml:"parallelism"` // concurrent per-entity updates
	Entities    int `yaml:"entities"`    // demo population size

	// Optional catalog overlay with deployment-specific effects
	CatalogOverlay string `yaml:"catalog_overlay"`

	// Session stats persistence; disabled when Database.Host is empty
	StatsFlushSeconds int            `yaml:"stats_flush_seconds"`
	Database          DatabaseConfig `yaml:"database"`
}

// TickInterval returns the tick period as a duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// StatsFlushInterval returns the persistence flush period.
func (c *Config) StatsFlushInterval() time.Duration {
	return time.Duration(c.StatsFlushSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

// Enabled reports whether persistence is configured.
func (d DatabaseConfig) Enabled() bool { return d.Host != "" }

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Default returns a config usable without any file on disk.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.TickSeconds <= 0 {
		c.TickSeconds = 60
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 4
	}
	if c.Entities <= 0 {
		c.Entities = 8
	}
	if c.StatsFlushSeconds <= 0 {
		c.StatsFlushSeconds = 600
	}
	if c.Database.Port == 0 {
		c.Database.Port = 5432
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
}
