package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Templates  TemplatesConfig  `yaml:"templates"`
	Sync       SyncConfig       `yaml:"sync"`
	Simulation SimulationConfig `yaml:"simulation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "memory" or "postgres"
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

type TemplatesConfig struct {
	Source         string        `yaml:"source"` // "file", "http" or "database"
	Path           string        `yaml:"path"`
	BaseURL        string        `yaml:"base_url"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	CacheSize      int           `yaml:"cache_size"`
	// SeedFile, with the database source, upserts a YAML timetable into the
	// templates table at startup.
	SeedFile string `yaml:"seed_file"`
}

type SyncConfig struct {
	Interval        time.Duration `yaml:"interval"`
	BatchSize       int           `yaml:"batch_size"`
	Timezone        string        `yaml:"timezone"`
	Background      bool          `yaml:"background"`
	PregenerateDays int           `yaml:"pregenerate_days"`
	CycleTimeout    time.Duration `yaml:"cycle_timeout"`
	HistorySize     int           `yaml:"history_size"`
}

type SimulationConfig struct {
	CancelProbability       float64 `yaml:"cancel_probability"`
	DelayProbability        float64 `yaml:"delay_probability"`
	AdverseDelayProbability float64 `yaml:"adverse_delay_probability"`
	// Seed fixes the random source; 0 seeds from the clock.
	Seed int64 `yaml:"seed"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	BurstSize         int           `yaml:"burst_size"`
	ClientTTL         time.Duration `yaml:"client_ttl"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"` // "DEBUG", "INFO", "WARN", "ERROR"
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	// Set defaults
	config.setDefaults()

	// Load from file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) setDefaults() {
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 15 * time.Second
	c.Server.IdleTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 30 * time.Second

	c.Database.Driver = "memory"
	c.Database.Host = "localhost"
	c.Database.Port = 5432
	c.Database.SSLMode = "disable"

	c.Templates.Source = "file"
	c.Templates.Path = "timetable.yaml"
	c.Templates.RequestTimeout = 10 * time.Second
	c.Templates.CacheTTL = 5 * time.Minute
	c.Templates.CacheSize = 1024

	c.Sync.Interval = 60 * time.Second
	c.Sync.BatchSize = 50
	c.Sync.Timezone = "Asia/Hong_Kong"
	c.Sync.Background = true
	c.Sync.PregenerateDays = 1
	c.Sync.CycleTimeout = 2 * time.Minute
	c.Sync.HistorySize = 50

	c.Simulation.CancelProbability = 0.2
	c.Simulation.DelayProbability = 0.1
	c.Simulation.AdverseDelayProbability = 0.4

	c.RateLimit.RequestsPerSecond = 20
	c.RateLimit.BurstSize = 40
	c.RateLimit.ClientTTL = 5 * time.Minute

	c.Logging.Level = "INFO"
	c.Logging.MaxSizeMB = 100
	c.Logging.MaxBackups = 3
	c.Logging.MaxAgeDays = 28
}

func envInt(name string, dst *int) {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envString(name string, dst *string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

func envDuration(name string, dst *time.Duration) {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func (c *Config) loadFromEnv() {
	envInt("PORT", &c.Server.Port)

	envString("DB_DRIVER", &c.Database.Driver)
	envString("DATABASE_URL", &c.Database.URL)
	envString("DB_HOST", &c.Database.Host)
	envInt("DB_PORT", &c.Database.Port)
	envString("DB_USER", &c.Database.User)
	envString("DB_PASSWORD", &c.Database.Password)
	envString("DB_NAME", &c.Database.Name)
	envString("DB_SSLMODE", &c.Database.SSLMode)

	envString("TEMPLATE_SOURCE", &c.Templates.Source)
	envString("TEMPLATES_PATH", &c.Templates.Path)
	envString("TEMPLATES_BASE_URL", &c.Templates.BaseURL)
	envString("TEMPLATES_USERNAME", &c.Templates.Username)
	envString("TEMPLATES_PASSWORD", &c.Templates.Password)

	envDuration("SYNC_INTERVAL", &c.Sync.Interval)
	envString("TIMEZONE", &c.Sync.Timezone)
	if v := os.Getenv("SYNC_BACKGROUND"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Sync.Background = b
		}
	}

	if v := os.Getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Simulation.Seed = n
		}
	}

	if rps := os.Getenv("RATE_LIMIT_RPS"); rps != "" {
		if r, err := strconv.ParseFloat(rps, 64); err == nil {
			c.RateLimit.RequestsPerSecond = r
		}
	}

	envString("LOG_LEVEL", &c.Logging.Level)
	envString("LOG_FILE", &c.Logging.File)
}

func validProbability(p float64) bool {
	return p >= 0 && p <= 1
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return fmt.Errorf("postgres needs database url or host and name")
		}
	default:
		return fmt.Errorf("database driver must be 'memory' or 'postgres'")
	}

	switch c.Templates.Source {
	case "file":
		if c.Templates.Path == "" {
			return fmt.Errorf("templates path cannot be empty for the file source")
		}
	case "http":
		if c.Templates.BaseURL == "" {
			return fmt.Errorf("templates base URL cannot be empty for the http source")
		}
	case "database":
		if c.Database.Driver != "postgres" {
			return fmt.Errorf("database template source requires the postgres driver")
		}
	default:
		return fmt.Errorf("templates source must be 'file', 'http' or 'database'")
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}
	if c.Sync.BatchSize < 1 {
		return fmt.Errorf("sync batch size must be at least 1")
	}
	if c.Sync.PregenerateDays < 0 {
		return fmt.Errorf("pregenerate days cannot be negative")
	}
	if _, err := time.LoadLocation(c.Sync.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q: %w", c.Sync.Timezone, err)
	}

	if !validProbability(c.Simulation.CancelProbability) ||
		!validProbability(c.Simulation.DelayProbability) ||
		!validProbability(c.Simulation.AdverseDelayProbability) {
		return fmt.Errorf("simulation probabilities must be between 0 and 1")
	}

	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests per second must be positive")
	}
	if c.RateLimit.BurstSize < 1 {
		return fmt.Errorf("burst size must be at least 1")
	}

	switch strings.ToUpper(c.Logging.Level) {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log level must be 'DEBUG', 'INFO', 'WARN' or 'ERROR'")
	}

	return nil
}

// Location returns the configured service time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Sync.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
