// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment constants
const (
	EnvProduction = "production"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	Discovery DiscoveryConfig
	Rules     RulesConfig
	Metrics   MetricsConfig
	Tracing   TracingConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name  string
	Env   string
	Debug bool
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Enabled         bool
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for the discovery result cache.
type RedisConfig struct {
	Enabled      bool
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	ResultTTL    time.Duration
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string
	Format string
}

// DiscoveryConfig holds discovery scheduler configuration.
type DiscoveryConfig struct {
	// Interval is the default fixed-rate interval between ticks of one
	// scan.
	Interval time.Duration
	// MaxConcurrentScans bounds how many scan ticks may run at once.
	MaxConcurrentScans int
	// TickRatePerSecond smooths tick bursts when many scans are enabled
	// at the same time (first executions are immediate).
	TickRatePerSecond float64
	// SubscriberBacklog bounds undelivered results per subscriber.
	SubscriberBacklog int
	// AssetsDir optionally points at a directory of static asset
	// documents served by file-backed scanners. Empty disables them.
	AssetsDir string
}

// RulesConfig holds rule-pack loading configuration.
type RulesConfig struct {
	// Dir is a local directory of YAML rule packs.
	Dir string
	// GitURL optionally points at a git repository of rule packs.
	GitURL    string
	GitBranch string
	GitPath   string
	GitToken  string
}

// MetricsConfig holds the metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool
	Addr    string
}

// TracingConfig holds OpenTelemetry tracing configuration.
type TracingConfig struct {
	Enabled  bool
	Endpoint string
	Insecure bool
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name:  getEnv("APP_NAME", "cloudassure-engine"),
			Env:   getEnv("APP_ENV", "development"),
			Debug: getEnvBool("APP_DEBUG", false),
		},
		Database: DatabaseConfig{
			Enabled:         getEnvBool("DB_ENABLED", false),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "cloudassure"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "cloudassure"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			ResultTTL:    getEnvDuration("REDIS_RESULT_TTL", time.Hour),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Discovery: DiscoveryConfig{
			Interval:           getEnvDuration("DISCOVERY_INTERVAL", 300*time.Second),
			MaxConcurrentScans: getEnvInt("DISCOVERY_MAX_CONCURRENT_SCANS", 10),
			TickRatePerSecond:  getEnvFloat("DISCOVERY_TICK_RATE_PER_SECOND", 5),
			SubscriberBacklog:  getEnvInt("DISCOVERY_SUBSCRIBER_BACKLOG", 16),
			AssetsDir:          getEnv("DISCOVERY_ASSETS_DIR", ""),
		},
		Rules: RulesConfig{
			Dir:       getEnv("RULES_DIR", "rules"),
			GitURL:    getEnv("RULES_GIT_URL", ""),
			GitBranch: getEnv("RULES_GIT_BRANCH", "main"),
			GitPath:   getEnv("RULES_GIT_PATH", ""),
			GitToken:  getEnv("RULES_GIT_TOKEN", ""),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Addr:    getEnv("METRICS_ADDR", ":9090"),
		},
		Tracing: TracingConfig{
			Enabled:  getEnvBool("TRACING_ENABLED", false),
			Endpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
			Insecure: getEnvBool("TRACING_INSECURE", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.Log.Level)
	}
	if c.Discovery.Interval <= 0 {
		return fmt.Errorf("DISCOVERY_INTERVAL must be positive")
	}
	if c.Discovery.MaxConcurrentScans < 1 {
		return fmt.Errorf("DISCOVERY_MAX_CONCURRENT_SCANS must be at least 1")
	}
	if c.App.Env == EnvProduction {
		if c.Database.Enabled && c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required in production")
		}
	}
	return nil
}

// DSN returns the postgres connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// Addr returns the redis address.
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction checks if the app is running in production.
func (c *Config) IsProduction() bool {
	return c.App.Env == EnvProduction
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
