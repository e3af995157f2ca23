// Package config handles loading application configuration from environment
// variables. All config is centralized here so no other package reads env
// vars directly. Sensible defaults are provided for development.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Config holds all application configuration. Populated from environment
// variables at startup. Passed to other packages via dependency injection.
type Config struct {
	// Env is the runtime environment: "development" or "production".
	Env string

	// Port is the HTTP listen port (default: 8080).
	Port int

	// BaseURL is the public-facing URL of the web client, used for CORS.
	BaseURL string

	// LogLevel controls log verbosity in production: "debug", "info", "warn", "error".
	LogLevel string

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string

	// AutoMigrate applies pending migrations on startup when true.
	AutoMigrate bool

	// Database holds MariaDB connection settings.
	Database DatabaseConfig

	// Redis holds Redis connection settings.
	Redis RedisConfig

	// Auth holds session settings.
	Auth AuthConfig

	// Feed holds the caps and limits used by the activity feed assemblers.
	Feed FeedConfig

	// RateLimit holds the per-user request budget for the activity API.
	RateLimit RateLimitConfig
}

// DatabaseConfig holds MariaDB connection parameters. If DATABASE_URL is
// set, it takes precedence over the individual fields.
type DatabaseConfig struct {
	// Host is the MariaDB address in host:port format (default: "localhost:3306").
	// If no port is specified, 3306 is appended automatically.
	Host string

	User     string
	Password string
	Name     string

	// dsnOverride is set when DATABASE_URL is provided, bypassing individual fields.
	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// defaultDBPassword is only acceptable outside production.
const defaultDBPassword = "novo"

// DSN returns the go-sql-driver/mysql connection string. If DATABASE_URL was
// set, it is returned as-is. Otherwise the DSN is built from the individual
// fields with the driver's Config.FormatDSN() so special characters in
// passwords are escaped.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// Migration files hold several trigger definitions each.
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// ensurePort appends the default port if the host string doesn't include one.
func ensurePort(host, defaultPort string) string {
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379").
	URL string
}

// AuthConfig holds session settings. Sessions are written by the
// authentication service; this process only reads them.
type AuthConfig struct {
	SessionTTL time.Duration
}

// FeedConfig holds the result caps for each activity feed.
type FeedConfig struct {
	// DashboardPerProject is the number of records fetched per project for
	// the dashboard feed.
	DashboardPerProject int

	// ProjectCap, TaskCap and EntityCap bound the single-scope feeds.
	ProjectCap int
	TaskCap    int
	EntityCap  int

	// DefaultLimit is used by the all-activity feed when the client sends
	// no limit. MaxLimit clamps client-supplied limits.
	DefaultLimit int
	MaxLimit     int

	// EnrichConcurrency bounds how many records of one feed are resolved
	// at the same time.
	EnrichConcurrency int
}

// RateLimitConfig holds the fixed-window request budget per user.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
// Returns an error if a value is out of range or a production requirement
// is not met.
func Load() (*Config, error) {
	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        getEnv("BASE_URL", "http://localhost:5173"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		AutoMigrate:    getEnvBool("AUTO_MIGRATE", true),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "novo"),
			Password:        getEnv("DB_PASSWORD", defaultDBPassword),
			Name:            getEnv("DB_NAME", "novo"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},

		Auth: AuthConfig{
			SessionTTL: getEnvDuration("SESSION_TTL", 720*time.Hour),
		},

		Feed: FeedConfig{
			DashboardPerProject: getEnvInt("FEED_DASHBOARD_PER_PROJECT", 5),
			ProjectCap:          getEnvInt("FEED_PROJECT_CAP", 5),
			TaskCap:             getEnvInt("FEED_TASK_CAP", 5),
			EntityCap:           getEnvInt("FEED_ENTITY_CAP", 5),
			DefaultLimit:        getEnvInt("FEED_DEFAULT_LIMIT", 10),
			MaxLimit:            getEnvInt("FEED_MAX_LIMIT", 100),
			EnrichConcurrency:   getEnvInt("FEED_ENRICH_CONCURRENCY", 4),
		},

		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 120),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Feed.validate(); err != nil {
		return nil, err
	}

	if cfg.IsProduction() && cfg.Database.dsnOverride == "" && cfg.Database.Password == defaultDBPassword {
		return nil, fmt.Errorf("DB_PASSWORD must be changed from the default in production")
	}

	return cfg, nil
}

// validate rejects non-positive caps, which would turn every feed empty.
func (f FeedConfig) validate() error {
	checks := []struct {
		name string
		val  int
	}{
		{"FEED_DASHBOARD_PER_PROJECT", f.DashboardPerProject},
		{"FEED_PROJECT_CAP", f.ProjectCap},
		{"FEED_TASK_CAP", f.TaskCap},
		{"FEED_ENTITY_CAP", f.EntityCap},
		{"FEED_DEFAULT_LIMIT", f.DefaultLimit},
		{"FEED_MAX_LIMIT", f.MaxLimit},
		{"FEED_ENRICH_CONCURRENCY", f.EnrichConcurrency},
	}
	for _, c := range checks {
		if c.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", c.name, c.val)
		}
	}
	if f.DefaultLimit > f.MaxLimit {
		return fmt.Errorf("FEED_DEFAULT_LIMIT (%d) exceeds FEED_MAX_LIMIT (%d)", f.DefaultLimit, f.MaxLimit)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction returns true for "production" and "prod", case-insensitive.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// --- Helper functions for reading environment variables ---

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

// getEnvDuration reads a duration env var (e.g., "720h") or returns the default.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
