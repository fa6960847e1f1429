package config

import (
	"errors"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	AppEnv  string
	Port    string

	// Database (optional driver switch via ENV, default: sqlite)
	DBDriver     string
	DBConnection string

	// Security
	JWTSecret string
	JWTExpiry time.Duration

	// Email
	EmailFrom    string
	ResendAPIKey string

	// Observability (optional)
	SentryDSN string

	// Sweeper
	SweepExpiryInterval     time.Duration
	SweepCompletionInterval time.Duration
	SweepPassTimeout        time.Duration
	SweepLeaseTTL           time.Duration

	// Notifications
	NotifyQueueSize int
	NotifyWorkers   int

	// Ledger archive storage (S3-compatible, optional)
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Endpoint  string
}

func Load() *Config {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		// Application
		AppName: envString("APP_NAME", "BrokeShield"),
		AppEnv:  envString("APP_ENV", "development"),
		Port:    envString("PORT", "8090"),

		// Database
		DBDriver: envString("DB_DRIVER", "sqlite"),
		DBConnection: envString("DB_CONNECTION",
			"file:./data/brokeshield.db?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_time_format=sqlite&_txlock=immediate"),

		// Security
		JWTSecret: envString("JWT_SECRET", ""),
		JWTExpiry: envDuration("JWT_EXPIRY", 168*time.Hour), // 7 days

		// Email (RESEND_API_KEY optional in development, required in production)
		EmailFrom:    envString("EMAIL_FROM", "noreply@example.com"),
		ResendAPIKey: envString("RESEND_API_KEY", ""),

		// Observability
		SentryDSN: envString("SENTRY_DSN", ""),

		// Sweeper
		SweepExpiryInterval:     envDuration("SWEEP_EXPIRY_INTERVAL", 200*time.Second),
		SweepCompletionInterval: envDuration("SWEEP_COMPLETION_INTERVAL", 30*time.Second),
		SweepPassTimeout:        envDuration("SWEEP_PASS_TIMEOUT", 20*time.Second),
		SweepLeaseTTL:           envDuration("SWEEP_LEASE_TTL", time.Minute),

		// Notifications
		NotifyQueueSize: envInt("NOTIFY_QUEUE_SIZE", 256),
		NotifyWorkers:   envInt("NOTIFY_WORKERS", 2),

		// Ledger archive storage
		S3Region:    envString("S3_REGION", "us-east-1"),
		S3Bucket:    envString("S3_BUCKET", ""),
		S3AccessKey: envString("S3_ACCESS_KEY", ""),
		S3SecretKey: envString("S3_SECRET_KEY", ""),
		S3Endpoint:  envString("S3_ENDPOINT", ""),
	}

	return cfg
}

// ValidateServe reports settings the HTTP server cannot run without.
// Development allows email to fall back to log mode.
func (c *Config) ValidateServe() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve")
	}
	if c.IsProduction() && c.ResendAPIKey == "" {
		return errors.New("production deployment requires RESEND_API_KEY (set APP_ENV=development for email log mode)")
	}
	return nil
}

func envString(key, def string) string {
	value := os.Getenv(key)
	if value == "" {
		value = def
	}
	return value
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		slog.Warn("config invalid int, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		slog.Warn("config invalid duration, using default", "key", key, "value", v, "default", def)
		return def
	}
	return d
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
