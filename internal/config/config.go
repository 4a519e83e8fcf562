package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Sync     SyncConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	URL            string
	MaxConnections int
}

// AuthConfig holds credentials for API access and scheduled triggers.
type AuthConfig struct {
	JWTSecret       string
	AdminPassword   string
	SchedulerSecret string
}

// SyncConfig tunes the sync engine's background loops and batch sizes.
type SyncConfig struct {
	ProviderBaseURL   string
	SweepInterval     time.Duration
	SchedulerInterval time.Duration
	LockMaxAge        time.Duration
	StaleRunningAfter time.Duration
	ConcurrentJobs    int
	ClaimBatch        int
	WriteBatchSize    int
	DiscoveryQuota    int
	OrgContentLimit   int
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultMaxConnections = 25

	defaultSweepInterval     = 15 * time.Second
	defaultSchedulerInterval = time.Minute
	defaultLockMaxAge        = 10 * time.Minute
	defaultStaleRunningAfter = 15 * time.Minute
	defaultConcurrentJobs    = 3
	defaultClaimBatch        = 10
	defaultWriteBatchSize    = 500
	defaultDiscoveryQuota    = 100
	defaultOrgContentLimit   = 10000

	defaultLogFormat = "json"
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided. Secrets and the database URL have no defaults and
// are validated by the caller at startup.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Database: DatabaseConfig{
			URL:            os.Getenv("DATABASE_URL"),
			MaxConnections: defaultMaxConnections,
		},
		Auth: AuthConfig{
			JWTSecret:       os.Getenv("JWT_SECRET"),
			AdminPassword:   os.Getenv("ADMIN_PASSWORD"),
			SchedulerSecret: os.Getenv("SCHEDULER_SECRET"),
		},
		Sync: SyncConfig{
			ProviderBaseURL:   os.Getenv("PROVIDER_BASE_URL"),
			SweepInterval:     defaultSweepInterval,
			SchedulerInterval: defaultSchedulerInterval,
			LockMaxAge:        defaultLockMaxAge,
			StaleRunningAfter: defaultStaleRunningAfter,
			ConcurrentJobs:    defaultConcurrentJobs,
			ClaimBatch:        defaultClaimBatch,
			WriteBatchSize:    defaultWriteBatchSize,
			DiscoveryQuota:    defaultDiscoveryQuota,
			OrgContentLimit:   defaultOrgContentLimit,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
	}

	durationVars := []struct {
		key    string
		target *time.Duration
	}{
		{"SERVER_READ_TIMEOUT_SECONDS", &cfg.Server.ReadTimeout},
		{"SERVER_WRITE_TIMEOUT_SECONDS", &cfg.Server.WriteTimeout},
		{"SERVER_SHUTDOWN_TIMEOUT_SECONDS", &cfg.Server.ShutdownTimeout},
		{"SYNC_SWEEP_INTERVAL_SECONDS", &cfg.Sync.SweepInterval},
		{"SYNC_SCHEDULER_INTERVAL_SECONDS", &cfg.Sync.SchedulerInterval},
		{"SYNC_LOCK_MAX_AGE_SECONDS", &cfg.Sync.LockMaxAge},
		{"SYNC_STALE_RUNNING_SECONDS", &cfg.Sync.StaleRunningAfter},
	}
	for _, v := range durationVars {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		d, err := parseSeconds(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.target = d
	}

	intVars := []struct {
		key    string
		target *int
	}{
		{"DATABASE_MAX_CONNECTIONS", &cfg.Database.MaxConnections},
		{"SYNC_CONCURRENT_JOBS", &cfg.Sync.ConcurrentJobs},
		{"SYNC_CLAIM_BATCH", &cfg.Sync.ClaimBatch},
		{"SYNC_WRITE_BATCH_SIZE", &cfg.Sync.WriteBatchSize},
		{"SYNC_DISCOVERY_QUOTA", &cfg.Sync.DiscoveryQuota},
		{"ORG_CONTENT_LIMIT", &cfg.Sync.OrgContentLimit},
	}
	for _, v := range intVars {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		n, err := parsePositiveInt(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", v.key, err)
		}
		*v.target = n
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("must be a positive integer")
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
