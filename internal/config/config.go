package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds environment-driven configuration.
type Config struct {
	Environment string
	Addr        string

	StoreDriver string
	DatabaseURL string

	UploadDir           string
	UploadURLPrefix     string
	MaxUploadBytes      int64
	ProfileMaxDimension int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	CORSAllowOrigins string
	LogLevel         string

	ExportLocation   *time.Location
	ExportDateLayout string

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	cfg := Config{
		Environment:         getEnv("APP_ENV", "development"),
		Addr:                getEnv("APP_ADDR", ":5000"),
		StoreDriver:         strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		UploadDir:           getEnv("UPLOAD_DIR", "./uploads"),
		UploadURLPrefix:     "/" + strings.Trim(getEnv("UPLOAD_URL_PREFIX", "/uploads"), "/"),
		MaxUploadBytes:      int64(getInt("MAX_UPLOAD_BYTES", 5<<20)),
		ProfileMaxDimension: getInt("PROFILE_MAX_DIMENSION", 512),
		RedisAddr:           strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getInt("REDIS_DB", 0),
		CacheTTL:            getDuration("USER_CACHE_TTL", 5*time.Minute),
		CORSAllowOrigins:    getEnv("CORS_ALLOW_ORIGINS", "*"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		ExportDateLayout:    getEnv("EXPORT_DATE_LAYOUT", "1/2/2006"),
		ShutdownTimeout:     getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("DATABASE_URL is required for the %s store", DriverPostgres)
		}
	case DriverSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "file:users.db"
		}
	case DriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.MaxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	loc, err := time.LoadLocation(getEnv("EXPORT_TIMEZONE", "UTC"))
	if err != nil {
		return Config{}, fmt.Errorf("EXPORT_TIMEZONE: %w", err)
	}
	cfg.ExportLocation = loc

	return cfg, nil
}

// IsDevelopment reports whether the service runs in a local development environment.
func (c Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err == nil {
			return d
		}
	}
	return fallback
}
