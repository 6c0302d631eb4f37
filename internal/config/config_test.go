package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("APP_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":5000", cfg.Addr)
	require.Equal(t, DriverMemory, cfg.StoreDriver)
	require.Equal(t, "/uploads", cfg.UploadURLPrefix)
	require.Equal(t, int64(5<<20), cfg.MaxUploadBytes)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.Equal(t, "1/2/2006", cfg.ExportDateLayout)
	require.Equal(t, time.UTC, cfg.ExportLocation)
	require.True(t, cfg.IsDevelopment())
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_SQLiteDefaultsDatabaseURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverSQLite, cfg.StoreDriver)
	require.Equal(t, "file:users.db", cfg.DatabaseURL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("UPLOAD_URL_PREFIX", "static/avatars/")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("USER_CACHE_TTL", "30s")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("EXPORT_TIMEZONE", "Asia/Bangkok")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/static/avatars", cfg.UploadURLPrefix)
	require.Equal(t, int64(1024), cfg.MaxUploadBytes)
	require.Equal(t, 30*time.Second, cfg.CacheTTL)
	require.Equal(t, 0, cfg.RedisDB)
	require.Equal(t, "Asia/Bangkok", cfg.ExportLocation.String())
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
}
