package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvVars(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("DAY_TIMEZONE", "UTC")
	t.Setenv("CORS_ORIGINS", "http://localhost:5173,https://f127.example")

	cfg, err := Parse([]string{})
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "file:test.db", cfg.DatabaseURL)
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.SessionTTL)
	assert.Equal(t, []string{"http://localhost:5173", "https://f127.example"}, cfg.CORSOrigins)
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Parse([]string{})
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, DatabaseSQLite, cfg.DatabaseType)
	assert.Equal(t, "frequency127.db", cfg.DatabaseURL)
	assert.Equal(t, 14*24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.CookieSecure)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseCLIOverridesEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Parse([]string{"-p", "8081", "-d", "other.db", "--jwt-secret", "cli-secret", "--no-cookie-secure"})
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port, "CLI should override env")
	assert.Equal(t, "other.db", cfg.DatabaseURL)
	assert.Equal(t, "cli-secret", cfg.JWTSecret)
	assert.False(t, cfg.CookieSecure)
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Parse([]string{})
	assert.Error(t, err)
}

func TestParseRejectsUnknownDatabaseType(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := Parse([]string{"--db-type", "mysql"})
	assert.Error(t, err)
}

func TestParseRejectsBadTimezone(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	_, err := Parse([]string{"--day-timezone", "Mars/Olympus"})
	assert.Error(t, err)
}

func TestLocation(t *testing.T) {
	loc, err := Config{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = Config{DayTimezone: "UTC"}.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("F127_TEST_VALUE=from-file\n"), 0o600))
	t.Setenv("F127_TEST_VALUE", "")
	os.Unsetenv("F127_TEST_VALUE")

	require.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "from-file", os.Getenv("F127_TEST_VALUE"))
}
