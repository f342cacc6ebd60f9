package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// Database types
const (
	DatabaseSQLite   = "sqlite"
	DatabaseSQLite3  = "sqlite3"
	DatabasePostgres = "postgres"
)

// Config holds the server configuration. Every field can be set by flag or
// by environment variable.
type Config struct {
	Port         int    `short:"p" env:"PORT" default:"8080" help:"Server port."`
	DatabaseType string `name:"db-type" short:"t" env:"DATABASE_TYPE" default:"sqlite" enum:"sqlite,sqlite3,postgres" help:"Database driver (sqlite, sqlite3 or postgres)."`
	DatabaseURL  string `name:"db" short:"d" env:"DATABASE_URL" default:"frequency127.db" help:"SQLite path or PostgreSQL connection string."`

	JWTSecret    string        `name:"jwt-secret" env:"JWT_SECRET" help:"Secret the session signing key is derived from (prefer env)."`
	SessionTTL   time.Duration `name:"session-ttl" env:"SESSION_TTL" default:"336h" help:"Session lifetime."`
	CookieSecure bool          `name:"cookie-secure" env:"COOKIE_SECURE" default:"true" negatable:"" help:"Mark the session cookie Secure."`

	DayTimezone string   `name:"day-timezone" env:"DAY_TIMEZONE" default:"UTC" help:"Time zone that decides where a day starts."`
	PublicURL   string   `name:"public-url" env:"PUBLIC_URL" help:"Base URL used in share links. Defaults to the request origin."`
	CORSOrigins []string `name:"cors-origins" env:"CORS_ORIGINS" sep:"," help:"Allowed CORS origins."`

	RequestTimeout time.Duration `name:"request-timeout" env:"REQUEST_TIMEOUT" default:"30s" help:"Per-request timeout."`

	LogLevel string `name:"log-level" env:"LOG_LEVEL" default:"info" help:"Log level (debug, info, warn, error)."`
	LogFile  string `name:"log-file" env:"LOG_FILE" help:"Also write logs to this rotating file."`
	LogJSON  bool   `name:"log-json" env:"LOG_JSON" help:"Emit JSON logs."`
}

// Parse reads configuration from args and the environment and validates it
func Parse(args []string, options ...kong.Option) (Config, error) {
	var cfg Config

	options = append([]kong.Option{
		kong.Name("frequency127"),
		kong.Description("Routines, streaks and XP over HTTP."),
	}, options...)

	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return Config{}, fmt.Errorf("failed to build parser: %w", err)
	}
	if _, err := parser.Parse(args); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that have no usable default
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT secret is required. Provide via --jwt-secret flag or JWT_SECRET env var")
	}
	if c.DatabaseURL == "" {
		return errors.New("database URL required (use -d or DATABASE_URL env)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("session TTL must be positive, got %s", c.SessionTTL)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location returns the time zone used to compute day keys
func (c Config) Location() (*time.Location, error) {
	if c.DayTimezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.DayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid day time zone %q: %w", c.DayTimezone, err)
	}
	return loc, nil
}

// LoadEnvFile loads variables from dotenv files into the environment.
// Missing files are ignored and variables already set are kept.
func LoadEnvFile(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}
