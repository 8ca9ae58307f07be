// Package config manages environment variables.
//
// It reads variables (optionally from a `.env` file), loads them into
// structured Go types and validates that required values are present so
// they can be reused across the application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map env vars into a structured Go config (structs).
//   - Validate required values so the app fails fast on bad/missing config.
//   - Provide sane defaults for optional config blocks (observability, worker pool).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists it is loaded into the
	// process environment before any variable is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from every variable before it becomes a koanf key.
const EnvPrefix = "USERS_"

// Config is the root configuration object for the application.
//
// The `koanf:"..."` tags specify where koanf maps values from.
// The `validate:"..."` tags are enforced by go-playground/validator.
//
// Observability is a pointer because it is optional. If not provided,
// defaults are injected at load time.
type Config struct {
	Primary       Primary              `koanf:"primary" validate:"required"`
	Server        ServerConfig         `koanf:"server" validate:"required"`
	Database      DatabaseConfig       `koanf:"database" validate:"required"`
	Redis         RedisConfig          `koanf:"redis" validate:"required"`
	Worker        WorkerConfig         `koanf:"worker"`
	Observability *ObservabilityConfig `koanf:"observability"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// ServerConfig groups settings for the HTTP server runtime.
// Timeouts are expressed in seconds.
type ServerConfig struct {
	Port               string   `koanf:"port" validate:"required"`
	ReadTimeout        int      `koanf:"read_timeout" validate:"required"`
	WriteTimeout       int      `koanf:"write_timeout" validate:"required"`
	IdleTimeout        int      `koanf:"idle_timeout" validate:"required"`
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins" validate:"required"`

	// Per client IP. A zero RateLimitRPS disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps" validate:"min=0"`
	RateLimitBurst int     `koanf:"rate_limit_burst" validate:"min=0"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
//
// MaxOpenConns is also the default size of the transactor worker pool:
// there is no point running more units of work than there are connections.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password" validate:"required"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int    `koanf:"max_open_conns" validate:"required,min=1"`
	MaxIdleConns    int    `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"required"`
}

// RedisConfig contains Redis connection details.
// Address is typically "host:port".
type RedisConfig struct {
	Address string `koanf:"address" validate:"required"`

	// CacheTTL bounds how long a user stays in the read cache.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// WorkerConfig sizes the pool that runs database units of work.
// Zero means "one worker per database connection".
type WorkerConfig struct {
	PoolSize int `koanf:"pool_size" validate:"min=0"`
}

// DefaultCacheTTL is used when redis.cache_ttl is not set.
const DefaultCacheTTL = 5 * time.Minute

// sections lists the config blocks whose keys may themselves contain
// underscores. Env variable names are split on the first underscore
// that follows a known section name.
var sections = map[string][]string{
	"primary":       nil,
	"server":        nil,
	"database":      nil,
	"redis":         nil,
	"worker":        nil,
	"observability": {"logging", "new_relic", "health_checks"},
}

// envKey maps an env variable name to its koanf key.
//
// Example:
//
//	USERS_DATABASE_MAX_OPEN_CONNS       -> database.max_open_conns
//	USERS_OBSERVABILITY_LOGGING_LEVEL   -> observability.logging.level
func envKey(name string) string {
	key := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))

	for section, subsections := range sections {
		rest, ok := strings.CutPrefix(key, section+"_")
		if !ok {
			continue
		}
		for _, sub := range subsections {
			if leaf, ok := strings.CutPrefix(rest, sub+"_"); ok {
				return section + "." + sub + "." + leaf
			}
		}
		return section + "." + rest
	}

	return key
}

// LoadConfig loads configuration from environment variables, unmarshals it
// into Config, validates it, applies defaults and returns the result.
func LoadConfig() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil)
	if err != nil {
		return nil, fmt.Errorf("could not load env variables: %w", err)
	}

	// Unmarshal decodes durations ("5m") and comma-separated lists
	// through koanf's default mapstructure hooks.
	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("could not unmarshal main config: %w", err)
	}

	// Set default observability config if not provided, then force the
	// service name and environment so telemetry is consistently labelled.
	if mainConfig.Observability == nil {
		mainConfig.Observability = DefaultObservabilityConfig()
	}
	mainConfig.Observability.ServiceName = "users-service"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if mainConfig.Redis.CacheTTL <= 0 {
		mainConfig.Redis.CacheTTL = DefaultCacheTTL
	}

	if err := validator.New().Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}

// WorkerPoolSize is the number of units of work allowed to hold a database
// session at the same time.
func (c *Config) WorkerPoolSize() int {
	if c.Worker.PoolSize > 0 {
		return c.Worker.PoolSize
	}
	return c.Database.MaxOpenConns
}
