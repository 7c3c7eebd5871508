package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable read by Load
const EnvPrefix = "CURSOS_"

// Config holds the runtime configuration of the CLI.
//
// Values come from the environment (optionally seeded from .env files):
//   - CURSOS_LOG_LEVEL, CURSOS_LOG_FORMAT: logging
//   - CURSOS_HTTP_TIMEOUT: timeout for calls to the course API
//   - CURSOS_CONFIG: explicit path to the project config file
//   - CURSOS_SERVER: server alias to use when --server is not given
type Config struct {
	// Logging Configuration
	Logging LoggingConfig `envPrefix:"LOG_"`

	// HTTP Configuration
	HTTP HTTPConfig `envPrefix:"HTTP_"`

	// ConfigPath overrides the upward search for cursos.json
	ConfigPath string `env:"CONFIG"`

	// Server is the default server alias
	Server string `env:"SERVER"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string `env:"LEVEL"  envDefault:"warn"`
	Format string `env:"FORMAT" envDefault:"console"` // json, console
}

// HTTPConfig holds settings for the course API client
type HTTPConfig struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.sanitize()
	return &cfg, nil
}

func (c *Config) sanitize() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format != "json" {
		c.Logging.Format = "console"
	}
	if c.HTTP.Timeout <= 0 {
		c.HTTP.Timeout = 30 * time.Second
	}
}
