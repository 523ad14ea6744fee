/*
Package config loads runtime configuration for the ledger binaries.

PRECEDENCE (lowest to highest):
  1. Default()
  2. YAML file named by --config or LEDGER_CONFIG (optional)
  3. Environment variables, including a .env file in the working directory

ENVIRONMENT:
  PORT, LEDGER_DB_PATH, LEDGER_DB_DRIVER, LOG_LEVEL, LOG_FORMAT,
  INTEGRITY_ENABLED, INTEGRITY_INTERVAL, AMQP_URL, AMQP_EXCHANGE,
  METRICS_ENABLED, CORS_ORIGINS (comma separated)
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/warp/envelope-ledger/logging"
)

// EnvConfigPath names the variable that points at a YAML config file.
const EnvConfigPath = "LEDGER_CONFIG"

// Database driver names, matching store/sqlite.
const (
	DriverMattn  = "sqlite3"
	DriverModern = "sqlite"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Log       LogConfig       `yaml:"log"`
	Integrity IntegrityConfig `yaml:"integrity"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServerConfig struct {
	Port        string   `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type DatabaseConfig struct {
	Path   string `yaml:"path"`
	Driver string `yaml:"driver"` // sqlite3 (mattn) or sqlite (modernc)
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// IntegrityConfig controls the periodic integrity validation.
type IntegrityConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// AMQPConfig enables ledger event publishing. An empty URL disables it.
type AMQPConfig struct {
	URL      string `yaml:"url"`
	Exchange string `yaml:"exchange"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path:   "ledger.db",
			Driver: DriverMattn,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Integrity: IntegrityConfig{
			Enabled:  true,
			Interval: 10 * time.Minute,
		},
		AMQP: AMQPConfig{
			Exchange: "ledger.events",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// LEDGER_CONFIG is consulted; a missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnv("PORT", c.Server.Port)
	c.Server.CORSOrigins = getEnvList("CORS_ORIGINS", c.Server.CORSOrigins)
	c.Database.Path = getEnv("LEDGER_DB_PATH", c.Database.Path)
	c.Database.Driver = getEnv("LEDGER_DB_DRIVER", c.Database.Driver)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Integrity.Enabled = getEnvBool("INTEGRITY_ENABLED", c.Integrity.Enabled)
	c.Integrity.Interval = getEnvDuration("INTEGRITY_INTERVAL", c.Integrity.Interval)
	c.AMQP.URL = getEnv("AMQP_URL", c.AMQP.URL)
	c.AMQP.Exchange = getEnv("AMQP_EXCHANGE", c.AMQP.Exchange)
	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Server.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Server.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.Database.Path == "" {
		problems = append(problems, "database path cannot be empty")
	}
	if c.Database.Driver != DriverMattn && c.Database.Driver != DriverModern {
		problems = append(problems, fmt.Sprintf("invalid database driver '%s': must be %q or %q",
			c.Database.Driver, DriverMattn, DriverModern))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, err.Error())
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		problems = append(problems, fmt.Sprintf("invalid log format '%s': must be text or json", c.Log.Format))
	}

	if c.Integrity.Enabled && c.Integrity.Interval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid integrity interval %v: must be at least 1 second", c.Integrity.Interval))
	}

	if c.AMQP.URL != "" {
		if u, err := url.Parse(c.AMQP.URL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQP.URL, err))
		} else if u.Scheme != "amqp" && u.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", u.Scheme))
		}
		if c.AMQP.Exchange == "" {
			problems = append(problems, "AMQP exchange cannot be empty when AMQP URL is provided")
		}
	}

	if len(problems) > 0 {
		return errors.New("configuration validation failed:\n- " + strings.Join(problems, "\n- "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Server.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
