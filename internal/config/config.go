// Package config loads server settings from defaults, an optional TOML file,
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultPort       = "8080"
	DefaultDBPath     = "typing-exam.db"
	DefaultConfigFile = "typing-exam.toml"
	DefaultBcryptCost = 12
	DefaultSessionTTL = 2 * time.Hour
	DefaultExchange   = "typing-exam.events"
)

const minSecretLen = 32

// Config holds the server settings.
type Config struct {
	Port             string
	DatabasePath     string
	JWTSecret        string
	CookieHashKey    string
	CookieSecure     bool
	BcryptCost       int
	SessionTTL       time.Duration
	RabbitMQURL      string
	RabbitMQExchange string
}

// FileConfig is the layout of the TOML config file. Unset keys keep the
// default.
type FileConfig struct {
	Server   ServerConfig   `toml:"server"`
	Security SecurityConfig `toml:"security"`
	Events   EventsConfig   `toml:"events"`
}

// ServerConfig maps the [server] table.
type ServerConfig struct {
	Port         *string `toml:"port"`
	DatabasePath *string `toml:"database-path"`
	SessionTTL   *string `toml:"session-ttl"`
}

// SecurityConfig maps the [security] table.
type SecurityConfig struct {
	JWTSecret     *string `toml:"jwt-secret"`
	CookieHashKey *string `toml:"cookie-hash-key"`
	CookieSecure  *bool   `toml:"cookie-secure"`
	BcryptCost    *int    `toml:"bcrypt-cost"`
}

// EventsConfig maps the [events] table.
type EventsConfig struct {
	RabbitMQURL *string `toml:"rabbitmq-url"`
	Exchange    *string `toml:"exchange"`
}

// Default returns the built-in settings. Secrets are empty and must be
// supplied.
func Default() Config {
	return Config{
		Port:             DefaultPort,
		DatabasePath:     DefaultDBPath,
		CookieSecure:     true,
		BcryptCost:       DefaultBcryptCost,
		SessionTTL:       DefaultSessionTTL,
		RabbitMQExchange: DefaultExchange,
	}
}

// LoadFile reads a TOML config from path. A missing file is not an error.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("stat config: %w", err)
	}
	var fc FileConfig
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return FileConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return fc, nil
}

// Load builds the configuration: defaults, then the TOML file named by
// CONFIG_FILE, then environment variables. A .env file in the working
// directory is loaded first if present; it never overrides variables that
// are already set. Secrets are not checked here since the CLI commands that
// only touch the database run without them; the server calls Validate.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Default()

	path := getenv("CONFIG_FILE")
	if path == "" {
		path = DefaultConfigFile
	}
	fc, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyFile(fc); err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.checkLimits(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyFile(fc FileConfig) error {
	setString(&c.Port, fc.Server.Port)
	setString(&c.DatabasePath, fc.Server.DatabasePath)
	if fc.Server.SessionTTL != nil {
		d, err := time.ParseDuration(*fc.Server.SessionTTL)
		if err != nil {
			return fmt.Errorf("invalid session-ttl: %w", err)
		}
		c.SessionTTL = d
	}
	setString(&c.JWTSecret, fc.Security.JWTSecret)
	setString(&c.CookieHashKey, fc.Security.CookieHashKey)
	if fc.Security.CookieSecure != nil {
		c.CookieSecure = *fc.Security.CookieSecure
	}
	if fc.Security.BcryptCost != nil {
		c.BcryptCost = *fc.Security.BcryptCost
	}
	setString(&c.RabbitMQURL, fc.Events.RabbitMQURL)
	setString(&c.RabbitMQExchange, fc.Events.Exchange)
	return nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	c.Port = envOrDefault(getenv, "PORT", c.Port)
	c.DatabasePath = envOrDefault(getenv, "DATABASE_PATH", c.DatabasePath)
	c.JWTSecret = envOrDefault(getenv, "JWT_SECRET", c.JWTSecret)
	c.CookieHashKey = envOrDefault(getenv, "COOKIE_HASH_KEY", c.CookieHashKey)
	c.RabbitMQURL = envOrDefault(getenv, "RABBITMQ_URL", c.RabbitMQURL)
	c.RabbitMQExchange = envOrDefault(getenv, "RABBITMQ_EXCHANGE", c.RabbitMQExchange)

	// Secure cookies stay on unless explicitly disabled for local development.
	if v := getenv("COOKIE_SECURE"); v != "" {
		c.CookieSecure = !strings.EqualFold(v, "false")
	}

	if v := getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid BCRYPT_COST: %w", err)
		}
		c.BcryptCost = n
	}

	if v := getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid SESSION_TTL: %w", err)
		}
		c.SessionTTL = d
	}
	return nil
}

// Validate checks the settings the server cannot run without.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters for HMAC-SHA256 security", minSecretLen)
	}
	if c.CookieHashKey == "" {
		return errors.New("COOKIE_HASH_KEY is required")
	}
	if len(c.CookieHashKey) < minSecretLen {
		return fmt.Errorf("COOKIE_HASH_KEY must be at least %d characters", minSecretLen)
	}
	return c.checkLimits()
}

func (c Config) checkLimits() error {
	if c.BcryptCost < 4 || c.BcryptCost > 14 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 14, got %d", c.BcryptCost)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func envOrDefault(getenv func(string) string, key, defaultVal string) string {
	if val := getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
