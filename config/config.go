// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"APP_ENV"`
	AllowedOrigins string        `mapstructure:"ALLOWED_ORIGINS"`
	RedisURL       string        `mapstructure:"REDIS_URL"`
	ListCacheTTL   time.Duration `mapstructure:"LIST_CACHE_TTL"`
	StoreDriver    string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	SQLiteDSN      string        `mapstructure:"SQLITE_DSN"`
	SeedPosts      bool          `mapstructure:"SEED_POSTS"`
	APIBaseURL     string        `mapstructure:"API_BASE_URL"`
	SearchDebounce time.Duration `mapstructure:"SEARCH_DEBOUNCE"`
}

// LoadConfig loads configuration from .env, config.yml and the environment,
// in increasing order of precedence.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(".")
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Println("Config file not found; using environment variables and defaults")
	}

	// Set default values
	v.SetDefault("PORT", "8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("ALLOWED_ORIGINS", "*")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("LIST_CACHE_TTL", "30s")
	v.SetDefault("STORE_DRIVER", "memory")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("SQLITE_DSN", "")
	v.SetDefault("SEED_POSTS", true)
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("SEARCH_DEBOUNCE", "400ms")

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate ensures that required configuration values are present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	switch c.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("STORE_DRIVER %q is not one of memory, sqlite, postgres", c.StoreDriver)
	}
	if c.ListCacheTTL < 0 {
		return errors.New("LIST_CACHE_TTL must not be negative")
	}
	if c.SearchDebounce <= 0 {
		return errors.New("SEARCH_DEBOUNCE must be positive")
	}
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL is required")
	}

	if (c.Env == "production" || c.Env == "prod") && c.AllowedOrigins == "*" {
		log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
	}
	return nil
}

// StoreDSN returns the DSN for the configured SQL driver, empty for memory.
func (c *Config) StoreDSN() string {
	switch c.StoreDriver {
	case "sqlite":
		return c.SQLiteDSN
	case "postgres":
		return c.DatabaseURL
	default:
		return ""
	}
}
