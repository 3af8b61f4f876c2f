// Package config loads pdfslides configuration.
// Supports YAML files, a .env file, environment variables and flag overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"pdfslides/converter/deck"
	"pdfslides/converter/synth"
	"pdfslides/converter/themes"
)

// Cache drivers
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all configuration for pdfslides.
type Config struct {
	Gemini        GeminiConfig        `yaml:"gemini"`
	Conversion    ConversionConfig    `yaml:"conversion"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
	Themes        []themes.Definition `yaml:"themes"`
}

// GeminiConfig holds generative model settings.
type GeminiConfig struct {
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Retry   RetryConfig   `yaml:"retry"`
	Timeout time.Duration `yaml:"timeout"` // per page
}

// RetryConfig holds retry settings for generator calls.
type RetryConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// ConversionConfig holds pipeline settings.
type ConversionConfig struct {
	Workers       int    `yaml:"workers"`
	MinTextLength int    `yaml:"min_text_length"`
	Theme         string `yaml:"theme"`
	Format        string `yaml:"format"` // pptx or pdf
}

// CacheConfig holds slide cache settings.
type CacheConfig struct {
	Driver     string        `yaml:"driver"` // none, memory or redis
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Redis      RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	URL    string `yaml:"url"`
	Prefix string `yaml:"prefix"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	JobTTL         time.Duration `yaml:"job_ttl"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from an optional YAML file, then the .env file in
// the working directory, then environment variables.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Gemini: GeminiConfig{
			Model: synth.DefaultModel,
			Retry: RetryConfig{
				MaxRetries:     2,
				InitialBackoff: time.Second,
				MaxBackoff:     30 * time.Second,
			},
			Timeout: 2 * time.Minute,
		},
		Conversion: ConversionConfig{
			Workers:       1,
			MinTextLength: 30,
			Theme:         themes.DefaultID,
			Format:        string(deck.FormatPPTX),
		},
		Cache: CacheConfig{
			Driver:     CacheMemory,
			TTL:        24 * time.Hour,
			MaxEntries: 256,
			Redis: RedisConfig{
				Prefix: "pdfslides:",
			},
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Minute,
			MaxUploadBytes: 50 << 20,
			JobTTL:         time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Conversion.Workers < 1 || c.Conversion.Workers > 32 {
		return fmt.Errorf("workers must be between 1 and 32, got %d", c.Conversion.Workers)
	}

	if c.Conversion.MinTextLength < 1 {
		return fmt.Errorf("min_text_length must be at least 1, got %d", c.Conversion.MinTextLength)
	}

	if _, err := deck.ParseFormat(c.Conversion.Format); err != nil {
		return err
	}

	if strings.TrimSpace(c.Gemini.Model) == "" {
		return fmt.Errorf("gemini model is required")
	}

	if c.Gemini.Retry.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}

	switch c.Cache.Driver {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.Cache.Redis.URL == "" {
			return fmt.Errorf("redis cache requires a url")
		}
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Observability.LogFormat != "json" && c.Observability.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s", c.Observability.LogFormat)
	}

	known := map[string]bool{}
	for _, id := range themes.IDs() {
		known[id] = true
	}
	for _, def := range c.Themes {
		t, err := themes.NewCustomTheme(def)
		if err != nil {
			return err
		}
		known[t.ID] = true
	}
	if !known[strings.ToLower(strings.TrimSpace(c.Conversion.Theme))] {
		return fmt.Errorf("unknown theme: %s", c.Conversion.Theme)
	}

	return nil
}

// RegisterThemes adds the configured custom themes to the theme registry.
func (c *Config) RegisterThemes() error {
	for _, def := range c.Themes {
		t, err := themes.NewCustomTheme(def)
		if err != nil {
			return err
		}
		if err := themes.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Theme resolves the configured theme. Custom themes must be registered first.
func (c *Config) Theme() (themes.Theme, error) {
	return themes.Get(c.Conversion.Theme)
}

// Format returns the configured output format.
func (c *Config) Format() deck.Format {
	f, err := deck.ParseFormat(c.Conversion.Format)
	if err != nil {
		return deck.FormatPPTX
	}
	return f
}

// RetryConfig converts the retry settings for the synthesizer.
func (c *Config) RetryConfig() synth.RetryConfig {
	return synth.RetryConfig{
		MaxRetries:     c.Gemini.Retry.MaxRetries,
		InitialBackoff: c.Gemini.Retry.InitialBackoff,
		MaxBackoff:     c.Gemini.Retry.MaxBackoff,
	}
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	for _, key := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.Gemini.APIKey = v
			break
		}
	}

	if v := os.Getenv("PDFSLIDES_MODEL"); v != "" {
		cfg.Gemini.Model = v
	}

	if v := os.Getenv("PDFSLIDES_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Conversion.Workers = n
		}
	}

	if v := os.Getenv("PDFSLIDES_THEME"); v != "" {
		cfg.Conversion.Theme = v
	}

	if v := os.Getenv("PDFSLIDES_FORMAT"); v != "" {
		cfg.Conversion.Format = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Driver = CacheRedis
		cfg.Cache.Redis.URL = v
	}

	if v := os.Getenv("PDFSLIDES_CACHE"); v != "" {
		cfg.Cache.Driver = strings.ToLower(v)
	}

	if v := os.Getenv("PDFSLIDES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}
