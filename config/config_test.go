package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdfslides/converter/deck"
	"pdfslides/converter/themes"
)

var envKeys = []string{
	"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY",
	"PDFSLIDES_MODEL", "PDFSLIDES_WORKERS", "PDFSLIDES_THEME", "PDFSLIDES_FORMAT",
	"PDFSLIDES_CACHE", "PDFSLIDES_PORT", "REDIS_URL", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every override so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

// chdir switches the working directory for the test and restores it on cleanup
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 1, cfg.Conversion.Workers)
	assert.Equal(t, themes.DefaultID, cfg.Conversion.Theme)
	assert.Equal(t, deck.FormatPPTX, cfg.Format())
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadYAML(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	path := writeFile(t, t.TempDir(), "pdfslides.yaml", `
gemini:
  model: gemini-test
  retry:
    max_retries: 4
    initial_backoff: 2s
conversion:
  workers: 3
  theme: sunset
  format: pdf
cache:
  driver: none
themes:
  - id: sunset
    name: Sunset
    background: "#fff4e6"
    primary: "#e8590c"
    text: "#212529"
    accent: "#d9480f"
    text_on_primary: "#ffffff"
    subtle_text: "#868e96"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gemini-test", cfg.Gemini.Model)
	assert.Equal(t, 4, cfg.Gemini.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Gemini.Retry.InitialBackoff)
	assert.Equal(t, 30*time.Second, cfg.Gemini.Retry.MaxBackoff)
	assert.Equal(t, 3, cfg.Conversion.Workers)
	assert.Equal(t, deck.FormatPDF, cfg.Format())
	assert.Equal(t, CacheNone, cfg.Cache.Driver)
	require.Len(t, cfg.Themes, 1)

	require.NoError(t, cfg.RegisterThemes())
	theme, err := cfg.Theme()
	require.NoError(t, err)
	assert.Equal(t, "Sunset", theme.Name)
	assert.Equal(t, "#e8590c", theme.Primary.Hex())

	retry := cfg.RetryConfig()
	assert.Equal(t, 4, retry.MaxRetries)
}

func TestEnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	path := writeFile(t, t.TempDir(), "pdfslides.yaml", `
gemini:
  model: from-yaml
conversion:
  workers: 2
`)
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("API_KEY", "generic-key")
	t.Setenv("PDFSLIDES_MODEL", "from-env")
	t.Setenv("PDFSLIDES_WORKERS", "6")
	t.Setenv("PDFSLIDES_THEME", "graphite-gray")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "google-key", cfg.Gemini.APIKey)
	assert.Equal(t, "from-env", cfg.Gemini.Model)
	assert.Equal(t, 6, cfg.Conversion.Workers)
	assert.Equal(t, "graphite-gray", cfg.Conversion.Theme)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
	assert.Equal(t, "json", cfg.Observability.LogFormat)
	assert.Equal(t, CacheRedis, cfg.Cache.Driver)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Cache.Redis.URL)
}

func TestAPIKeyPrecedence(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("GOOGLE_API_KEY", "google-key")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-key", cfg.Gemini.APIKey)
}

func TestCacheEnvOverride(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())
	t.Setenv("REDIS_URL", "redis://localhost:6379")
	t.Setenv("PDFSLIDES_CACHE", "none")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, CacheNone, cfg.Cache.Driver)
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	chdir(t, dir)
	os.Unsetenv("PDFSLIDES_MODEL")
	t.Cleanup(func() { os.Unsetenv("PDFSLIDES_MODEL") })

	writeFile(t, dir, ".env", "PDFSLIDES_MODEL=from-dotenv\n")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Gemini.Model)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	chdir(t, t.TempDir())

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read config file")

	bad := writeFile(t, t.TempDir(), "bad.yaml", "conversion: [unclosed")
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"workers", func(c *Config) { c.Conversion.Workers = 0 }, "workers"},
		{"zero min text length", func(c *Config) { c.Conversion.MinTextLength = 0 }, "min_text_length"},
		{"negative min text length", func(c *Config) { c.Conversion.MinTextLength = -4 }, "min_text_length"},
		{"format", func(c *Config) { c.Conversion.Format = "docx" }, "unknown output format"},
		{"model", func(c *Config) { c.Gemini.Model = " " }, "model"},
		{"cache driver", func(c *Config) { c.Cache.Driver = "memcached" }, "invalid cache driver"},
		{"redis url", func(c *Config) { c.Cache.Driver = CacheRedis }, "requires a url"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"log format", func(c *Config) { c.Observability.LogFormat = "xml" }, "invalid log format"},
		{"theme", func(c *Config) { c.Conversion.Theme = "neon" }, "unknown theme"},
		{"bad custom theme", func(c *Config) {
			c.Themes = []themes.Definition{{ID: "broken", Background: "zzz"}}
		}, "invalid background color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
