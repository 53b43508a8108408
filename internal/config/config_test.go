package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const minimalConfig = `
server:
  port: 8080
database:
  url: postgres://localhost:5432/soulmate
assets:
  save_path: /var/lib/soulmate/images
  public_base_url: https://cdn.example.com/images
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LoggingLevel)
	assert.Equal(t, 60*time.Second, cfg.Server.RequestTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Pricing.BaseUnits)
	assert.Equal(t, 2*time.Second, cfg.Providers.PixelForge.PollInterval)
	assert.Equal(t, 30, cfg.Providers.PixelForge.PollMaxAttempts)
	assert.Equal(t, []string{"pixelforge", "gemini", "openai"}, cfg.Chains.Image)
	assert.Equal(t, []string{"gemini", "openai"}, cfg.Chains.Vision)
	assert.Equal(t, []string{"anthropic", "openai"}, cfg.Chains.Text)
	assert.Equal(t, 40*time.Millisecond, cfg.Streaming.TokenDelay)
	assert.NotEmpty(t, cfg.Streaming.DefaultReply)
	assert.Equal(t, "/health", cfg.Monitoring.HealthCheckPath)
	assert.Equal(t, "dall-e-3", cfg.Providers.OpenAI.ImageModel)
	assert.Equal(t, 1024, cfg.Providers.Anthropic.MaxTokens)
}

func TestLoad_DurationParsing(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 8080
  request_timeout: 90s
database:
  url: postgres://localhost:5432/soulmate
  connect_timeout: 5s
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
providers:
  pixelforge:
    base_url: https://api.pixelforge.example
    poll_interval: 500ms
    poll_max_attempts: 10
streaming:
  token_delay: 25ms
`))

	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Providers.PixelForge.PollInterval)
	assert.Equal(t, 10, cfg.Providers.PixelForge.PollMaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Streaming.TokenDelay)
}

func TestLoad_InvalidDuration(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
  request_timeout: ninety seconds
database:
  url: postgres://localhost:5432/soulmate
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
`))

	assert.Error(t, err)
}

func TestLoad_InvalidPort(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 99999
database:
  url: postgres://localhost:5432/soulmate
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
`))

	assert.ErrorContains(t, err, "invalid port")
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
`))

	assert.ErrorContains(t, err, "database url is required")
}

func TestLoad_MissingAssets(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
database:
  url: postgres://localhost:5432/soulmate
`))

	assert.ErrorContains(t, err, "save_path")
}

func TestLoad_InvalidPixelForgeURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
database:
  url: postgres://localhost:5432/soulmate
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
providers:
  pixelforge:
    base_url: ftp://files.example.com
`))

	assert.ErrorContains(t, err, "http or https")
}

func TestLoad_UnknownChainProvider(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
database:
  url: postgres://localhost:5432/soulmate
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
chains:
  image: [pixelforge, midjourney]
`))

	assert.ErrorContains(t, err, "unknown provider in chain: midjourney")
}

func TestLoad_InvalidLoggingLevel(t *testing.T) {
	_, err := Load(writeConfig(t, `
server:
  port: 8080
  logging_level: verbose
database:
  url: postgres://localhost:5432/soulmate
assets:
  save_path: /tmp/images
  public_base_url: https://cdn.example.com
`))

	assert.ErrorContains(t, err, "invalid logging_level")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [not a map"))
	assert.ErrorContains(t, err, "failed to parse config file")
}
