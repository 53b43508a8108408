package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Assets     AssetsConfig     `yaml:"assets"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Chains     ChainsConfig     `yaml:"chains"`
	Streaming  StreamingConfig  `yaml:"streaming"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	LoggingLevel   string        `yaml:"logging_level"`
}

type DatabaseConfig struct {
	URL            string        `yaml:"url"`
	MaxConns       int32         `yaml:"max_conns"`
	MinConns       int32         `yaml:"min_conns"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

type AssetsConfig struct {
	SavePath      string `yaml:"save_path"`
	PublicBaseURL string `yaml:"public_base_url"`
}

type PricingConfig struct {
	BaseUnits           int                `yaml:"base_units"`
	ProviderMultipliers map[string]float64 `yaml:"provider_multipliers"`
}

type ProvidersConfig struct {
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Anthropic  AnthropicConfig  `yaml:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	PixelForge PixelForgeConfig `yaml:"pixelforge"`
}

type OpenAIConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	ImageModel  string `yaml:"image_model"`
	VisionModel string `yaml:"vision_model"`
	ChatModel   string `yaml:"chat_model"`
}

type AnthropicConfig struct {
	APIKey    string `yaml:"api_key"`
	ChatModel string `yaml:"chat_model"`
	MaxTokens int    `yaml:"max_tokens"`
}

type GeminiConfig struct {
	APIKey      string `yaml:"api_key"`
	ImageModel  string `yaml:"image_model"`
	VisionModel string `yaml:"vision_model"`
}

// PixelForgeConfig configures the asynchronous image provider. The provider
// answers with a task id; PollInterval and PollMaxAttempts bound the total
// wait to PollMaxAttempts x PollInterval.
type PixelForgeConfig struct {
	BaseURL         string        `yaml:"base_url"`
	TokenURL        string        `yaml:"token_url"`
	ClientID        string        `yaml:"client_id"`
	ClientSecret    string        `yaml:"client_secret"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	PollMaxAttempts int           `yaml:"poll_max_attempts"`
}

type ChainsConfig struct {
	Image  []string `yaml:"image"`
	Vision []string `yaml:"vision"`
	Text   []string `yaml:"text"`
}

type StreamingConfig struct {
	TokenDelay   time.Duration `yaml:"token_delay"`
	DefaultReply string        `yaml:"default_reply"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	HealthCheckPath   string `yaml:"health_check_path"`
}

// UnmarshalYAML parses duration fields from human-readable strings ("60s").
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		Port           int    `yaml:"port"`
		RequestTimeout string `yaml:"request_timeout"`
		LoggingLevel   string `yaml:"logging_level"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	s.Port = temp.Port
	s.LoggingLevel = temp.LoggingLevel

	d, err := parseDuration(temp.RequestTimeout, 60*time.Second)
	if err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	s.RequestTimeout = d
	return nil
}

func (d *DatabaseConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		URL            string `yaml:"url"`
		MaxConns       int32  `yaml:"max_conns"`
		MinConns       int32  `yaml:"min_conns"`
		ConnectTimeout string `yaml:"connect_timeout"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	d.URL = temp.URL
	d.MaxConns = temp.MaxConns
	d.MinConns = temp.MinConns

	timeout, err := parseDuration(temp.ConnectTimeout, 10*time.Second)
	if err != nil {
		return fmt.Errorf("invalid connect_timeout: %w", err)
	}
	d.ConnectTimeout = timeout
	return nil
}

func (p *PixelForgeConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		BaseURL         string `yaml:"base_url"`
		TokenURL        string `yaml:"token_url"`
		ClientID        string `yaml:"client_id"`
		ClientSecret    string `yaml:"client_secret"`
		RequestTimeout  string `yaml:"request_timeout"`
		PollInterval    string `yaml:"poll_interval"`
		PollMaxAttempts int    `yaml:"poll_max_attempts"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	p.BaseURL = temp.BaseURL
	p.TokenURL = temp.TokenURL
	p.ClientID = temp.ClientID
	p.ClientSecret = temp.ClientSecret
	p.PollMaxAttempts = temp.PollMaxAttempts

	timeout, err := parseDuration(temp.RequestTimeout, 60*time.Second)
	if err != nil {
		return fmt.Errorf("invalid request_timeout: %w", err)
	}
	p.RequestTimeout = timeout

	interval, err := parseDuration(temp.PollInterval, 2*time.Second)
	if err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}
	p.PollInterval = interval
	return nil
}

func (s *StreamingConfig) UnmarshalYAML(value *yaml.Node) error {
	type tempConfig struct {
		TokenDelay   string `yaml:"token_delay"`
		DefaultReply string `yaml:"default_reply"`
	}

	var temp tempConfig
	if err := value.Decode(&temp); err != nil {
		return err
	}

	s.DefaultReply = temp.DefaultReply

	delay, err := parseDuration(temp.TokenDelay, 40*time.Millisecond)
	if err != nil {
		return fmt.Errorf("invalid token_delay: %w", err)
	}
	s.TokenDelay = delay
	return nil
}

func parseDuration(s string, fallback time.Duration) (time.Duration, error) {
	if s == "" {
		return fallback, nil
	}
	return time.ParseDuration(s)
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Normalize fills defaults for optional values.
func (c *Config) Normalize() {
	if c.Server.RequestTimeout <= 0 {
		c.Server.RequestTimeout = 60 * time.Second
	}
	if c.Server.LoggingLevel == "" {
		c.Server.LoggingLevel = "info"
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Database.MinConns < 0 {
		c.Database.MinConns = 0
	}
	if c.Database.ConnectTimeout <= 0 {
		c.Database.ConnectTimeout = 10 * time.Second
	}
	if c.Pricing.BaseUnits <= 0 {
		c.Pricing.BaseUnits = 10
	}
	if c.Providers.OpenAI.ImageModel == "" {
		c.Providers.OpenAI.ImageModel = "dall-e-3"
	}
	if c.Providers.OpenAI.VisionModel == "" {
		c.Providers.OpenAI.VisionModel = "gpt-4o"
	}
	if c.Providers.OpenAI.ChatModel == "" {
		c.Providers.OpenAI.ChatModel = "gpt-4o-mini"
	}
	if c.Providers.Anthropic.ChatModel == "" {
		c.Providers.Anthropic.ChatModel = "claude-3-5-sonnet-latest"
	}
	if c.Providers.Anthropic.MaxTokens <= 0 {
		c.Providers.Anthropic.MaxTokens = 1024
	}
	if c.Providers.Gemini.ImageModel == "" {
		c.Providers.Gemini.ImageModel = "gemini-2.0-flash-exp-image-generation"
	}
	if c.Providers.Gemini.VisionModel == "" {
		c.Providers.Gemini.VisionModel = "gemini-2.0-flash"
	}
	if c.Providers.PixelForge.PollInterval <= 0 {
		c.Providers.PixelForge.PollInterval = 2 * time.Second
	}
	if c.Providers.PixelForge.PollMaxAttempts <= 0 {
		c.Providers.PixelForge.PollMaxAttempts = 30
	}
	if c.Providers.PixelForge.RequestTimeout <= 0 {
		c.Providers.PixelForge.RequestTimeout = 60 * time.Second
	}
	if len(c.Chains.Image) == 0 {
		c.Chains.Image = []string{"pixelforge", "gemini", "openai"}
	}
	if len(c.Chains.Vision) == 0 {
		c.Chains.Vision = []string{"gemini", "openai"}
	}
	if len(c.Chains.Text) == 0 {
		c.Chains.Text = []string{"anthropic", "openai"}
	}
	if c.Streaming.TokenDelay <= 0 {
		c.Streaming.TokenDelay = 40 * time.Millisecond
	}
	if c.Streaming.DefaultReply == "" {
		c.Streaming.DefaultReply = "Thank you for your message. I am here for you, always."
	}
	if c.Monitoring.HealthCheckPath == "" {
		c.Monitoring.HealthCheckPath = "/health"
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "error": true}
	if !validLevels[c.Server.LoggingLevel] {
		return fmt.Errorf("invalid logging_level: %s (must be info, debug, or error)", c.Server.LoggingLevel)
	}

	if c.Database.URL == "" {
		return fmt.Errorf("database url is required")
	}

	if c.Assets.SavePath == "" {
		return fmt.Errorf("assets save_path is required")
	}
	if c.Assets.PublicBaseURL == "" {
		return fmt.Errorf("assets public_base_url is required")
	}

	if c.Providers.PixelForge.BaseURL != "" {
		if err := validateHTTPURL("pixelforge base_url", c.Providers.PixelForge.BaseURL); err != nil {
			return err
		}
	}
	if c.Providers.PixelForge.TokenURL != "" {
		if err := validateHTTPURL("pixelforge token_url", c.Providers.PixelForge.TokenURL); err != nil {
			return err
		}
	}

	known := map[string]bool{"pixelforge": true, "gemini": true, "openai": true, "anthropic": true}
	for _, chain := range [][]string{c.Chains.Image, c.Chains.Vision, c.Chains.Text} {
		for _, id := range chain {
			if !known[id] {
				return fmt.Errorf("unknown provider in chain: %s", id)
			}
		}
	}

	return nil
}

func validateHTTPURL(field, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: invalid url: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: must use http or https scheme, got: %s", field, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s: must have a host", field)
	}
	return nil
}
