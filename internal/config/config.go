package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Reddit   RedditConfig   `yaml:"reddit"`
	Telegram TelegramConfig `yaml:"telegram"`
	Grok     GrokConfig     `yaml:"grok"`
	Browser  BrowserConfig  `yaml:"browser"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port         int           `yaml:"port" envconfig:"SERVER_PORT" default:"9852"`
	APIKey       string        `yaml:"api_key" envconfig:"API_KEY"`
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	// PublicBaseURL is used to build preview-page links in text deliveries.
	PublicBaseURL string `yaml:"public_base_url" envconfig:"SERVER_PUBLIC_BASE_URL"`
}

// StoreConfig holds reservation store configuration.
type StoreConfig struct {
	Path string `yaml:"path" envconfig:"STORE_PATH" default:"/data/relay.db"`
	// TTL bounds every reservation; after expiry a key reverts to absent.
	TTL time.Duration `yaml:"ttl" envconfig:"STORE_TTL" default:"168h"`
}

// RedditConfig holds feed source configuration.
type RedditConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"REDDIT_BASE_URL" default:"https://www.reddit.com"`
	Subreddit string        `yaml:"subreddit" envconfig:"REDDIT_SUBREDDIT"`
	Flair     string        `yaml:"flair" envconfig:"REDDIT_FLAIR"`
	Limit     int           `yaml:"limit" envconfig:"REDDIT_LIMIT" default:"25"`
	UserAgent string        `yaml:"user_agent" envconfig:"REDDIT_USER_AGENT" default:"vidrelay/1.0"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"REDDIT_TIMEOUT" default:"15s"`
}

// TelegramConfig holds delivery sink configuration.
type TelegramConfig struct {
	BaseURL  string        `yaml:"base_url" envconfig:"TELEGRAM_BASE_URL" default:"https://api.telegram.org"`
	BotToken string        `yaml:"bot_token" envconfig:"TELEGRAM_BOT_TOKEN"`
	ChatID   string        `yaml:"chat_id" envconfig:"TELEGRAM_CHAT_ID"`
	Timeout  time.Duration `yaml:"timeout" envconfig:"TELEGRAM_TIMEOUT" default:"30s"`
}

// GrokConfig holds caption generation configuration.
type GrokConfig struct {
	APIKey  string        `yaml:"api_key" envconfig:"GROK_API_KEY"`
	BaseURL string        `yaml:"base_url" envconfig:"GROK_BASE_URL" default:"https://api.x.ai/v1"`
	Timeout time.Duration `yaml:"timeout" envconfig:"GROK_TIMEOUT" default:"20s"`
	Model   string        `yaml:"model" envconfig:"GROK_MODEL" default:"grok-beta"`
}

// BrowserConfig holds headless browser resolver configuration.
type BrowserConfig struct {
	Enabled      bool          `yaml:"enabled" envconfig:"BROWSER_ENABLED" default:"true"`
	UserAgent    string        `yaml:"user_agent" envconfig:"BROWSER_USER_AGENT" default:"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"`
	NavTimeout   time.Duration `yaml:"nav_timeout" envconfig:"BROWSER_NAV_TIMEOUT" default:"8s"`
	WaitTimeout  time.Duration `yaml:"wait_timeout" envconfig:"BROWSER_WAIT_TIMEOUT" default:"5s"`
	CloseTimeout time.Duration `yaml:"close_timeout" envconfig:"BROWSER_CLOSE_TIMEOUT" default:"3s"`
}

// PipelineConfig holds orchestration configuration.
type PipelineConfig struct {
	// MaxRetries is the per-post retry budget counted down across invocations.
	MaxRetries int           `yaml:"max_retries" envconfig:"PIPELINE_MAX_RETRIES" default:"5"`
	Interval   time.Duration `yaml:"interval" envconfig:"PIPELINE_INTERVAL" default:"10m"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
func (c *Config) Validate() error {
	if c.Reddit.Subreddit == "" {
		return fmt.Errorf("REDDIT_SUBREDDIT is required")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Telegram.ChatID == "" {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required")
	}
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("PIPELINE_MAX_RETRIES must be at least 1")
	}
	if c.Store.TTL <= 0 {
		return fmt.Errorf("STORE_TTL must be positive")
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
