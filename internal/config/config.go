package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store backends shared by the correlation and dedupe settings.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
)

// Config holds application configuration
type Config struct {
	Port      string `env:"PORT" envDefault:"8080"`
	Env       string `env:"ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Telegram
	BotToken             string        `env:"BOT_TOKEN"`
	OperatorID           string        `env:"ADMIN_ID"`
	TelegramAPIBase      string        `env:"TELEGRAM_API_BASE" envDefault:"https://api.telegram.org"`
	TelegramTimeout      time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`
	TelegramMaxRetries   int           `env:"TELEGRAM_MAX_RETRIES" envDefault:"2"`
	TelegramRetryBackoff time.Duration `env:"TELEGRAM_RETRY_BACKOFF" envDefault:"250ms"`
	RequestContact       bool          `env:"REQUEST_CONTACT" envDefault:"true"`
	WebhookURL           string        `env:"WEBHOOK_URL"`

	// Correlation and dedupe state
	CorrelationBackend string        `env:"CORRELATION_BACKEND" envDefault:"memory"`
	CorrelationTTL     time.Duration `env:"CORRELATION_TTL" envDefault:"720h"`
	DedupeBackend      string        `env:"DEDUPE_BACKEND" envDefault:"memory"`
	DedupeTTL          time.Duration `env:"DEDUPE_TTL" envDefault:"24h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisTLS      bool   `env:"REDIS_TLS" envDefault:"false"`

	// AWS
	AWSRegion           string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	AWSEndpointOverride string `env:"AWS_ENDPOINT_OVERRIDE"`
	RelayTable          string `env:"RELAY_TABLE" envDefault:"operator_relay"`
	DeadLetterQueueURL  string `env:"DEADLETTER_QUEUE_URL"`
}

// Load reads configuration from environment variables, after merging an
// optional .env file from the working directory.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	cfg.OperatorID = strings.TrimSpace(cfg.OperatorID)
	cfg.CorrelationBackend = normalizeBackend(cfg.CorrelationBackend)
	cfg.DedupeBackend = normalizeBackend(cfg.DedupeBackend)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// HasCredentials reports whether both BOT_TOKEN and ADMIN_ID are present.
// Their absence is not a load error: the webhook reports it per request.
func (c *Config) HasCredentials() bool {
	return c != nil && c.BotToken != "" && c.OperatorID != ""
}

// NeedsAWS reports whether any configured component talks to AWS.
func (c *Config) NeedsAWS() bool {
	return c.CorrelationBackend == BackendDynamoDB ||
		c.DedupeBackend == BackendDynamoDB ||
		strings.TrimSpace(c.DeadLetterQueueURL) != ""
}

// NeedsRedis reports whether any configured component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.CorrelationBackend == BackendRedis || c.DedupeBackend == BackendRedis
}

func (c *Config) validate() error {
	for name, backend := range map[string]string{
		"CORRELATION_BACKEND": c.CorrelationBackend,
		"DEDUPE_BACKEND":      c.DedupeBackend,
	} {
		switch backend {
		case BackendNone, BackendMemory, BackendRedis, BackendDynamoDB:
		default:
			return fmt.Errorf("config: unknown %s %q", name, backend)
		}
	}
	if c.NeedsRedis() && strings.TrimSpace(c.RedisAddr) == "" {
		return fmt.Errorf("config: REDIS_ADDR is required for the redis backend")
	}
	if c.TelegramMaxRetries < 0 {
		return fmt.Errorf("config: TELEGRAM_MAX_RETRIES must not be negative")
	}
	return nil
}

func normalizeBackend(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return BackendNone
	}
	return v
}
