package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreMongo  = "mongo"
	StoreMemory = "memory"

	devJWTSecret = "dev-only-insecure-secret-change-me"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	StoreDriver     string
	MongoDBURI      string
	MongoDBPassword string
	MongoDBDatabase string

	JWTSecret string
	TokenTTL  time.Duration

	FrontendURLs []string
	StaticDir    string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	RabbitMQURL        string
	RabbitMQEmailQueue string

	MailgunDomain string
	MailgunAPIKey string
	MailgunSender string

	RateLimitAuthPerMinute   int
	RateLimitPublicPerMinute int
	MetricsEnabled           bool
}

// LoadConfig reads and validates the API server's configuration.
func LoadConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWorkerConfig reads the configuration for the notify worker, which
// only needs the queue and Mailgun settings.
func LoadWorkerConfig() (*Config, error) {
	cfg, err := load()
	if err != nil {
		return nil, err
	}
	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}
	if !cfg.MailgunConfigured() {
		return nil, fmt.Errorf("MAILGUN_DOMAIN, MAILGUN_API_KEY and MAILGUN_SENDER are required")
	}
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvWithDefault("PORT", "8080"),
		Environment: getEnvWithDefault("ENVIRONMENT", "development"),
		LogLevel:    getEnvWithDefault("LOG_LEVEL", ""),

		StoreDriver:     strings.ToLower(getEnvWithDefault("STORE_DRIVER", StoreMongo)),
		MongoDBURI:      os.Getenv("MONGODB_URI"),
		MongoDBPassword: os.Getenv("MONGODB_PASSWORD"),
		MongoDBDatabase: getEnvWithDefault("MONGODB_DATABASE", "campus_events"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		FrontendURLs: splitList(getEnvWithDefault("FRONTEND_URL", "http://localhost:3000")),
		StaticDir:    os.Getenv("STATIC_DIR"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisChannel:  getEnvWithDefault("REDIS_CHANNEL", "campus_events:notifications"),

		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		RabbitMQEmailQueue: getEnvWithDefault("RABBITMQ_EMAIL_QUEUE", "email_jobs"),

		MailgunDomain: os.Getenv("MAILGUN_DOMAIN"),
		MailgunAPIKey: os.Getenv("MAILGUN_API_KEY"),
		MailgunSender: os.Getenv("MAILGUN_SENDER"),
	}

	var err error
	if cfg.TokenTTL, err = getDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RateLimitAuthPerMinute, err = getInt("RATE_LIMIT_AUTH_PER_MINUTE", 10); err != nil {
		return nil, err
	}
	if cfg.RateLimitPublicPerMinute, err = getInt("RATE_LIMIT_PUBLIC_PER_MINUTE", 120); err != nil {
		return nil, err
	}
	if cfg.MetricsEnabled, err = getBool("METRICS_ENABLED", true); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StoreMongo:
		if c.MongoDBURI == "" {
			return fmt.Errorf("MONGODB_URI is required")
		}
		if strings.Contains(c.MongoDBURI, "<password>") && c.MongoDBPassword == "" {
			return fmt.Errorf("MONGODB_PASSWORD is required when MONGODB_URI contains <password>")
		}
	case StoreMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMongo, StoreMemory, c.StoreDriver)
	}

	if c.JWTSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET is required")
		}
		c.JWTSecret = devJWTSecret
	}
	if c.IsProduction() && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("TOKEN_TTL must be positive")
	}
	return nil
}

// MailgunConfigured reports whether the notify worker can send email.
func (c *Config) MailgunConfigured() bool {
	return c.MailgunDomain != "" && c.MailgunAPIKey != "" && c.MailgunSender != ""
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// SlogLevel resolves LOG_LEVEL, defaulting to info in production and debug
// elsewhere.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if c.IsProduction() {
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration like 24h: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimRight(strings.TrimSpace(part), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
