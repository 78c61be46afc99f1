// Package config loads service configuration from a YAML file with
// environment-variable overrides, so secrets can live in .env locally and in
// real env vars on the deployment platform.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the newsletter service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Mailer     MailerConfig     `yaml:"mailer"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Admin      AdminConfig      `yaml:"admin"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the listen host, with container detection.
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional Redis connection for the dispatch lock.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// MailerConfig selects and configures the email provider.
type MailerConfig struct {
	// Provider is "ses" or "smtp".
	Provider  string `yaml:"provider"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`

	SES  SESConfig  `yaml:"ses"`
	SMTP SMTPConfig `yaml:"smtp"`

	// WelcomeAttachments are file paths attached to every welcome email.
	WelcomeAttachments []string `yaml:"welcome_attachments"`
}

// SESConfig holds AWS SES settings. Empty keys mean the default AWS
// credential chain (IAM role).
type SESConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// SMTPConfig holds SMTP relay settings.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	TLSMode  string `yaml:"tls_mode"` // "auto", "ssl", "none"
}

// NewsletterConfig holds the public base URL and dispatch tunables.
type NewsletterConfig struct {
	// BaseURL is the public origin for confirm/unsubscribe links.
	BaseURL string `yaml:"base_url"`
	// BatchSize caps how many recipients go out concurrently per batch.
	BatchSize int `yaml:"batch_size"`
	// BatchPauseSeconds is the wait between batches.
	BatchPauseSeconds int `yaml:"batch_pause_seconds"`
	// SendLockTTLSeconds bounds how long a crashed send blocks the next one.
	SendLockTTLSeconds int `yaml:"send_lock_ttl_seconds"`
}

// BatchPause returns the inter-batch pause as a duration.
func (c NewsletterConfig) BatchPause() time.Duration {
	return time.Duration(c.BatchPauseSeconds) * time.Second
}

// SendLockTTL returns the dispatch lock TTL as a duration.
func (c NewsletterConfig) SendLockTTL() time.Duration {
	return time.Duration(c.SendLockTTLSeconds) * time.Second
}

// AdminConfig holds the shared-secret key for operator endpoints.
type AdminConfig struct {
	APIKey string `yaml:"api_key"`
}

// Load reads and parses the configuration file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Mailer.Provider == "" {
		cfg.Mailer.Provider = "smtp"
	}
	if cfg.Mailer.SES.Region == "" {
		cfg.Mailer.SES.Region = "us-east-1"
	}
	if cfg.Mailer.SMTP.Port == 0 {
		cfg.Mailer.SMTP.Port = 587
	}
	if cfg.Newsletter.BaseURL == "" {
		cfg.Newsletter.BaseURL = "http://localhost:8080"
	}
	if cfg.Newsletter.BatchSize == 0 {
		cfg.Newsletter.BatchSize = 90
	}
	if cfg.Newsletter.BatchPauseSeconds == 0 {
		cfg.Newsletter.BatchPauseSeconds = 60
	}
	if cfg.Newsletter.SendLockTTLSeconds == 0 {
		cfg.Newsletter.SendLockTTLSeconds = 1800
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// A .env file (if present) is loaded first.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ADMIN_API_KEY"); v != "" {
		cfg.Admin.APIKey = v
	}
	if v := os.Getenv("NEWSLETTER_BASE_URL"); v != "" {
		cfg.Newsletter.BaseURL = v
	}
	if v := os.Getenv("MAILER_PROVIDER"); v != "" {
		cfg.Mailer.Provider = v
	}
	if v := os.Getenv("MAILER_FROM_EMAIL"); v != "" {
		cfg.Mailer.FromEmail = v
	}
	if v := os.Getenv("MAILER_FROM_NAME"); v != "" {
		cfg.Mailer.FromName = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.Mailer.SES.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.Mailer.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.Mailer.SES.Region = v
	}
	if v := os.Getenv("SMTP_HOST"); v != "" {
		cfg.Mailer.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_USERNAME"); v != "" {
		cfg.Mailer.SMTP.Username = v
	}
	if v := os.Getenv("SMTP_PASSWORD"); v != "" {
		cfg.Mailer.SMTP.Password = v
	}

	return cfg, nil
}
