// Package config loads the authd process configuration from the environment and an optional
// .env file using Viper.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/internal/mail"
	"github.com/MrEthical07/authd/internal/stores"
)

// Config holds the process configuration. Every key is read from an AUTHD_* variable.
type Config struct {
	// Env is "development" or "production"; development switches to console logs.
	Env      string `mapstructure:"AUTHD_ENV"`
	LogLevel string `mapstructure:"AUTHD_LOG_LEVEL"`
	HTTPAddr string `mapstructure:"AUTHD_HTTP_ADDR"`
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration `mapstructure:"AUTHD_SHUTDOWN_TIMEOUT"`

	RedisAddr     string `mapstructure:"AUTHD_REDIS_ADDR"`
	RedisPassword string `mapstructure:"AUTHD_REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"AUTHD_REDIS_DB"`
	RedisPrefix   string `mapstructure:"AUTHD_REDIS_PREFIX"`

	DatabaseURL       string        `mapstructure:"AUTHD_DATABASE_URL"`
	DBMaxOpenConns    int           `mapstructure:"AUTHD_DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns    int           `mapstructure:"AUTHD_DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"AUTHD_DB_CONN_MAX_LIFETIME"`
	// MigrateOnStart applies pending migrations before serving.
	MigrateOnStart bool `mapstructure:"AUTHD_MIGRATE_ON_START"`

	// JWTPrivateKey and JWTPublicKey accept inline PEM or a file path. An empty private key
	// runs the engine verify-only.
	JWTPrivateKey string        `mapstructure:"AUTHD_JWT_PRIVATE_KEY"`
	JWTPublicKey  string        `mapstructure:"AUTHD_JWT_PUBLIC_KEY"`
	AccessTTL     time.Duration `mapstructure:"AUTHD_ACCESS_TTL"`
	RefreshTTL    time.Duration `mapstructure:"AUTHD_REFRESH_TTL"`

	CookieDomain string `mapstructure:"AUTHD_COOKIE_DOMAIN"`
	CookieSecure bool   `mapstructure:"AUTHD_COOKIE_SECURE"`

	VerifyURL       string        `mapstructure:"AUTHD_VERIFY_URL"`
	PendingTTL      time.Duration `mapstructure:"AUTHD_PENDING_TTL"`
	JanitorInterval time.Duration `mapstructure:"AUTHD_JANITOR_INTERVAL"`

	ResendAPIKey  string `mapstructure:"AUTHD_RESEND_API_KEY"`
	ResendBaseURL string `mapstructure:"AUTHD_RESEND_BASE_URL"`
	MailFrom      string `mapstructure:"AUTHD_MAIL_FROM"`
	MailSubject   string `mapstructure:"AUTHD_MAIL_SUBJECT"`

	TurnstileSecret   string `mapstructure:"AUTHD_TURNSTILE_SECRET"`
	TurnstileEndpoint string `mapstructure:"AUTHD_TURNSTILE_ENDPOINT"`

	// RateLimitRPM is the per-IP request budget on /user routes; zero disables it.
	RateLimitRPM int `mapstructure:"AUTHD_RATE_LIMIT_RPM"`

	MetricsEnabled    bool   `mapstructure:"AUTHD_METRICS_ENABLED"`
	LatencyHistograms bool   `mapstructure:"AUTHD_LATENCY_HISTOGRAMS"`
	OTLPEndpoint      string `mapstructure:"AUTHD_OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the environment.
// Env vars override .env.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine

	v.AutomaticEnv()

	d := authd.DefaultConfig()
	v.SetDefault("AUTHD_ENV", "production")
	v.SetDefault("AUTHD_LOG_LEVEL", "info")
	v.SetDefault("AUTHD_HTTP_ADDR", ":8080")
	v.SetDefault("AUTHD_SHUTDOWN_TIMEOUT", 10*time.Second)
	v.SetDefault("AUTHD_REDIS_ADDR", "localhost:6379")
	v.SetDefault("AUTHD_REDIS_PASSWORD", "")
	v.SetDefault("AUTHD_REDIS_DB", 0)
	v.SetDefault("AUTHD_REDIS_PREFIX", d.Session.RedisPrefix)
	v.SetDefault("AUTHD_DATABASE_URL", "")
	v.SetDefault("AUTHD_DB_MAX_OPEN_CONNS", 20)
	v.SetDefault("AUTHD_DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("AUTHD_DB_CONN_MAX_LIFETIME", 30*time.Minute)
	v.SetDefault("AUTHD_MIGRATE_ON_START", true)
	v.SetDefault("AUTHD_JWT_PRIVATE_KEY", "")
	v.SetDefault("AUTHD_JWT_PUBLIC_KEY", "")
	v.SetDefault("AUTHD_ACCESS_TTL", d.Session.AccessTTL)
	v.SetDefault("AUTHD_REFRESH_TTL", d.Session.RefreshTTL)
	v.SetDefault("AUTHD_COOKIE_DOMAIN", "")
	v.SetDefault("AUTHD_COOKIE_SECURE", d.Cookie.Secure)
	v.SetDefault("AUTHD_VERIFY_URL", "")
	v.SetDefault("AUTHD_PENDING_TTL", d.Account.PendingTTL)
	v.SetDefault("AUTHD_JANITOR_INTERVAL", time.Minute)
	v.SetDefault("AUTHD_RESEND_API_KEY", "")
	v.SetDefault("AUTHD_RESEND_BASE_URL", "")
	v.SetDefault("AUTHD_MAIL_FROM", "")
	v.SetDefault("AUTHD_MAIL_SUBJECT", "Verify your email address")
	v.SetDefault("AUTHD_TURNSTILE_SECRET", "")
	v.SetDefault("AUTHD_TURNSTILE_ENDPOINT", "")
	v.SetDefault("AUTHD_RATE_LIMIT_RPM", 120)
	v.SetDefault("AUTHD_METRICS_ENABLED", d.Metrics.Enabled)
	v.SetDefault("AUTHD_LATENCY_HISTOGRAMS", true)
	v.SetDefault("AUTHD_OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: AUTHD_HTTP_ADDR must be set")
	}
	if cfg.RedisAddr == "" {
		return nil, errors.New("config: AUTHD_REDIS_ADDR must be set")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: AUTHD_DATABASE_URL must be set")
	}
	if cfg.JWTPublicKey == "" {
		return nil, errors.New("config: AUTHD_JWT_PUBLIC_KEY must be set")
	}
	if cfg.JanitorInterval <= 0 {
		return nil, errors.New("config: AUTHD_JANITOR_INTERVAL must be > 0")
	}
	if cfg.ResendAPIKey != "" && cfg.MailFrom == "" {
		return nil, errors.New("config: AUTHD_MAIL_FROM must be set when AUTHD_RESEND_API_KEY is")
	}

	return &cfg, nil
}

// Engine maps the process configuration onto the engine defaults and validates the result.
func (c *Config) Engine() (authd.Config, error) {
	out := authd.DefaultConfig()
	out.JWT.PrivateKey = c.JWTPrivateKey
	out.JWT.PublicKey = c.JWTPublicKey
	out.Session.RedisPrefix = c.RedisPrefix
	out.Session.AccessTTL = c.AccessTTL
	out.Session.RefreshTTL = c.RefreshTTL
	out.Cookie.Domain = c.CookieDomain
	out.Cookie.Secure = c.CookieSecure
	out.Account.VerifyURL = c.VerifyURL
	out.Account.PendingTTL = c.PendingTTL
	out.Metrics.Enabled = c.MetricsEnabled
	out.Metrics.EnableLatencyHistograms = c.MetricsEnabled && c.LatencyHistograms

	if err := out.Validate(); err != nil {
		return authd.Config{}, err
	}
	return out, nil
}

// Pool returns the user store connection pool settings.
func (c *Config) Pool() stores.PoolConfig {
	return stores.PoolConfig{
		MaxOpenConns:    c.DBMaxOpenConns,
		MaxIdleConns:    c.DBMaxIdleConns,
		ConnMaxLifetime: c.DBConnMaxLifetime,
	}
}

// Mail returns the Resend client settings. Enabled is false when no API key is set.
func (c *Config) Mail() (mail.Config, bool) {
	return mail.Config{
		APIKey:  c.ResendAPIKey,
		BaseURL: c.ResendBaseURL,
		From:    c.MailFrom,
		Subject: c.MailSubject,
	}, c.ResendAPIKey != ""
}

// Logger builds the process logger: console output in development, JSON otherwise.
func (c *Config) Logger() (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if c.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = level
	return zc.Build()
}
