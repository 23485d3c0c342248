package authd

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/MrEthical07/authd/internal/rate"
	"github.com/MrEthical07/authd/jwt"
	"github.com/MrEthical07/authd/password"
	"github.com/MrEthical07/authd/session"
)

// Builder assembles an [Engine]. It is single-use: Build may be called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	keys   *jwt.Config

	userProvider UserProvider
	mailer       Mailer
	logger       *zap.Logger
	clock        func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared Redis handle backing the token cache and throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithKeys supplies parsed keys and skips loading Config.JWT from PEM.
func (b *Builder) WithKeys(keys jwt.Config) *Builder {
	b.keys = &keys
	return b
}

// WithUserProvider sets the user profile store.
func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithMailer sets the verification email sender. Without one, verification emails are logged
// and dropped.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// WithClock overrides time.Now for the engine and its token cache.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads keys and starts the worker pools.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.userProvider == nil {
		return nil, errors.New("user provider required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var keys jwt.Config
	if b.keys != nil {
		keys = *b.keys
	} else {
		loaded, err := jwt.LoadKeys(cfg.JWT.PrivateKey, cfg.JWT.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("load signing keys: %w", err)
		}
		keys = loaded
	}
	keys.Leeway = cfg.JWT.Leeway
	codec, err := jwt.NewCodec(keys)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}

	now := b.clock
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{
		config: cfg,
		store: session.NewStore(b.redis, session.Config{
			Prefix:     cfg.Session.RedisPrefix,
			AccessTTL:  cfg.Session.AccessTTL,
			RefreshTTL: cfg.Session.RefreshTTL,
			VerifyTTL:  cfg.Session.VerifyTTL,
			Clock:      now,
		}),
		codec: codec,
		limiter: rate.New(b.redis, rate.Config{
			Prefix:                  cfg.Session.RedisPrefix,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		}),
		hasher:  hasher,
		users:   b.userProvider,
		mailer:  b.mailer,
		logger:  logger.With(zap.String("component", "authd")),
		metrics: NewMetrics(cfg.Metrics),
		signups: semaphore.NewWeighted(cfg.Account.MaxConcurrentSignups),
		now:     now,
	}
	e.startWorkers()

	if !codec.CanSign() {
		e.logger.Warn("no private key configured, engine is verify-only")
	}

	b.built = true
	return e, nil
}
