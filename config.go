package authd

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/authd/password"
)

// Config is the full engine configuration. Build one with [DefaultConfig] and override fields;
// it is treated as immutable once passed to [Builder.WithConfig].
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Workers  WorkersConfig
	Password password.Config
	Account  AccountConfig
	Security SecurityConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig points at the ES256 key pair. PublicKey is mandatory; leaving PrivateKey empty (or
// pointing it at a missing file) runs the engine in verify-only mode. Both accept inline PEM
// or a file path.
type JWTConfig struct {
	PrivateKey string
	PublicKey  string
	Leeway     time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig sets token lifetimes and the Redis key namespace.
type SessionConfig struct {
	RedisPrefix string
	AccessTTL   time.Duration
	RefreshTTL  time.Duration
	VerifyTTL   time.Duration
}

// CookieConfig controls the Set-Cookie attributes of session cookies.
type CookieConfig struct {
	// Domain is the parent domain, e.g. ".example.com". Empty means host-only cookies.
	Domain string
	// Secure should only be false for local plain-HTTP development.
	Secure bool
}

/*
====================================
WORKER CONFIG
====================================
*/

// PoolConfig sizes one crypto worker pool.
type PoolConfig struct {
	Workers    int
	QueueDepth int
}

// WorkersConfig sizes each task kind independently.
type WorkersConfig struct {
	HashPassword   PoolConfig
	VerifyPassword PoolConfig
	VerifyEmail    PoolConfig
	// EmailInterval is the pause between two email batches.
	EmailInterval time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig governs signup.
type AccountConfig struct {
	MaxConcurrentSignups int64
	// PendingTTL is how long an unverified account survives before the janitor purges it.
	PendingTTL time.Duration
	// VerifyURL is the link sent in verification emails; the code is appended as ?code=.
	VerifyURL string
	// UpgradeHashOnLogin re-hashes a password after a successful login when the stored hash
	// uses weaker parameters than Password.
	UpgradeHashOnLogin bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds the Redis-backed throttles.
type SecurityConfig struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	EnableRefreshThrottle   bool
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

// MetricsConfig toggles the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults: 15 minute access tokens, 15 day refresh tokens,
// 12 hashing and 12 verifying workers with 2048-deep queues, and one email worker draining up
// to 100 messages every 1.2 seconds.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			Leeway: 0,
		},
		Session: SessionConfig{
			RedisPrefix: "authd",
			AccessTTL:   900 * time.Second,
			RefreshTTL:  1_296_000 * time.Second,
			VerifyTTL:   10 * time.Minute,
		},
		Cookie: CookieConfig{
			Secure: true,
		},
		Workers: WorkersConfig{
			HashPassword:   PoolConfig{Workers: 12, QueueDepth: 2048},
			VerifyPassword: PoolConfig{Workers: 12, QueueDepth: 2048},
			VerifyEmail:    PoolConfig{Workers: 1, QueueDepth: 100},
			EmailInterval:  1200 * time.Millisecond,
		},
		Password: password.DefaultConfig(),
		Account: AccountConfig{
			MaxConcurrentSignups: 8,
			PendingTTL:           10 * time.Minute,
			UpgradeHashOnLogin:   true,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			EnableRefreshThrottle:   true,
			MaxRefreshAttempts:      20,
			RefreshCooldownDuration: time.Minute,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.AccessTTL < time.Second {
		return errors.New("Session AccessTTL must be >= 1s")
	}
	if c.Session.RefreshTTL <= c.Session.AccessTTL {
		return errors.New("Session RefreshTTL must be greater than AccessTTL")
	}
	if c.Session.AccessTTL%time.Second != 0 || c.Session.RefreshTTL%time.Second != 0 {
		return errors.New("Session TTLs must be whole seconds")
	}
	if c.Session.VerifyTTL < time.Second {
		return errors.New("Session VerifyTTL must be >= 1s")
	}
	if strings.ContainsAny(c.Session.RedisPrefix, " :") {
		return errors.New("Session RedisPrefix must not contain spaces or ':'")
	}

	// Workers
	for name, p := range map[string]PoolConfig{
		"HashPassword":   c.Workers.HashPassword,
		"VerifyPassword": c.Workers.VerifyPassword,
		"VerifyEmail":    c.Workers.VerifyEmail,
	} {
		if p.Workers < 1 {
			return errors.New("Workers " + name + " must have at least one worker")
		}
		if p.QueueDepth < 1 {
			return errors.New("Workers " + name + " QueueDepth must be >= 1")
		}
	}
	if c.Workers.EmailInterval < 0 {
		return errors.New("Workers EmailInterval must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Account
	if c.Account.MaxConcurrentSignups < 1 {
		return errors.New("Account MaxConcurrentSignups must be >= 1")
	}
	if c.Account.PendingTTL <= 0 {
		return errors.New("Account PendingTTL must be > 0")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 {
		return errors.New("Security MaxLoginAttempts must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts < 1 {
			return errors.New("Security MaxRefreshAttempts must be >= 1")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return errors.New("Security RefreshCooldownDuration must be > 0")
		}
	}

	return nil
}

func accessSeconds(c Config) int64 {
	return int64(c.Session.AccessTTL / time.Second)
}

func refreshSeconds(c Config) int64 {
	return int64(c.Session.RefreshTTL / time.Second)
}
