package authd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/MrEthical07/authd/internal/rate"
	"github.com/MrEthical07/authd/internal/security"
	"github.com/MrEthical07/authd/internal/workers"
	"github.com/MrEthical07/authd/jwt"
	"github.com/MrEthical07/authd/password"
	"github.com/MrEthical07/authd/session"
)

// Subsystem names used in log fields.
const (
	subsystemTokenCache = "token_cache"
	subsystemWorkerPool = "worker_pool"
	subsystemUserStore  = "user_store"
	subsystemMailer     = "mailer"
)

type verifyRequest struct {
	password string
	hash     string
}

// Engine is the session engine: it mints, rotates and revokes sessions, classifies request
// credentials, and runs the account flows on top of them. Create one with [Builder.Build].
// All methods are safe for concurrent use.
type Engine struct {
	config  Config
	store   *session.Store
	codec   *jwt.Codec
	limiter *rate.Limiter
	hasher  *password.Argon2
	users   UserProvider
	mailer  Mailer
	logger  *zap.Logger
	metrics *Metrics
	signups *semaphore.Weighted
	now     func() time.Time

	hashPool   *workers.Pool[string, string]
	verifyPool *workers.Pool[verifyRequest, bool]
	emailPool  *workers.Pool[VerificationEmail, struct{}]

	// background tracks password rehashes still running after their login returned.
	background sync.WaitGroup
	closed     atomic.Bool
}

func (e *Engine) startWorkers() {
	e.hashPool = workers.New(workers.Config{
		Name:       "hash_pass",
		Workers:    e.config.Workers.HashPassword.Workers,
		QueueDepth: e.config.Workers.HashPassword.QueueDepth,
	}, func(plain string) (string, bool) {
		hash, err := e.hasher.Hash(plain)
		if err != nil {
			return "", false
		}
		return hash, true
	})

	e.verifyPool = workers.New(workers.Config{
		Name:       "verify_pass",
		Workers:    e.config.Workers.VerifyPassword.Workers,
		QueueDepth: e.config.Workers.VerifyPassword.QueueDepth,
	}, func(req verifyRequest) (bool, bool) {
		ok, err := e.hasher.Verify(req.password, req.hash)
		if err != nil {
			return false, false
		}
		return ok, true
	})

	e.emailPool = workers.NewBatched(workers.Config{
		Name:       "verify_email",
		Workers:    e.config.Workers.VerifyEmail.Workers,
		QueueDepth: e.config.Workers.VerifyEmail.QueueDepth,
	}, e.sendVerificationBatch, e.config.Workers.EmailInterval)
}

func (e *Engine) sendVerificationBatch(batch []VerificationEmail) {
	if e.mailer == nil {
		e.logger.Warn("verification emails dropped, no mailer configured",
			zap.String("subsystem", subsystemMailer), zap.Int("count", len(batch)))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := e.mailer.SendVerification(ctx, batch); err != nil {
		e.logger.Error("verification batch failed",
			zap.String("subsystem", subsystemMailer), zap.Int("count", len(batch)), zap.Error(err))
		for range batch {
			e.metricInc(MetricEmailFailed)
		}
		return
	}
	for range batch {
		e.metricInc(MetricEmailSent)
	}
}

// Close waits for pending rehashes, then stops the worker pools. Queued tasks are drained first.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.background.Wait()
	e.hashPool.Close()
	e.verifyPool.Close()
	e.emailPool.Close()
}

// Ping checks the token cache.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrSessionUnavailable, err)
	}
	return nil
}

// CanSign reports whether the engine can mint tokens or only verify them.
func (e *Engine) CanSign() bool {
	return e != nil && e.codec.CanSign()
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// WorkerStats returns the counters of every crypto pool.
func (e *Engine) WorkerStats() []workers.Stats {
	if e == nil {
		return nil
	}
	return []workers.Stats{e.hashPool.Stats(), e.verifyPool.Stats(), e.emailPool.Stats()}
}

// MetricsSnapshot copies the engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, start time.Time) {
	if e == nil || !e.metrics.LatencyEnabled() {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// cacheFailure logs a token cache error and wraps it with sentinel.
func (e *Engine) cacheFailure(sentinel error, op string, err error) error {
	e.metricInc(MetricBackendUnavailable)
	e.logger.Error("token cache operation failed",
		zap.String("subsystem", subsystemTokenCache), zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %w", sentinel, err)
}

func (e *Engine) userStoreFailure(sentinel error, op string, err error) error {
	e.metricInc(MetricBackendUnavailable)
	e.logger.Error("user store operation failed",
		zap.String("subsystem", subsystemUserStore), zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %w", sentinel, err)
}

func (e *Engine) workerFailure(pool string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	e.metricInc(MetricWorkerUnavailable)
	e.logger.Error("crypto worker gave no result",
		zap.String("subsystem", subsystemWorkerPool), zap.String("pool", pool), zap.Error(err))
	return fmt.Errorf("%w: %w", ErrWorkerUnavailable, err)
}

// SecurityReport summarizes how this engine is hardened.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}
	c := e.config
	return security.BuildReport(security.ReportInput{
		CanSign:    e.codec.CanSign(),
		AccessTTL:  c.Session.AccessTTL,
		RefreshTTL: c.Session.RefreshTTL,
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
		},
		UpgradeHashOnLogin:    c.Account.UpgradeHashOnLogin,
		CookieSecure:          c.Cookie.Secure,
		CookieDomain:          c.Cookie.Domain,
		MaxLoginAttempts:      c.Security.MaxLoginAttempts,
		LoginCooldownDuration: c.Security.LoginCooldownDuration,
		EnableIPThrottle:      c.Security.EnableIPThrottle,
		EnableRefreshThrottle: c.Security.EnableRefreshThrottle,
		MailerConfigured:      e.mailer != nil,
	})
}
