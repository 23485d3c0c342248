package authd

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authd/internal/rate"
)

const rehashTimeout = 30 * time.Second

// Login checks credentials on the verify_pass pool and opens a session. An unknown email and
// a wrong password both return [ErrInvalidCredentials]. The caller's IP is read from ctx
// (see [WithClientIP]) for per-IP throttling.
func (e *Engine) Login(ctx context.Context, email, plain string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := checkPassword(plain, e.config.Password.MaxPasswordBytes); err != nil {
		return nil, ErrInvalidCredentials
	}

	ip := clientIPFromContext(ctx)
	if err := e.limiter.CheckLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			return nil, ErrLoginRateLimited
		}
		return nil, e.cacheFailure(ErrSessionUnavailable, "login_throttle", err)
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.loginFailed(ctx, email, ip)
		}
		return nil, e.userStoreFailure(ErrUserStoreUnavailable, "get_user_by_email", err)
	}

	start := time.Now()
	ok, err := e.verifyPool.Submit(ctx, verifyRequest{password: plain, hash: user.PasswordHash})
	e.metricObserve(MetricPasswordVerifyLatency, start)
	if err != nil {
		return nil, e.workerFailure("verify_pass", err)
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, ip)
	}
	if user.Status != AccountActive {
		return nil, ErrAccountUnverified
	}

	if err := e.limiter.ResetLogin(ctx, email, ip); err != nil {
		e.logger.Warn("login throttle reset failed",
			zap.String("subsystem", subsystemTokenCache), zap.Error(err))
	}

	s, err := e.CreateSession(ctx, user.SubjectID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricLoginSuccess)

	if e.config.Account.UpgradeHashOnLogin {
		e.scheduleRehash(ctx, user, plain)
	}
	return s, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip string) error {
	e.metricInc(MetricLoginFailure)
	if err := e.limiter.IncrementLogin(ctx, email, ip); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
			return ErrLoginRateLimited
		}
		e.logger.Warn("login throttle increment failed",
			zap.String("subsystem", subsystemTokenCache), zap.Error(err))
	}
	return ErrInvalidCredentials
}

// scheduleRehash re-hashes a password stored with weaker parameters off the request path.
// Failures only log; the login has already succeeded.
func (e *Engine) scheduleRehash(ctx context.Context, user UserRecord, plain string) {
	stale, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !stale || e.closed.Load() {
		return
	}

	e.background.Add(1)
	go func() {
		defer e.background.Done()
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rehashTimeout)
		defer cancel()
		e.upgradeHash(rctx, user, plain)
	}()
}

func (e *Engine) upgradeHash(ctx context.Context, user UserRecord, plain string) {
	hash, err := e.hashPool.Submit(ctx, plain)
	if err != nil {
		e.logger.Warn("password rehash skipped",
			zap.String("subsystem", subsystemWorkerPool), zap.Error(err))
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.SubjectID, hash); err != nil {
		e.logger.Warn("password rehash not stored",
			zap.String("subsystem", subsystemUserStore), zap.Error(err))
		return
	}
	e.metricInc(MetricPasswordRehashed)
}
