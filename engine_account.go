package authd

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authd/internal"
	"github.com/MrEthical07/authd/password"
)

// CreateAccount registers a pending account and queues its verification email. At most
// Account.MaxConcurrentSignups run at once; further callers wait. It returns the new
// subject id.
func (e *Engine) CreateAccount(ctx context.Context, email, plain string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	if err := e.signups.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer e.signups.Release(1)

	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	if err := checkPassword(plain, e.config.Password.MaxPasswordBytes); err != nil {
		return "", err
	}

	if _, err := e.users.GetUserByEmail(ctx, email); err == nil {
		e.metricInc(MetricAccountCreationDuplicate)
		return "", ErrAccountExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", e.userStoreFailure(ErrAccountCreationUnavailable, "get_user_by_email", err)
	}

	hash, err := e.hashPool.Submit(ctx, plain)
	if err != nil {
		return "", e.workerFailure("hash_pass", err)
	}

	code, err := internal.NewVerifyCode()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAccountCreationUnavailable, err)
	}

	user := UserRecord{
		SubjectID:    internal.NewSubjectID(),
		Email:        email,
		PasswordHash: hash,
		Status:       AccountPendingVerification,
		CreatedAt:    e.now().UTC(),
	}

	// The account is inserted only once its code is stored, and removed again if the email
	// cannot be queued. A half-created account would block every retry with ErrAccountExists.
	if err := e.store.AddVerifyCode(ctx, code, user.SubjectID); err != nil {
		return "", e.cacheFailure(ErrAccountCreationUnavailable, "add_verify_code", err)
	}
	if err := e.users.CreatePendingUser(ctx, user); err != nil {
		if errors.Is(err, ErrProviderDuplicateIdentifier) {
			e.metricInc(MetricAccountCreationDuplicate)
			return "", ErrAccountExists
		}
		return "", e.userStoreFailure(ErrAccountCreationUnavailable, "create_pending_user", err)
	}

	msg := VerificationEmail{To: email, Code: code, Link: e.verifyLink(code)}
	if err := e.emailPool.SubmitFireAndForget(ctx, msg); err != nil {
		if delErr := e.users.DeleteUser(context.WithoutCancel(ctx), user.SubjectID); delErr != nil {
			e.logger.Warn("pending account left behind",
				zap.String("subsystem", subsystemUserStore), zap.Error(delErr))
		}
		return "", e.workerFailure("verify_email", err)
	}

	e.metricInc(MetricAccountCreationSuccess)
	return user.SubjectID, nil
}

// VerifyEmail consumes a verification code, activates the account and logs it in.
func (e *Engine) VerifyEmail(ctx context.Context, code string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if code == "" || len(code) > internal.VerifyCodeLength {
		e.metricInc(MetricEmailVerificationFailure)
		return nil, ErrVerifyCodeInvalid
	}

	subjectID, ok, err := e.store.PermitVerifyCode(ctx, code)
	if err != nil {
		return nil, e.cacheFailure(ErrSessionUnavailable, "permit_verify_code", err)
	}
	if !ok {
		e.metricInc(MetricEmailVerificationFailure)
		return nil, ErrVerifyCodeInvalid
	}

	if err := e.users.ConfirmUser(ctx, subjectID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.metricInc(MetricEmailVerificationFailure)
			return nil, ErrVerifyCodeInvalid
		}
		return nil, e.userStoreFailure(ErrUserStoreUnavailable, "confirm_user", err)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	return e.CreateSession(ctx, subjectID)
}

// DeleteAccount revokes every session of the account, then removes it. Sessions go first:
// rotation never consults the user store, so a deleted account must hold no refresh grant.
func (e *Engine) DeleteAccount(ctx context.Context, subjectID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if err := e.RevokeAll(ctx, subjectID); err != nil {
		return err
	}
	if err := e.users.DeleteUser(ctx, subjectID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return e.userStoreFailure(ErrUserStoreUnavailable, "delete_user", err)
	}

	e.metricInc(MetricAccountDeleted)
	return nil
}

// GetUser returns the account behind subjectID.
func (e *Engine) GetUser(ctx context.Context, subjectID string) (UserRecord, error) {
	if e == nil {
		return UserRecord{}, ErrEngineNotReady
	}
	user, err := e.users.GetUserByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return UserRecord{}, ErrUserNotFound
		}
		return UserRecord{}, e.userStoreFailure(ErrUserStoreUnavailable, "get_user_by_id", err)
	}
	return user, nil
}

// PurgeUnverified deletes pending accounts older than Account.PendingTTL.
func (e *Engine) PurgeUnverified(ctx context.Context) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	n, err := e.users.PurgeUnverified(ctx, e.now().Add(-e.config.Account.PendingTTL))
	if err != nil {
		return 0, e.userStoreFailure(ErrUserStoreUnavailable, "purge_unverified", err)
	}
	if n > 0 {
		e.logger.Info("purged unverified accounts", zap.Int64("count", n))
	}
	return n, nil
}

// RunJanitor calls PurgeUnverified every interval until ctx is done.
func (e *Engine) RunJanitor(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// Failures are logged by PurgeUnverified; the next tick retries.
			_, _ = e.PurgeUnverified(ctx)
		}
	}
}

func (e *Engine) verifyLink(code string) string {
	if e.config.Account.VerifyURL == "" {
		return ""
	}
	u, err := url.Parse(e.config.Account.VerifyURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

// normalizeEmail accepts a bare address only ("a@b.c", not "Name <a@b.c>").
func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > 254 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw || addr.Name != "" {
		return "", ErrInvalidEmail
	}
	at := strings.LastIndexByte(raw, '@')
	if at < 1 || !strings.Contains(raw[at+1:], ".") {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(raw), nil
}

func checkPassword(plain string, maxBytes int) error {
	if len(plain) < password.MinPasswordBytes {
		return ErrPasswordPolicy
	}
	if maxBytes > 0 && len(plain) > maxBytes {
		return ErrPasswordPolicy
	}
	return nil
}
