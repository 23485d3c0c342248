package authd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MrEthical07/authd/internal"
	"github.com/MrEthical07/authd/internal/rate"
	"github.com/MrEthical07/authd/jwt"
	"github.com/MrEthical07/authd/session"
)

// Session is a freshly minted (or extended) pair of tokens. Cookie lifetimes are derived from
// the claim expiries, so client-side and server-side validity never diverge.
type Session struct {
	SubjectID        string
	IssuedAt         int64
	AccessToken      string
	AccessExpiresAt  int64
	RefreshToken     string
	RefreshExpiresAt int64

	// mintedAt is the clock second the tokens were signed. IssuedAt can run ahead of it.
	mintedAt int64
	cookie   CookieConfig
}

// CreateSession mints an access and a refresh token for subjectID and records the session
// entry and the refresh marker, both keyed by the same issuance time. The issuance time is
// unique per subject, so it may run a second or two ahead of the clock under bursts. If any
// cache write fails no tokens are returned.
func (e *Engine) CreateSession(ctx context.Context, subjectID string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if subjectID == "" {
		return nil, fmt.Errorf("%w: empty subject", ErrSessionCreationFailed)
	}

	secret, err := internal.NewSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	if !e.codec.CanSign() {
		e.metricInc(MetricSessionCreationFailed)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, jwt.ErrNoPrivateKey)
	}

	issuedAt, err := e.store.ReserveIssuance(ctx, subjectID)
	if err != nil {
		e.metricInc(MetricSessionCreationFailed)
		return nil, e.cacheFailure(ErrSessionCreationFailed, "reserve_issuance", err)
	}
	s := &Session{
		SubjectID:        subjectID,
		IssuedAt:         issuedAt,
		AccessExpiresAt:  issuedAt + accessSeconds(e.config),
		RefreshExpiresAt: issuedAt + refreshSeconds(e.config),
		mintedAt:         e.now().Unix(),
		cookie:           e.config.Cookie,
	}

	s.AccessToken, err = e.codec.Sign(jwt.NewClaims(jwt.AccessToken, subjectID, secret, s.AccessExpiresAt))
	if err != nil {
		e.metricInc(MetricSessionCreationFailed)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}
	s.RefreshToken, err = e.codec.Sign(jwt.NewClaims(jwt.RefreshToken, subjectID, "", s.RefreshExpiresAt))
	if err != nil {
		e.metricInc(MetricSessionCreationFailed)
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	entry := session.Entry{SubjectID: subjectID, IssuedAt: issuedAt, Secret: secret}
	if err := e.store.AddSession(ctx, entry); err != nil {
		e.metricInc(MetricSessionCreationFailed)
		return nil, e.cacheFailure(ErrSessionCreationFailed, "add_session", err)
	}
	if err := e.store.AddRefreshMarker(ctx, subjectID, issuedAt); err != nil {
		e.metricInc(MetricSessionCreationFailed)
		if _, rmErr := e.store.RemoveSession(context.WithoutCancel(ctx), entry); rmErr != nil {
			e.logger.Warn("orphaned session entry left behind",
				zap.String("subsystem", subsystemTokenCache), zap.Error(rmErr))
		}
		return nil, e.cacheFailure(ErrSessionCreationFailed, "add_refresh_marker", err)
	}

	e.metricInc(MetricSessionCreated)
	return s, nil
}

// RotateFromRefresh consumes the refresh marker behind claims and mints a brand-new session.
// The old session entry is left to expire lazily. A second rotation with the same claims
// returns [ErrRefreshDenied].
func (e *Engine) RotateFromRefresh(ctx context.Context, claims *jwt.Claims) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if claims == nil || claims.Usage != jwt.RefreshToken {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	if err := e.limiter.CheckRefresh(ctx, claims.SubjectID); err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricRefreshRateLimited)
			return nil, ErrRefreshRateLimited
		}
		return nil, e.cacheFailure(ErrSessionUnavailable, "refresh_throttle", err)
	}

	issuedAt := claims.Expires() - refreshSeconds(e.config)
	ok, err := e.store.PermitRefresh(ctx, claims.SubjectID, issuedAt)
	if err != nil {
		return nil, e.cacheFailure(ErrSessionUnavailable, "permit_refresh", err)
	}
	if !ok {
		e.metricInc(MetricRefreshReplayDenied)
		return nil, ErrRefreshDenied
	}

	s, err := e.CreateSession(ctx, claims.SubjectID)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricRefreshSuccess)
	return s, nil
}

// Refresh verifies a raw refresh token and rotates it.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	claims := e.codec.Verify(refreshToken)
	if claims == nil {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}
	return e.RotateFromRefresh(ctx, claims)
}

// ExtendSession slides a live session forward: the cache entry gets a fresh issuance time
// and the access token is re-signed with the same secret. No new refresh grant is issued,
// so the returned Session carries only an access token.
func (e *Engine) ExtendSession(ctx context.Context, access *jwt.Claims) (*Session, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if access == nil || access.Usage != jwt.AccessToken || access.Secret == "" {
		return nil, ErrUnauthorized
	}
	if !e.codec.CanSign() {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, jwt.ErrNoPrivateKey)
	}

	issuedAt, ok, err := e.store.ExtendSession(ctx, e.accessEntry(access))
	if err != nil {
		return nil, e.cacheFailure(ErrSessionUnavailable, "extend_session", err)
	}
	if !ok {
		return nil, ErrSessionNotFound
	}

	s := &Session{
		SubjectID:       access.SubjectID,
		IssuedAt:        issuedAt,
		AccessExpiresAt: issuedAt + accessSeconds(e.config),
		mintedAt:        e.now().Unix(),
		cookie:          e.config.Cookie,
	}
	s.AccessToken, err = e.codec.Sign(jwt.NewClaims(jwt.AccessToken, access.SubjectID, access.Secret, s.AccessExpiresAt))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionExtended)
	return s, nil
}

// IsLive reports whether the session behind access claims is still recorded in the token
// cache. Stale entries are evicted as a side effect.
func (e *Engine) IsLive(ctx context.Context, access *jwt.Claims) (bool, error) {
	if e == nil {
		return false, ErrEngineNotReady
	}
	if access == nil || access.Usage != jwt.AccessToken || access.Secret == "" {
		return false, nil
	}

	ok, err := e.store.AuthorizeSession(ctx, e.accessEntry(access))
	if err != nil {
		return false, e.cacheFailure(ErrSessionUnavailable, "authorize_session", err)
	}
	return ok, nil
}

// Logout revokes the session entry of the access token and consumes the refresh marker of
// the refresh token, whichever are present.
func (e *Engine) Logout(ctx context.Context, info AuthInfo) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if info.Access != nil {
		if _, err := e.store.RemoveSession(ctx, e.accessEntry(info.Access)); err != nil {
			return e.cacheFailure(ErrSessionUnavailable, "remove_session", err)
		}
	}
	if info.Refresh != nil {
		issuedAt := info.Refresh.Expires() - refreshSeconds(e.config)
		if _, err := e.store.PermitRefresh(ctx, info.Refresh.SubjectID, issuedAt); err != nil {
			return e.cacheFailure(ErrSessionUnavailable, "permit_refresh", err)
		}
	}

	e.metricInc(MetricLogout)
	return nil
}

// RevokeAll drops every session and refresh grant of subjectID.
func (e *Engine) RevokeAll(ctx context.Context, subjectID string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if err := e.store.RemoveAllSessions(ctx, subjectID); err != nil {
		return e.cacheFailure(ErrSessionUnavailable, "remove_all_sessions", err)
	}
	e.metricInc(MetricLogoutAll)
	return nil
}

func (e *Engine) accessEntry(c *jwt.Claims) session.Entry {
	return session.Entry{
		SubjectID: c.SubjectID,
		IssuedAt:  c.Expires() - accessSeconds(e.config),
		Secret:    c.Secret,
	}
}
