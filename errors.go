package authd

import "errors"

var (
	// ErrUnauthorized is returned when a request carries no usable credential.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidEmail is returned for addresses that do not parse as a bare address.
	ErrInvalidEmail = errors.New("invalid email")
	// ErrPasswordPolicy is returned for passwords outside the accepted length range.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrUserNotFound is returned when the subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned when the email is already registered.
	ErrAccountExists = errors.New("account already exists")
	// ErrAccountUnverified is returned when a pending account tries to log in.
	ErrAccountUnverified = errors.New("account unverified")
	// ErrAccountCreationUnavailable is returned when signup cannot reach a backend.
	ErrAccountCreationUnavailable = errors.New("account creation backend unavailable")
	// ErrVerifyCodeInvalid is returned for unknown, used or expired verification codes.
	ErrVerifyCodeInvalid = errors.New("verification code invalid")
	// ErrLoginRateLimited is returned when the email or IP has exhausted its login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrRefreshRateLimited is returned when a subject rotates too often.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrRefreshInvalid is returned when the refresh token is absent, forged, expired or not a
	// refresh token.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshDenied is returned when the refresh marker was already consumed or expired.
	ErrRefreshDenied = errors.New("refresh not permitted")
	// ErrSessionNotFound is returned when a session entry is no longer live.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionCreationFailed is returned when tokens could not be minted or recorded. No
	// tokens accompany it.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionUnavailable is returned when the token cache cannot be reached.
	ErrSessionUnavailable = errors.New("session backend unavailable")
	// ErrWorkerUnavailable is returned when a crypto worker pool is closed or gave no result.
	ErrWorkerUnavailable = errors.New("worker pool unavailable")
	// ErrUserStoreUnavailable is returned when the user provider fails.
	ErrUserStoreUnavailable = errors.New("user store unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or closed engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProviderDuplicateIdentifier is returned by a [UserProvider] when the email is taken.
	ErrProviderDuplicateIdentifier = errors.New("provider duplicate identifier")
)
