// Package authd is a session engine for cookie-based web authentication: account signup
// with email verification, login, logout and silent session rotation.
//
// A session is a pair of ES256 tokens. The access token lives 15 minutes and carries a
// random secret that must also be present in the subject's entry set in Redis, so it can be
// revoked before it expires. The refresh token lives 15 days and may be exchanged exactly
// once: rotation consumes a Redis marker with GETDEL and mints an entirely new session.
//
// Password hashing and verification run on bounded worker pools so bursts of signups or
// logins queue instead of piling up goroutines doing Argon2id at once.
//
// Engine methods are safe to call from multiple goroutines after [Builder.Build].
//
// # Revocation latency
//
// [Engine.Resolve] classifies a request on signatures and expiry alone. Operations that must
// observe revocation immediately (logout, account deletion, session extension) check the
// token cache with [Engine.IsLive], which the middleware package exposes as RequireLive.
package authd
