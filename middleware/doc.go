// Package middleware exposes HTTP adapters around authd.Engine: a resolver that classifies
// the session cookies of every request, and guards that enforce a classification.
//
// # Resolvers
//
//   - [Resolver] classifies the request and stores the [authd.AuthInfo] in its context.
//   - [RotatingResolver] does the same and silently rotates a RefreshActive session, appending
//     the new cookies to the response.
//
// # Guards
//
//   - [Guard] enforces a [Mode].
//   - [RequireAuthorized] checks the access token signature and expiry only, no Redis call.
//   - [RequireLive] also checks that the session is still recorded in the token cache, so a
//     logout or revocation takes effect immediately.
//
// Guards reuse the AuthInfo stored by a resolver and fall back to resolving the cookies
// themselves. Rejections are written as a JSON envelope with status 401.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does not parse JWTs or talk
// to Redis itself.
package middleware
