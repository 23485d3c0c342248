// Package internal holds the random identifiers the engine mints: session secrets,
// verification codes and subject ids.
//
// Sub-packages:
//
//   - config: process configuration from AUTHD_* variables
//   - httpapi: chi router for the /user routes
//   - mail: Resend client for verification emails
//   - rate: Redis fixed-window throttles
//   - security: hardening report
//   - stores: Postgres user store and migrations
//   - turnstile: Cloudflare challenge verification
//   - workers: bounded worker pools for hashing, verification and email
package internal
