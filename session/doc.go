// Package session provides the Redis-backed token cache that records which sessions and
// refresh grants are currently live.
//
// # Key layout
//
//	<prefix>:token:<subject>                   SET of "<issued_at>.<secret>" session entries
//	<prefix>:refresh:<subject>:<issued_at>     refresh marker, expires with the refresh window
//	<prefix>:verify:<code>                     pending email verification, value is the subject id
//
// # Architecture boundaries
//
// The [Store] is a dumb store. It does not sign or parse tokens and it does not decide what a
// valid session is beyond set membership and the lazy age check in [Store.AuthorizeSession].
//
// # What this package must NOT do
//
//   - Import authd or jwt (no upward imports).
//   - Conflate a backend failure with "not found"; transport errors wrap [ErrRedisUnavailable].
package session
