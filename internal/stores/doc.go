// Package stores holds the Postgres user store behind authd.UserProvider and the embedded
// schema migrations it needs.
//
// Queries go through sqlx over the pgx stdlib driver. Lookups that find nothing return
// authd.ErrUserNotFound, and a unique violation on email returns
// authd.ErrProviderDuplicateIdentifier; everything else is wrapped and returned as-is.
package stores
