// Package password hashes and verifies passwords with Argon2id.
//
// Hashes are PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The package never stores passwords and never logs them. Callers run Hash and Verify on the
// engine's crypto worker pools, since both are deliberately slow.
package password
