// Package jwt seals and opens session claims with ES256 (ECDSA P-256).
//
// A [Codec] built without a private key is verify-only: [Codec.Verify] works and
// [Codec.Sign] returns [ErrNoPrivateKey]. The codec knows nothing about revocation; a token
// that verifies is cryptographically valid and unexpired, nothing more.
package jwt
