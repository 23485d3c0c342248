package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"

	"github.com/google/uuid"
)

const (
	sessionSecretSize = 32
	// VerifyCodeLength is the length of an email verification code.
	VerifyCodeLength = 64
)

// URL-safe alphabet of 64 symbols, so each random byte maps to one symbol without bias
// after masking to six bits.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"

// NewSessionSecret returns 32 random bytes as unpadded base64url.
func NewSessionSecret() (string, error) {
	var secret [sessionSecretSize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(secret[:]), nil
}

// NewVerifyCode returns a VerifyCodeLength-character URL-safe code.
func NewVerifyCode() (string, error) {
	return randomCode(VerifyCodeLength)
}

// NewSubjectID returns a fresh account identifier.
func NewSubjectID() string {
	return uuid.NewString()
}

func randomCode(n int) (string, error) {
	if n <= 0 {
		return "", errors.New("invalid code length")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[b&63]
	}
	return string(buf), nil
}
