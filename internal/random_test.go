package internal

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestNewSessionSecret(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		secret, err := NewSessionSecret()
		if err != nil {
			t.Fatalf("NewSessionSecret: %v", err)
		}
		raw, err := base64.RawURLEncoding.DecodeString(secret)
		if err != nil || len(raw) != sessionSecretSize {
			t.Fatalf("unexpected secret %q: len=%d err=%v", secret, len(raw), err)
		}
		if _, dup := seen[secret]; dup {
			t.Fatal("duplicate session secret")
		}
		seen[secret] = struct{}{}
	}
}

func TestNewVerifyCode(t *testing.T) {
	code, err := NewVerifyCode()
	if err != nil {
		t.Fatalf("NewVerifyCode: %v", err)
	}
	if len(code) != VerifyCodeLength {
		t.Fatalf("expected %d chars, got %d", VerifyCodeLength, len(code))
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			t.Fatalf("unexpected rune %q in %q", r, code)
		}
	}

	other, err := NewVerifyCode()
	if err != nil {
		t.Fatalf("NewVerifyCode: %v", err)
	}
	if other == code {
		t.Fatal("expected distinct codes")
	}
}

func TestNewSubjectID(t *testing.T) {
	if NewSubjectID() == NewSubjectID() {
		t.Fatal("expected distinct subject ids")
	}
}
