package jwt

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrInvalidKey is returned when PEM content or the key type is not usable.
var ErrInvalidKey = errors.New("jwt: invalid key")

// LoadPEM returns s itself when it is inline PEM, otherwise the content of the file at path s.
func LoadPEM(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	if strings.HasPrefix(s, "-----BEGIN") {
		return []byte(s), nil
	}
	return os.ReadFile(s)
}

// ParsePrivateKey parses a PKCS#8 or SEC 1 ECDSA private key.
func ParsePrivateKey(pemBytes []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, ErrInvalidKey
	}
	switch block.Type {
	case "EC PRIVATE KEY":
		return x509.ParseECPrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, ErrInvalidKey
		}
		return ec, nil
	default:
		return nil, ErrInvalidKey
	}
}

// ParsePublicKey parses a PKIX ECDSA public key.
func ParsePublicKey(pemBytes []byte) (*ecdsa.PublicKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, ErrInvalidKey
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	ec, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, ErrInvalidKey
	}
	return ec, nil
}

// LoadKeys reads the key pair. The public key is mandatory. An empty private source, or a
// private key path that does not exist, yields a verify-only configuration.
func LoadKeys(privateSrc, publicSrc string) (Config, error) {
	var cfg Config

	pubPEM, err := LoadPEM(publicSrc)
	if err != nil {
		return cfg, fmt.Errorf("load public key: %w", err)
	}
	cfg.PublicKey, err = ParsePublicKey(pubPEM)
	if err != nil {
		return cfg, fmt.Errorf("parse public key: %w", err)
	}

	if strings.TrimSpace(privateSrc) == "" {
		return cfg, nil
	}
	privPEM, err := LoadPEM(privateSrc)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("load private key: %w", err)
	}
	cfg.PrivateKey, err = ParsePrivateKey(privPEM)
	if err != nil {
		return cfg, fmt.Errorf("parse private key: %w", err)
	}
	return cfg, nil
}
