package jwt

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoPrivateKey is returned by Sign on a verify-only codec.
	ErrNoPrivateKey = errors.New("jwt: no private key configured")
	// ErrNoPublicKey is returned when a codec is built without a verification key.
	ErrNoPublicKey = errors.New("jwt: public key is required")
	// ErrKeyMismatch is returned when the private key does not pair with the public key.
	ErrKeyMismatch = errors.New("jwt: private key does not match public key")
	// ErrUnsupportedCurve is returned for ECDSA keys not on P-256.
	ErrUnsupportedCurve = errors.New("jwt: ES256 requires a P-256 key")
)

// Config holds the key pair. PrivateKey is optional.
type Config struct {
	PrivateKey *ecdsa.PrivateKey
	PublicKey  *ecdsa.PublicKey
	Leeway     time.Duration
}

// Codec signs and verifies [Claims]. It is immutable and safe for concurrent use.
type Codec struct {
	private *ecdsa.PrivateKey
	public  *ecdsa.PublicKey
	parser  *jwt.Parser
}

// NewCodec validates the key material and builds a codec.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.PublicKey == nil {
		return nil, ErrNoPublicKey
	}
	if cfg.PublicKey.Curve != elliptic.P256() {
		return nil, ErrUnsupportedCurve
	}
	if cfg.PrivateKey != nil {
		if cfg.PrivateKey.Curve != elliptic.P256() {
			return nil, ErrUnsupportedCurve
		}
		if !cfg.PrivateKey.PublicKey.Equal(cfg.PublicKey) {
			return nil, ErrKeyMismatch
		}
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("jwt: invalid leeway configuration")
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Leeway > 0 {
		options = append(options, jwt.WithLeeway(cfg.Leeway))
	}

	return &Codec{
		private: cfg.PrivateKey,
		public:  cfg.PublicKey,
		parser:  jwt.NewParser(options...),
	}, nil
}

// CanSign reports whether the codec holds a private key.
func (c *Codec) CanSign() bool {
	return c != nil && c.private != nil
}

// Sign returns the compact serialization of claims.
func (c *Codec) Sign(claims Claims) (string, error) {
	if !c.CanSign() {
		return "", ErrNoPrivateKey
	}
	if !claims.Usage.valid() {
		return "", ErrUnknownUsage
	}
	return jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(c.private)
}

// Verify returns the claims of a token that is well-formed, correctly signed, unexpired, and
// carries a known usage. Any failure yields nil.
func (c *Codec) Verify(token string) *Claims {
	if c == nil || token == "" {
		return nil
	}

	parsed, err := c.parser.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return c.public, nil
	})
	if err != nil || !parsed.Valid {
		return nil
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || claims.SubjectID == "" || !claims.Usage.valid() {
		return nil
	}
	return claims
}

func unix(sec int64) time.Time {
	return time.Unix(sec, 0)
}
