package jwt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Usage tags what a token may be used for. The zero value is not a valid usage.
type Usage uint8

const (
	// AccessToken grants access to protected routes.
	AccessToken Usage = iota + 1
	// RefreshToken may only be exchanged for a new session.
	RefreshToken
)

const (
	accessWire  = "Authorize"
	refreshWire = "Refresh"
)

// ErrUnknownUsage is returned when a usage tag is neither access nor refresh.
var ErrUnknownUsage = errors.New("unknown token usage")

func (u Usage) String() string {
	switch u {
	case AccessToken:
		return accessWire
	case RefreshToken:
		return refreshWire
	default:
		return "Unknown"
	}
}

// MarshalJSON encodes the usage as its wire name.
func (u Usage) MarshalJSON() ([]byte, error) {
	switch u {
	case AccessToken:
		return json.Marshal(accessWire)
	case RefreshToken:
		return json.Marshal(refreshWire)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownUsage, u)
	}
}

// UnmarshalJSON rejects anything but the two known wire names.
func (u *Usage) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case accessWire:
		*u = AccessToken
	case refreshWire:
		*u = RefreshToken
	default:
		return fmt.Errorf("%w: %q", ErrUnknownUsage, s)
	}
	return nil
}

// Claims is the signed session payload. Secret is set on access tokens only and ties the
// token to its session entry in the token cache.
type Claims struct {
	Usage     Usage  `json:"usage"`
	SubjectID string `json:"id"`
	Secret    string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds claims expiring at the given unix time.
func NewClaims(usage Usage, subjectID, secret string, expiresAt int64) Claims {
	return Claims{
		Usage:     usage,
		SubjectID: subjectID,
		Secret:    secret,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(unix(expiresAt)),
		},
	}
}

// Expires returns exp as unix seconds, or 0 when unset.
func (c *Claims) Expires() int64 {
	if c == nil || c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Unix()
}

func (u Usage) valid() bool {
	return u == AccessToken || u == RefreshToken
}
