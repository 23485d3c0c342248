package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/authd"
)

type authInfoContextKey struct{}

// AuthInfoFromContext returns the classification stored by a resolver or guard.
func AuthInfoFromContext(ctx context.Context) (authd.AuthInfo, bool) {
	info, ok := ctx.Value(authInfoContextKey{}).(authd.AuthInfo)
	return info, ok
}

// WithAuthInfo stores info in ctx.
func WithAuthInfo(ctx context.Context, info authd.AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoContextKey{}, info)
}

// credentials returns the raw access and refresh tokens of r. The access token falls back to
// an Authorization bearer header for non-browser clients.
func credentials(r *http.Request) (access, refresh string) {
	if c, err := r.Cookie(authd.AccessCookieName); err == nil {
		access = c.Value
	}
	if access == "" {
		access, _ = bearerToken(r.Header.Get("Authorization"))
	}
	if c, err := r.Cookie(authd.RefreshCookieName); err == nil {
		refresh = c.Value
	}
	return access, refresh
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
