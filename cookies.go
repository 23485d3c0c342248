package authd

import "net/http"

// Cookie names.
const (
	AccessCookieName  = "token"
	RefreshCookieName = "refresh"
)

// Cookies returns the Set-Cookie values for the tokens in s. Max-Age runs from the moment the
// session was minted to the claim expiry, so a cookie never expires before its token. An
// extended session carries only the access cookie.
func (s *Session) Cookies() []*http.Cookie {
	if s == nil {
		return nil
	}
	base := s.IssuedAt
	if s.mintedAt != 0 && s.mintedAt < base {
		base = s.mintedAt
	}
	out := make([]*http.Cookie, 0, 2)
	if s.AccessToken != "" {
		out = append(out, sessionCookie(s.cookie, AccessCookieName, s.AccessToken, int(s.AccessExpiresAt-base)))
	}
	if s.RefreshToken != "" {
		out = append(out, sessionCookie(s.cookie, RefreshCookieName, s.RefreshToken, int(s.RefreshExpiresAt-base)))
	}
	return out
}

// ClearCookies returns both session cookies emptied with Max-Age=0.
func (e *Engine) ClearCookies() []*http.Cookie {
	var cfg CookieConfig
	if e != nil {
		cfg = e.config.Cookie
	}
	// net/http writes Max-Age=0 for any negative MaxAge.
	return []*http.Cookie{
		sessionCookie(cfg, AccessCookieName, "", -1),
		sessionCookie(cfg, RefreshCookieName, "", -1),
	}
}

func sessionCookie(cfg CookieConfig, name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}
