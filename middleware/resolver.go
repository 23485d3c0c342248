package middleware

import (
	"errors"
	"net/http"

	"github.com/MrEthical07/authd"
)

// Resolver classifies the session cookies of every request and stores the result for
// [AuthInfoFromContext]. It never rejects a request.
func Resolver(engine *authd.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, refresh := credentials(r)
			info := engine.Resolve(access, refresh)
			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}

// RotatingResolver is [Resolver] plus silent rotation: a RefreshActive request is rotated
// before the handler runs and the new cookies are set on the response, so the handler sees
// Authorized. A replayed or invalid refresh token clears the cookies; any rotation failure
// degrades the request to Unauthorized.
func RotatingResolver(engine *authd.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			access, refresh := credentials(r)
			info := engine.Resolve(access, refresh)

			if info.Status == authd.RefreshActive {
				s, err := engine.RotateFromRefresh(r.Context(), info.Refresh)
				switch {
				case err == nil:
					for _, c := range s.Cookies() {
						http.SetCookie(w, c)
					}
					info = engine.Resolve(s.AccessToken, s.RefreshToken)
				case errors.Is(err, authd.ErrRefreshDenied), errors.Is(err, authd.ErrRefreshInvalid):
					for _, c := range engine.ClearCookies() {
						http.SetCookie(w, c)
					}
					info = authd.AuthInfo{Status: authd.Unauthorized}
				default:
					info = authd.AuthInfo{Status: authd.Unauthorized}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}
