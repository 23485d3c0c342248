package middleware

import (
	"net/http"

	"github.com/MrEthical07/authd"
)

// RequireAuthorized admits requests with a valid access token without consulting Redis.
// A revoked session keeps passing until its access token expires.
func RequireAuthorized(engine *authd.Engine) func(http.Handler) http.Handler {
	return Guard(engine, ModeJWTOnly)
}
