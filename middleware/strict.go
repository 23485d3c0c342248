package middleware

import (
	"net/http"

	"github.com/MrEthical07/authd"
)

// RequireLive admits requests whose access token verifies and whose session is still
// recorded in the token cache.
func RequireLive(engine *authd.Engine) func(http.Handler) http.Handler {
	return Guard(engine, ModeLive)
}
