package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/authd"
)

// Mode selects how much a guard checks.
type Mode int

const (
	// ModeJWTOnly accepts any request whose access token verifies.
	ModeJWTOnly Mode = iota
	// ModeLive additionally requires the session to be present in the token cache.
	ModeLive
)

const (
	msgUnauthorized = "Unauthorized"
	msgInternal     = "Something went wrong while processing your request."
)

// Guard rejects requests that are not Authorized under mode.
func Guard(engine *authd.Engine, mode Mode) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			info, ok := AuthInfoFromContext(r.Context())
			if !ok {
				access, refresh := credentials(r)
				info = engine.Resolve(access, refresh)
			}
			if info.Status != authd.Authorized {
				writeError(w, http.StatusUnauthorized, msgUnauthorized)
				return
			}

			if mode == ModeLive {
				live, err := engine.IsLive(r.Context(), info.Access)
				if err != nil {
					writeError(w, http.StatusInternalServerError, msgInternal)
					return
				}
				if !live {
					writeError(w, http.StatusUnauthorized, msgUnauthorized)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAuthInfo(r.Context(), info)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}{Success: false, Error: msg})
}
