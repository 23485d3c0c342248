package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authd"
)

const (
	msgInternal        = "Something went wrong while processing your request."
	msgBadBody         = "Invalid request body."
	msgInvalidEmail    = "Invalid email provided."
	msgPasswordPolicy  = "Password must be longer than 8 characters."
	msgActiveUser      = "There's already an active user."
	msgAccountExists   = "An account with the same email already exists."
	msgUnknownCode     = "There's no account associated to this verify token."
	msgWrongLogin      = "Wrong email or password."
	msgUnverified      = "Verify your email address before logging in."
	msgGetOut          = "Get out."
	msgAlreadyDeleted  = "The user is already deleted. Why is the cookie still here?"
	msgUnauthorized    = "Unauthorized"
	msgTooManyRequests = "Too many requests. Please slow down."
	msgChallenge       = "Challenge verification failed."
)

type response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Result  any    `json:"result,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, result any) {
	writeJSON(w, status, response{Success: true, Result: result})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, response{Success: false, Error: msg})
}

func setCookies(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, c := range cookies {
		http.SetCookie(w, c)
	}
}

// errorStatus maps an engine error to a status and a client-safe message. Anything not
// listed is reported as an internal error.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, authd.ErrInvalidEmail):
		return http.StatusBadRequest, msgInvalidEmail
	case errors.Is(err, authd.ErrPasswordPolicy):
		return http.StatusBadRequest, msgPasswordPolicy
	case errors.Is(err, authd.ErrAccountExists):
		return http.StatusConflict, msgAccountExists
	case errors.Is(err, authd.ErrVerifyCodeInvalid):
		return http.StatusNotFound, msgUnknownCode
	case errors.Is(err, authd.ErrInvalidCredentials):
		return http.StatusForbidden, msgWrongLogin
	case errors.Is(err, authd.ErrAccountUnverified):
		return http.StatusForbidden, msgUnverified
	case errors.Is(err, authd.ErrLoginRateLimited), errors.Is(err, authd.ErrRefreshRateLimited):
		return http.StatusTooManyRequests, msgTooManyRequests
	case errors.Is(err, authd.ErrRefreshInvalid),
		errors.Is(err, authd.ErrRefreshDenied),
		errors.Is(err, authd.ErrSessionNotFound),
		errors.Is(err, authd.ErrUnauthorized):
		return http.StatusUnauthorized, msgUnauthorized
	case errors.Is(err, authd.ErrUserNotFound):
		return http.StatusConflict, msgAlreadyDeleted
	default:
		return http.StatusInternalServerError, msgInternal
	}
}
