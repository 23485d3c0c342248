package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/middleware"
)

const maxBodyBytes = 16 << 10

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	VerifyCode string `json:"verify_code"`
}

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *handler) create(w http.ResponseWriter, r *http.Request) {
	if h.alreadyAuthorized(w, r) {
		return
	}
	var req credentialsRequest
	if !decode(w, r, &req) || !h.passChallenge(w, r) {
		return
	}

	if _, err := h.engine.CreateAccount(r.Context(), req.Email, req.Password); err != nil {
		h.fail(w, "create", err)
		return
	}
	writeSuccess(w, http.StatusCreated, nil)
}

func (h *handler) verify(w http.ResponseWriter, r *http.Request) {
	if h.alreadyAuthorized(w, r) {
		return
	}
	var req verifyRequest
	if !decode(w, r, &req) {
		return
	}

	s, err := h.engine.VerifyEmail(r.Context(), req.VerifyCode)
	if err != nil {
		h.fail(w, "verify", err)
		return
	}
	setCookies(w, s.Cookies())
	writeSuccess(w, http.StatusOK, nil)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if h.alreadyAuthorized(w, r) {
		return
	}
	var req credentialsRequest
	if !decode(w, r, &req) || !h.passChallenge(w, r) {
		return
	}

	s, err := h.engine.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	setCookies(w, s.Cookies())
	writeSuccess(w, http.StatusOK, nil)
}

// logout revokes whichever tokens the request carries. A caller whose access token has
// expired still has its refresh grant consumed. Cookies are cleared on every outcome except a
// backend failure.
func (h *handler) logout(w http.ResponseWriter, r *http.Request) {
	info, _ := middleware.AuthInfoFromContext(r.Context())
	if info.Access == nil && info.Refresh == nil {
		setCookies(w, h.engine.ClearCookies())
		writeError(w, http.StatusUnauthorized, msgGetOut)
		return
	}

	live := true
	if info.Access != nil {
		var err error
		if live, err = h.engine.IsLive(r.Context(), info.Access); err != nil {
			h.fail(w, "is_live", err)
			return
		}
	}
	if err := h.engine.Logout(r.Context(), info); err != nil {
		h.fail(w, "logout", err)
		return
	}

	setCookies(w, h.engine.ClearCookies())
	if !live {
		writeError(w, http.StatusUnauthorized, msgGetOut)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	info, ok := h.liveSession(w, r)
	if !ok {
		return
	}

	err := h.engine.DeleteAccount(r.Context(), info.SubjectID())
	if errors.Is(err, authd.ErrUserNotFound) {
		setCookies(w, h.engine.ClearCookies())
		writeError(w, http.StatusConflict, msgAlreadyDeleted)
		return
	}
	if err != nil {
		h.fail(w, "delete", err)
		return
	}
	setCookies(w, h.engine.ClearCookies())
	writeSuccess(w, http.StatusOK, nil)
}

func (h *handler) refresh(w http.ResponseWriter, r *http.Request) {
	info, _ := middleware.AuthInfoFromContext(r.Context())
	if info.Refresh == nil {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	s, err := h.engine.RotateFromRefresh(r.Context(), info.Refresh)
	if errors.Is(err, authd.ErrRefreshDenied) || errors.Is(err, authd.ErrRefreshInvalid) {
		setCookies(w, h.engine.ClearCookies())
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
		return
	}
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	setCookies(w, s.Cookies())
	writeSuccess(w, http.StatusOK, nil)
}

func (h *handler) extend(w http.ResponseWriter, r *http.Request) {
	info, _ := middleware.AuthInfoFromContext(r.Context())

	s, err := h.engine.ExtendSession(r.Context(), info.Access)
	if err != nil {
		h.fail(w, "extend", err)
		return
	}
	setCookies(w, s.Cookies())
	writeSuccess(w, http.StatusOK, nil)
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	info, _ := middleware.AuthInfoFromContext(r.Context())

	user, err := h.engine.GetUser(r.Context(), info.SubjectID())
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	writeSuccess(w, http.StatusOK, userView{
		ID:        user.SubjectID,
		Email:     user.Email,
		Status:    user.Status.String(),
		CreatedAt: user.CreatedAt,
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Ping(r.Context()); err != nil {
		h.logger.Warn("health check failed", zap.String("check", "token_cache"), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, msgInternal)
		return
	}
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			h.logger.Warn("health check failed", zap.String("check", "ready"), zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, msgInternal)
			return
		}
	}
	writeSuccess(w, http.StatusOK, nil)
}

// alreadyAuthorized rejects signup-style routes for a caller who is already logged in.
func (h *handler) alreadyAuthorized(w http.ResponseWriter, r *http.Request) bool {
	info, _ := middleware.AuthInfoFromContext(r.Context())
	if info.Status == authd.Authorized {
		writeError(w, http.StatusForbidden, msgActiveUser)
		return true
	}
	return false
}

// liveSession requires an Authorized request whose session is still in the token cache.
func (h *handler) liveSession(w http.ResponseWriter, r *http.Request) (authd.AuthInfo, bool) {
	info, _ := middleware.AuthInfoFromContext(r.Context())
	if info.Status != authd.Authorized {
		writeError(w, http.StatusUnauthorized, msgGetOut)
		return info, false
	}

	live, err := h.engine.IsLive(r.Context(), info.Access)
	if err != nil {
		h.fail(w, "is_live", err)
		return info, false
	}
	if !live {
		setCookies(w, h.engine.ClearCookies())
		writeError(w, http.StatusUnauthorized, msgGetOut)
		return info, false
	}
	return info, true
}

func (h *handler) passChallenge(w http.ResponseWriter, r *http.Request) bool {
	if h.challenger == nil {
		return true
	}

	ok, err := h.challenger.Verify(r.Context(), r.Header.Get(TurnstileHeader), clientIP(r))
	if err != nil {
		h.logger.Error("challenge verification unavailable", zap.Error(err))
		writeError(w, http.StatusInternalServerError, msgInternal)
		return false
	}
	if !ok {
		writeError(w, http.StatusForbidden, msgChallenge)
		return false
	}
	return true
}

func (h *handler) fail(w http.ResponseWriter, route string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("route", route), zap.Error(err))
	}
	writeError(w, status, msg)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, msgBadBody)
		return false
	}
	return true
}
