package authd

import (
	"time"

	"github.com/MrEthical07/authd/jwt"
)

// Resolve classifies the raw values of the access and refresh cookies. A token is only kept
// when its usage matches the slot it came from, so a refresh token in the access slot never
// yields [Authorized]. Resolve does no I/O: liveness in the token cache is checked separately
// with [Engine.IsLive] by the operations that need it.
func (e *Engine) Resolve(accessToken, refreshToken string) AuthInfo {
	var info AuthInfo
	if e == nil {
		return info
	}
	start := time.Now()
	defer e.metricObserve(MetricResolveLatency, start)

	if c := e.codec.Verify(accessToken); c != nil && c.Usage == jwt.AccessToken && c.Secret != "" {
		info.Access = c
	}
	if c := e.codec.Verify(refreshToken); c != nil && c.Usage == jwt.RefreshToken {
		info.Refresh = c
	}

	switch {
	case info.Access != nil:
		info.Status = Authorized
		e.metricInc(MetricResolveAuthorized)
	case info.Refresh != nil:
		info.Status = RefreshActive
		e.metricInc(MetricResolveRefreshActive)
	default:
		info.Status = Unauthorized
		e.metricInc(MetricResolveUnauthorized)
	}
	return info
}
