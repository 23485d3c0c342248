package internaldefs

import (
	"github.com/MrEthical07/authd"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authd.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authd.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: authd.MetricLoginSuccess, Name: "authd_login_success_total", Help: "Successful login attempts."},
	{ID: authd.MetricLoginFailure, Name: "authd_login_failure_total", Help: "Failed login attempts."},
	{ID: authd.MetricLoginRateLimited, Name: "authd_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authd.MetricRefreshSuccess, Name: "authd_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: authd.MetricRefreshFailure, Name: "authd_refresh_failure_total", Help: "Refresh attempts with an invalid token."},
	{ID: authd.MetricRefreshReplayDenied, Name: "authd_refresh_replay_denied_total", Help: "Refresh attempts whose marker was already consumed."},
	{ID: authd.MetricRefreshRateLimited, Name: "authd_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: authd.MetricSessionCreated, Name: "authd_session_created_total", Help: "Created sessions."},
	{ID: authd.MetricSessionCreationFailed, Name: "authd_session_creation_failed_total", Help: "Sessions that could not be recorded."},
	{ID: authd.MetricSessionExtended, Name: "authd_session_extended_total", Help: "Keep-alive session extensions."},
	{ID: authd.MetricLogout, Name: "authd_logout_total", Help: "Single-session logout operations."},
	{ID: authd.MetricLogoutAll, Name: "authd_logout_all_total", Help: "Account-wide revocations."},
	{ID: authd.MetricAccountCreationSuccess, Name: "authd_account_creation_success_total", Help: "Pending accounts created."},
	{ID: authd.MetricAccountCreationDuplicate, Name: "authd_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: authd.MetricEmailVerificationSuccess, Name: "authd_email_verification_success_total", Help: "Successful email verifications."},
	{ID: authd.MetricEmailVerificationFailure, Name: "authd_email_verification_failure_total", Help: "Unknown or reused verification codes."},
	{ID: authd.MetricEmailSent, Name: "authd_email_sent_total", Help: "Verification emails accepted by the mailer."},
	{ID: authd.MetricEmailFailed, Name: "authd_email_failed_total", Help: "Verification emails the mailer rejected."},
	{ID: authd.MetricAccountDeleted, Name: "authd_account_deleted_total", Help: "Account delete operations."},
	{ID: authd.MetricPasswordRehashed, Name: "authd_password_rehashed_total", Help: "Password hashes upgraded after login."},
	{ID: authd.MetricResolveAuthorized, Name: "authd_resolve_authorized_total", Help: "Requests classified Authorized."},
	{ID: authd.MetricResolveRefreshActive, Name: "authd_resolve_refresh_active_total", Help: "Requests classified RefreshActive."},
	{ID: authd.MetricResolveUnauthorized, Name: "authd_resolve_unauthorized_total", Help: "Requests classified Unauthorized."},
	{ID: authd.MetricWorkerUnavailable, Name: "authd_worker_unavailable_total", Help: "Crypto pool submissions that got no result."},
	{ID: authd.MetricBackendUnavailable, Name: "authd_backend_unavailable_total", Help: "Token cache or user store failures."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authd.MetricResolveLatency, Name: "authd_resolve_latency_seconds", Help: "Request classification latency."},
	{ID: authd.MetricPasswordVerifyLatency, Name: "authd_password_verify_latency_seconds", Help: "Password verification latency including queueing."},
}

// HistogramBounds are the Prometheus le labels of the eight engine buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds in a form usable inside instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to exactly eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}

// Worker pool series, labelled by pool name.
const (
	PoolQueuedName    = "authd_worker_pool_queued"
	PoolProcessedName = "authd_worker_pool_processed_total"
	PoolNoResultName  = "authd_worker_pool_no_result_total"
	PoolPanicsName    = "authd_worker_pool_panics_total"
)
