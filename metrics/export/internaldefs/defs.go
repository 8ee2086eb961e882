package internaldefs

import (
	"github.com/MrEthical07/jwtauth"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   jwtauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export.
type HistogramDef struct {
	ID   jwtauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: jwtauth.MetricLoginSuccess, Name: "jwtauth_login_success_total", Help: "Successful logins."},
	{ID: jwtauth.MetricLoginFailure, Name: "jwtauth_login_failure_total", Help: "Failed logins."},
	{ID: jwtauth.MetricLoginRateLimited, Name: "jwtauth_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: jwtauth.MetricRefreshSuccess, Name: "jwtauth_refresh_success_total", Help: "Successful refresh operations."},
	{ID: jwtauth.MetricRefreshFailure, Name: "jwtauth_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: jwtauth.MetricRefreshReuseDetected, Name: "jwtauth_refresh_reuse_detected_total", Help: "Refresh tokens presented after their session was retired."},
	{ID: jwtauth.MetricRefreshRateLimited, Name: "jwtauth_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: jwtauth.MetricAuthorizeSuccess, Name: "jwtauth_authorize_success_total", Help: "Accepted access tokens."},
	{ID: jwtauth.MetricAuthorizeFailure, Name: "jwtauth_authorize_failure_total", Help: "Rejected access tokens."},
	{ID: jwtauth.MetricTokenMalformed, Name: "jwtauth_token_malformed_total", Help: "Tokens rejected as malformed."},
	{ID: jwtauth.MetricTokenInvalidSignature, Name: "jwtauth_token_invalid_signature_total", Help: "Tokens rejected for a bad signature or key."},
	{ID: jwtauth.MetricTokenExpired, Name: "jwtauth_token_expired_total", Help: "Tokens rejected as expired."},
	{ID: jwtauth.MetricTokenSessionRevoked, Name: "jwtauth_token_session_revoked_total", Help: "Refresh tokens rejected because their session is not live."},
	{ID: jwtauth.MetricSessionCreated, Name: "jwtauth_session_created_total", Help: "Created sessions."},
	{ID: jwtauth.MetricSessionRotated, Name: "jwtauth_session_rotated_total", Help: "Rotated sessions."},
	{ID: jwtauth.MetricLogout, Name: "jwtauth_logout_total", Help: "Single-session logout operations."},
	{ID: jwtauth.MetricLogoutAll, Name: "jwtauth_logout_all_total", Help: "Logout-all operations."},
	{ID: jwtauth.MetricStoreUnavailable, Name: "jwtauth_store_unavailable_total", Help: "Operations failed by a session store error or timeout."},
	{ID: jwtauth.MetricIdentityUnavailable, Name: "jwtauth_identity_unavailable_total", Help: "Logins failed by an identity store error."},
}

var HistogramDefs = []HistogramDef{
	{ID: jwtauth.MetricAuthorizeLatency, Name: "jwtauth_authorize_latency_seconds", Help: "Authorize latency histogram."},
	{ID: jwtauth.MetricRefreshLatency, Name: "jwtauth_refresh_latency_seconds", Help: "Refresh latency histogram."},
}

// AuditDroppedName is exported alongside the engine counters.
const (
	AuditDroppedName = "jwtauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. They match
// the engine's bucketIndex; the eighth bucket is +Inf.
var HistogramUpperBounds = []float64{
	0.0001,
	0.0005,
	0.001,
	0.005,
	0.01,
	0.05,
	0.1,
}

var HistogramBoundSuffix = []string{
	"0_0001",
	"0_0005",
	"0_001",
	"0_005",
	"0_01",
	"0_05",
	"0_1",
	"inf",
}

// NormalizeBuckets copies raw into a fixed eight-bucket array, padding with
// zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
