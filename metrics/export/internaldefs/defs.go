package internaldefs

import (
	"github.com/MrEthical07/tokengate"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   tokengate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: tokengate.MetricLoginSuccess, Name: "tokengate_login_success_total", Help: "Successful login attempts."},
	{ID: tokengate.MetricLoginFailure, Name: "tokengate_login_failure_total", Help: "Failed login attempts."},
	{ID: tokengate.MetricLoginRateLimited, Name: "tokengate_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: tokengate.MetricRefreshSuccess, Name: "tokengate_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: tokengate.MetricRefreshFailure, Name: "tokengate_refresh_failure_total", Help: "Failed refresh rotations."},
	{ID: tokengate.MetricRefreshRateLimited, Name: "tokengate_refresh_rate_limited_total", Help: "Rate-limited refresh attempts."},
	{ID: tokengate.MetricRefreshRotationLost, Name: "tokengate_refresh_rotation_lost_total", Help: "Refreshes that lost a concurrent rotation of the same handle."},
	{ID: tokengate.MetricRefreshFingerprintMismatch, Name: "tokengate_refresh_fingerprint_mismatch_total", Help: "Sessions revoked on a device fingerprint mismatch."},
	{ID: tokengate.MetricSessionCreated, Name: "tokengate_session_created_total", Help: "Issued refresh sessions."},
	{ID: tokengate.MetricSessionRevoked, Name: "tokengate_session_revoked_total", Help: "Revoked refresh sessions."},
	{ID: tokengate.MetricLogout, Name: "tokengate_logout_total", Help: "Single-session logout operations."},
	{ID: tokengate.MetricLogoutAll, Name: "tokengate_logout_all_total", Help: "Logout-all operations."},
	{ID: tokengate.MetricValidateSuccess, Name: "tokengate_validate_success_total", Help: "Accepted access tokens."},
	{ID: tokengate.MetricValidateFailure, Name: "tokengate_validate_failure_total", Help: "Rejected access tokens."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: tokengate.MetricValidateLatency, Name: "tokengate_validate_latency_seconds", Help: "Access token validation latency."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds, excluding +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf last, for exporters that
// flatten buckets into gauges.
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

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
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
