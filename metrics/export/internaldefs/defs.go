package internaldefs

import (
	"github.com/MrEthical07/authcore"
)

// CounterDef names one engine counter.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "authcore_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful logins."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Logins rejected for bad credentials or input."},
	{ID: authcore.MetricLoginRateLimited, Name: "authcore_login_rate_limited_total", Help: "Logins rejected by the failure throttle."},
	{ID: authcore.MetricLoginLocked, Name: "authcore_login_locked_total", Help: "Logins rejected for locked or revoked principals."},
	{ID: authcore.MetricRefreshSuccess, Name: "authcore_refresh_success_total", Help: "Successful refreshes."},
	{ID: authcore.MetricRefreshFailure, Name: "authcore_refresh_failure_total", Help: "Failed refreshes."},
	{ID: authcore.MetricRefreshReuseDetected, Name: "authcore_refresh_reuse_detected_total", Help: "Refresh tokens presented after consumption."},
	{ID: authcore.MetricRefreshRateLimited, Name: "authcore_refresh_rate_limited_total", Help: "Refreshes rejected by the per-principal throttle."},
	{ID: authcore.MetricValidateSuccess, Name: "authcore_validate_success_total", Help: "Access tokens accepted."},
	{ID: authcore.MetricValidateInvalid, Name: "authcore_validate_invalid_total", Help: "Access tokens rejected as malformed, forged or wrong kind."},
	{ID: authcore.MetricValidateExpired, Name: "authcore_validate_expired_total", Help: "Access tokens rejected as expired."},
	{ID: authcore.MetricValidateRevoked, Name: "authcore_validate_revoked_total", Help: "Access tokens rejected as revoked."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Principals registered."},
	{ID: authcore.MetricRegisterDuplicate, Name: "authcore_register_duplicate_total", Help: "Registrations rejected for a taken identifier."},
	{ID: authcore.MetricRegisterFailure, Name: "authcore_register_failure_total", Help: "Registrations rejected for other reasons."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Successful logouts."},
	{ID: authcore.MetricKeyRotation, Name: "authcore_key_rotation_total", Help: "Signing key rotations."},
	{ID: authcore.MetricStoreUnavailable, Name: "authcore_store_unavailable_total", Help: "Store or rate limiter calls that failed or timed out."},
}

var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Validate latency."},
	{ID: authcore.MetricLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency."},
	{ID: authcore.MetricRefreshLatency, Name: "authcore_refresh_latency_seconds", Help: "Refresh latency."},
}

// BucketCount is the number of latency buckets, the last one unbounded.
const BucketCount = 8

// UpperBounds are the finite bucket bounds in seconds.
var UpperBounds = [BucketCount - 1]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// BoundSuffix names each bucket for exporters without native histograms.
var BoundSuffix = [BucketCount]string{"0_005", "0_01", "0_025", "0_05", "0_1", "0_25", "0_5", "inf"}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
