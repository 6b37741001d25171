package internaldefs

import (
	"github.com/BUICUONGG/courseauth"
)

// CounterDef names one counter.
type CounterDef struct {
	ID   courseauth.MetricID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   courseauth.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: courseauth.MetricLoginSuccess, Name: "courseauth_login_success_total", Help: "Successful logins."},
	{ID: courseauth.MetricLoginFailure, Name: "courseauth_login_failure_total", Help: "Failed logins."},
	{ID: courseauth.MetricLogout, Name: "courseauth_logout_total", Help: "Explicit logouts of a stored session."},
	{ID: courseauth.MetricRefreshStarted, Name: "courseauth_refresh_started_total", Help: "Refresh calls sent to the identity service."},
	{ID: courseauth.MetricRefreshSuccess, Name: "courseauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: courseauth.MetricRefreshFailure, Name: "courseauth_refresh_failure_total", Help: "Failed refreshes that ended the session."},
	{ID: courseauth.MetricRefreshSkipped, Name: "courseauth_refresh_skipped_total", Help: "Refresh flights made moot by another writer."},
	{ID: courseauth.MetricRefreshWaiter, Name: "courseauth_refresh_waiter_total", Help: "Callers that shared a refresh flight."},
	{ID: courseauth.MetricProactiveRefresh, Name: "courseauth_proactive_refresh_total", Help: "Refresh requests triggered by the expiry threshold."},
	{ID: courseauth.MetricReactiveRefresh, Name: "courseauth_reactive_refresh_total", Help: "Refresh requests triggered by a rejected credential."},
	{ID: courseauth.MetricForcedLogout, Name: "courseauth_forced_logout_total", Help: "Sessions ended by a failed refresh."},
	{ID: courseauth.MetricRequestExecuted, Name: "courseauth_request_executed_total", Help: "Authorized requests that received a response."},
	{ID: courseauth.MetricRequestRetried, Name: "courseauth_request_retried_total", Help: "Authorized requests retried after a reactive refresh."},
	{ID: courseauth.MetricRequestSessionExpired, Name: "courseauth_request_session_expired_total", Help: "Authorized requests failed because the session ended."},
	{ID: courseauth.MetricStoreChange, Name: "courseauth_store_change_total", Help: "Token store change notifications received."},
	{ID: courseauth.MetricSessionNotified, Name: "courseauth_session_notified_total", Help: "Session-change notifications delivered."},
}

var HistogramDefs = []HistogramDef{
	{ID: courseauth.MetricRefreshLatency, Name: "courseauth_refresh_latency_seconds", Help: "Refresh call latency, including the store write."},
	{ID: courseauth.MetricRequestLatency, Name: "courseauth_request_latency_seconds", Help: "Authorized request latency per attempt."},
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "courseauth_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
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

// NormalizeBuckets pads or truncates raw to the eight fixed buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
