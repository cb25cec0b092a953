package internaldefs

import (
	goAccess "github.com/MrEthical07/goAccess"
)

// CounterDef binds a counter id to its exported name.
type CounterDef struct {
	ID   goAccess.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram id to its exported name.
type HistogramDef struct {
	ID   goAccess.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a stable order.
var CounterDefs = []CounterDef{
	{ID: goAccess.MetricIdentityFailure, Name: "goaccess_identity_failure_total", Help: "Identity validations rejected."},
	{ID: goAccess.MetricTenantResolved, Name: "goaccess_tenant_resolved_total", Help: "Successful tenant resolutions."},
	{ID: goAccess.MetricPermissionAllowed, Name: "goaccess_permission_allowed_total", Help: "Authorization checks that passed."},
	{ID: goAccess.MetricPermissionDenied, Name: "goaccess_permission_denied_total", Help: "Authorization checks that were denied."},
	{ID: goAccess.MetricMFAEnrollmentStarted, Name: "goaccess_mfa_enrollment_started_total", Help: "MFA secrets generated."},
	{ID: goAccess.MetricMFAEnabled, Name: "goaccess_mfa_enabled_total", Help: "MFA enrollments confirmed."},
	{ID: goAccess.MetricMFATOTPSuccess, Name: "goaccess_mfa_totp_success_total", Help: "Verifications satisfied by a TOTP code."},
	{ID: goAccess.MetricMFABackupCodeUsed, Name: "goaccess_mfa_backup_code_used_total", Help: "Verifications satisfied by a backup code."},
	{ID: goAccess.MetricMFAVerifyFailure, Name: "goaccess_mfa_verify_failure_total", Help: "Invalid MFA codes counted toward lockout."},
	{ID: goAccess.MetricMFALockout, Name: "goaccess_mfa_lockout_total", Help: "Accounts locked after repeated failures."},
	{ID: goAccess.MetricMFALockedOutRejected, Name: "goaccess_mfa_locked_out_rejected_total", Help: "Attempts rejected by an active lockout."},
	{ID: goAccess.MetricMFADisabled, Name: "goaccess_mfa_disabled_total", Help: "MFA disable operations."},
	{ID: goAccess.MetricBackupCodesRegenerated, Name: "goaccess_backup_codes_regenerated_total", Help: "Backup code regenerations."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccess.MetricMFAVerifyLatency, Name: "goaccess_mfa_verify_latency_seconds", Help: "VerifyMFAAtLogin latency."},
}

// AuditDroppedName is the counter of audit events lost to backpressure.
const (
	AuditDroppedName = "goaccess_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in instrument names.
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

// NormalizeBuckets pads or truncates raw to the eight core buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
