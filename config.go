package goAccess

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/goAccess/permission"
)

// Config is the complete engine configuration. Start from [DefaultConfig]
// and override individual sections.
type Config struct {
	TOTP        TOTPConfig
	BackupCodes BackupCodeConfig
	Lockout     LockoutConfig
	MFA         MFAConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
MFA CONFIG
====================================
*/

// TOTPConfig holds the RFC 6238 parameters. Authenticator apps only reliably
// support SHA1, 6 digits and a 30 second period.
type TOTPConfig struct {
	Issuer string
	// Period is the time step in seconds.
	Period int
	Digits int
	// Skew is the number of steps accepted on each side of the current one.
	Skew       int
	SecretSize int
	// QRCodeSize is the PNG edge length in pixels.
	QRCodeSize int
}

// BackupCodeConfig controls backup code generation.
type BackupCodeConfig struct {
	Count  int
	Length int
}

// LockoutBackend selects where lockout counters live.
type LockoutBackend string

const (
	// LockoutBackendStore keeps counters on the user record via [Store.RecordMFAFailure].
	LockoutBackendStore LockoutBackend = "store"
	// LockoutBackendRedis keeps counters in Redis, updated by a Lua script.
	LockoutBackendRedis LockoutBackend = "redis"
)

// LockoutConfig defines the failure threshold, lock window and backend.
type LockoutConfig struct {
	Threshold   int
	Duration    time.Duration
	Backend     LockoutBackend
	RedisPrefix string
}

// Policy returns the threshold/duration pair handed to stores.
func (c LockoutConfig) Policy() LockoutPolicy {
	return LockoutPolicy{Threshold: c.Threshold, Duration: c.Duration}
}

// MFAConfig holds role entitlements for the MFA lifecycle.
type MFAConfig struct {
	// EligibleRoles may enroll in MFA.
	EligibleRoles []permission.Role
	// AdminRole may disable MFA for other users of its organization.
	AdminRole permission.Role
}

/*
====================================
OBSERVABILITY CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig toggles in-process counters and the verification latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults: SHA1/6 digits/30 s TOTP
// with one step of skew, ten 8-character backup codes, and a 15 minute lock
// after 5 failures kept on the user record.
func DefaultConfig() Config {
	return Config{
		TOTP: TOTPConfig{
			Issuer:     "MySDAManager",
			Period:     30,
			Digits:     6,
			Skew:       1,
			SecretSize: 20,
			QRCodeSize: 256,
		},
		BackupCodes: BackupCodeConfig{
			Count:  10,
			Length: 8,
		},
		Lockout: LockoutConfig{
			Threshold:   5,
			Duration:    15 * time.Minute,
			Backend:     LockoutBackendStore,
			RedisPrefix: "mfa:lock",
		},
		MFA: MFAConfig{
			EligibleRoles: []permission.Role{permission.RoleAdmin},
			AdminRole:     permission.RoleAdmin,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.MFA.EligibleRoles = append([]permission.Role(nil), cfg.MFA.EligibleRoles...)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations that would weaken or break verification.
func (c *Config) Validate() error {
	// TOTP
	if strings.TrimSpace(c.TOTP.Issuer) == "" {
		return errors.New("TOTP Issuer must not be empty")
	}
	if strings.Contains(c.TOTP.Issuer, ":") {
		return errors.New("TOTP Issuer must not contain ':'")
	}
	if c.TOTP.Period <= 0 {
		return errors.New("TOTP Period must be > 0")
	}
	if c.TOTP.Digits != 6 && c.TOTP.Digits != 8 {
		return errors.New("TOTP Digits must be 6 or 8")
	}
	if c.TOTP.Skew < 0 || c.TOTP.Skew > 2 {
		return errors.New("TOTP Skew must be between 0 and 2")
	}
	if c.TOTP.SecretSize < 16 {
		return errors.New("TOTP SecretSize must be >= 16 bytes")
	}
	if c.TOTP.QRCodeSize < 64 {
		return errors.New("TOTP QRCodeSize must be >= 64")
	}

	// Backup codes
	if c.BackupCodes.Count <= 0 {
		return errors.New("BackupCodes Count must be > 0")
	}
	if c.BackupCodes.Length < 8 {
		return errors.New("BackupCodes Length must be >= 8")
	}
	if c.BackupCodes.Length == c.TOTP.Digits {
		return errors.New("BackupCodes Length must differ from TOTP Digits")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}
	switch c.Lockout.Backend {
	case LockoutBackendStore:
	case LockoutBackendRedis:
		if strings.TrimSpace(c.Lockout.RedisPrefix) == "" {
			return errors.New("Lockout RedisPrefix must not be empty for the redis backend")
		}
	default:
		return errors.New("Lockout Backend must be 'store' or 'redis'")
	}

	// MFA
	if len(c.MFA.EligibleRoles) == 0 {
		return errors.New("MFA EligibleRoles must not be empty")
	}
	for _, r := range c.MFA.EligibleRoles {
		if !r.Valid() {
			return errors.New("MFA EligibleRoles contains unknown role " + string(r))
		}
	}
	if !c.MFA.AdminRole.Valid() {
		return errors.New("MFA AdminRole is not a known role")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	return nil
}
