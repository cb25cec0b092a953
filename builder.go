package goAccess

import (
	"errors"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goAccess/internal/audit"
	"github.com/MrEthical07/goAccess/internal/limiters"
	"github.com/MrEthical07/goAccess/permission"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A builder can be used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store     Store
	matrix    *permission.Matrix
	auditSink AuditSink
	logger    *slog.Logger
	now       func() time.Time

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the user/organization store. Required.
func (b *Builder) WithStore(store Store) *Builder {
	b.store = store
	return b
}

// WithRedis sets the client used by the redis lockout backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPermissionMatrix overrides [permission.Default].
func (b *Builder) WithPermissionMatrix(m *permission.Matrix) *Builder {
	b.matrix = m
	return b
}

// WithAuditSink sets the destination of audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the logger used for best-effort failures. Defaults to
// [slog.Default].
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now. Lockout windows and TOTP steps are evaluated
// against it.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("store required")
	}

	matrix := b.matrix
	if matrix == nil {
		matrix = permission.Default()
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config: cfg,
		store:  b.store,
		matrix: matrix,
		logger: logger,
		now:    now,
	}

	switch cfg.Lockout.Backend {
	case LockoutBackendRedis:
		if b.redis == nil {
			return nil, errors.New("redis lockout backend requires a redis client")
		}
		engine.lockout = &redisLockout{limiter: limiters.NewLockoutLimiter(b.redis, limiters.LockoutConfig{
			Prefix:    cfg.Lockout.RedisPrefix,
			Threshold: cfg.Lockout.Threshold,
			Duration:  cfg.Lockout.Duration,
		})}
	default:
		engine.lockout = &storeLockout{store: b.store, policy: cfg.Lockout.Policy()}
	}

	engine.totp = newTOTPManager(cfg.TOTP)
	engine.metrics = NewMetrics(cfg.Metrics)
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink, logger)

	b.built = true

	return engine, nil
}
