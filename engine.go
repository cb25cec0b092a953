package goAccess

import (
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/goAccess/internal/audit"
	"github.com/MrEthical07/goAccess/permission"
)

// Engine is the access-control core. It is built once by [Builder] and is
// safe for concurrent use; it holds no per-user state of its own.
type Engine struct {
	config  Config
	store   Store
	matrix  *permission.Matrix
	lockout lockoutBackend
	totp    *totpManager
	audit   *internalaudit.Dispatcher
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Close drains pending audit events and stops the dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events lost to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return cloneConfig(e.config)
}

// Matrix returns the permission matrix the engine evaluates against.
func (e *Engine) Matrix() *permission.Matrix {
	if e == nil {
		return nil
	}
	return e.matrix
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

func (e *Engine) clock() time.Time {
	if e == nil || e.now == nil {
		return time.Now()
	}
	return e.now()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.matrix != nil && e.lockout != nil && e.totp != nil
}
