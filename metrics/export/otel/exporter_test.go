package otel

import (
	"context"
	"sync"
	"testing"

	goAccess "github.com/MrEthical07/goAccess"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goAccess.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goAccess.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goAccess.MetricsSnapshot{
		Counters:   make(map[goAccess.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goAccess.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(rm metricdata.ResourceMetrics, name string) (int64, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			case metricdata.Gauge[int64]:
				if len(data.DataPoints) > 0 {
					return data.DataPoints[0].Value, true
				}
			}
		}
	}
	return 0, false
}

func TestExporterCollectsCountersAndBuckets(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters: map[goAccess.MetricID]uint64{
				goAccess.MetricMFALockout:        2,
				goAccess.MetricPermissionDenied: 5,
			},
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricMFAVerifyLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewExporterFromSource(provider.Meter("goaccess-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if v, ok := findSum(rm, "goaccess_mfa_lockout_total"); !ok || v != 2 {
		t.Fatalf("expected lockout counter 2, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "goaccess_permission_denied_total"); !ok || v != 5 {
		t.Fatalf("expected denied counter 5, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "goaccess_mfa_verify_latency_seconds_bucket_le_inf"); !ok || v != 8 {
		t.Fatalf("expected cumulative +inf bucket 8, got %d (found=%v)", v, ok)
	}
	if v, ok := findSum(rm, "goaccess_audit_dropped_total"); !ok || v != 1 {
		t.Fatalf("expected audit dropped 1, got %d (found=%v)", v, ok)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	if _, err := NewExporterFromSource(provider.Meter("goaccess-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
	if _, err := NewExporter(provider.Meter("goaccess-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource for nil engine, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters:   map[goAccess.MetricID]uint64{goAccess.MetricMFAVerifyFailure: 1},
			Histograms: map[goAccess.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("goaccess-test"), src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goAccess.MetricMFAVerifyFailure] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
