package prometheus

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goAccess "github.com/MrEthical07/goAccess"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

type fakeSource struct {
	snapshot goAccess.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goAccess.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func gather(t *testing.T, c *Collector) map[string]*dto.MetricFamily {
	t.Helper()
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	out := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		out[f.GetName()] = f
	}
	return out
}

func TestCollectorReportsCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters: map[goAccess.MetricID]uint64{
				goAccess.MetricMFATOTPSuccess: 7,
			},
			Histograms: map[goAccess.MetricID][]uint64{
				goAccess.MetricMFAVerifyLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	families := gather(t, c)

	totp := families["goaccess_mfa_totp_success_total"]
	if totp == nil || totp.GetMetric()[0].GetCounter().GetValue() != 7 {
		t.Fatalf("expected totp success counter 7, got %v", totp)
	}

	hist := families["goaccess_mfa_verify_latency_seconds"]
	if hist == nil {
		t.Fatal("expected latency histogram family")
	}
	h := hist.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 36 {
		t.Fatalf("expected sample count 36, got %d", h.GetSampleCount())
	}
	if first := h.GetBucket()[0]; first.GetUpperBound() != 0.005 || first.GetCumulativeCount() != 1 {
		t.Fatalf("unexpected first bucket: le=%v count=%d", first.GetUpperBound(), first.GetCumulativeCount())
	}

	dropped := families["goaccess_audit_dropped_total"]
	if dropped == nil || dropped.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected audit dropped 2, got %v", dropped)
	}
}

func TestCollectorZeroSnapshot(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters:   map[goAccess.MetricID]uint64{},
			Histograms: map[goAccess.MetricID][]uint64{},
		},
	})

	families := gather(t, c)
	denied := families["goaccess_permission_denied_total"]
	if denied == nil || denied.GetMetric()[0].GetCounter().GetValue() != 0 {
		t.Fatalf("expected zero denied counter, got %v", denied)
	}
}

func TestHandlerServesTextFormat(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goAccess.MetricsSnapshot{
			Counters:   map[goAccess.MetricID]uint64{goAccess.MetricMFALockout: 1},
			Histograms: map[goAccess.MetricID][]uint64{},
		},
	})
	h, err := Handler(c)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "goaccess_mfa_lockout_total 1") {
		t.Fatalf("expected lockout counter in body, got:\n%s", body)
	}
}

func TestHandlerRejectsDoubleRegistration(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{})
	reg := prometheus.NewRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := reg.Register(c); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}
