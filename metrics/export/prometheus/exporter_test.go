package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/internal/workers"
)

type fakeSource struct {
	snapshot authd.MetricsSnapshot
	pools    []workers.Stats
}

func (f fakeSource) MetricsSnapshot() authd.MetricsSnapshot { return f.snapshot }
func (f fakeSource) WorkerStats() []workers.Stats          { return f.pools }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authd.MetricsSnapshot{
			Counters:   map[authd.MetricID]uint64{},
			Histograms: map[authd.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderDeterministicIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authd.MetricsSnapshot{
			Counters: map[authd.MetricID]uint64{
				authd.MetricLoginSuccess: 7,
			},
			Histograms: map[authd.MetricID][]uint64{
				authd.MetricResolveLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
	})

	out := exp.Render()
	if !strings.Contains(out, "authd_login_success_total 7\n") {
		t.Fatalf("expected login_success counter in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authd_refresh_replay_denied_total 0\n") {
		t.Fatalf("expected zero-valued counters in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authd_resolve_latency_seconds_bucket{le=\"0.005\"} 1") {
		t.Fatalf("expected first histogram bucket in output, got:\n%s", out)
	}
	if !strings.Contains(out, "authd_resolve_latency_seconds_bucket{le=\"+Inf\"} 36") {
		t.Fatalf("expected +Inf cumulative bucket in output, got:\n%s", out)
	}
	if strings.Contains(out, "authd_password_verify_latency_seconds") {
		t.Fatalf("histogram missing from the snapshot must not be rendered, got:\n%s", out)
	}
}

func TestRenderWorkerPools(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authd.MetricsSnapshot{},
		pools: []workers.Stats{
			{Name: "hash_pass", Queued: 3, Processed: 10},
			{Name: "verify_email", NoResult: 2, Panics: 1},
		},
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE authd_worker_pool_queued gauge\n",
		"authd_worker_pool_queued{pool=\"hash_pass\"} 3\n",
		"authd_worker_pool_processed_total{pool=\"hash_pass\"} 10\n",
		"authd_worker_pool_no_result_total{pool=\"verify_email\"} 2\n",
		"authd_worker_pool_panics_total{pool=\"verify_email\"} 1\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in output:\n%s", want, out)
		}
	}
	if strings.Contains(out, "authd_login_success_total") {
		t.Fatalf("disabled counters must not be rendered, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authd.MetricsSnapshot{
			Counters:   map[authd.MetricID]uint64{authd.MetricLoginSuccess: 1},
			Histograms: map[authd.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: authd.MetricsSnapshot{
			Counters: map[authd.MetricID]uint64{
				authd.MetricLoginSuccess:        1000,
				authd.MetricLoginFailure:        40,
				authd.MetricRefreshSuccess:      800,
				authd.MetricRefreshReplayDenied: 10,
				authd.MetricSessionCreated:      800,
			},
			Histograms: map[authd.MetricID][]uint64{
				authd.MetricResolveLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
		pools: []workers.Stats{{Name: "hash_pass"}, {Name: "verify_pass"}},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
