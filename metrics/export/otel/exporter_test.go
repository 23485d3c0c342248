package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/internal/workers"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authd.MetricsSnapshot
	pools    []workers.Stats
}

func (f *fakeSource) MetricsSnapshot() authd.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authd.MetricsSnapshot{
		Counters:   make(map[authd.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authd.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) WorkerStats() []workers.Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]workers.Stats(nil), f.pools...)
}

func newMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("authd-test")

	src := &fakeSource{
		snapshot: authd.MetricsSnapshot{
			Counters: map[authd.MetricID]uint64{
				authd.MetricLoginSuccess: 3,
			},
			Histograms: map[authd.MetricID][]uint64{
				authd.MetricResolveLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		pools: []workers.Stats{{Name: "hash_pass", Queued: 4, Processed: 9}},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
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

	login, ok := findMetric(rm, "authd_login_success_total")
	if !ok {
		t.Fatal("login counter not collected")
	}
	sum, ok := login.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected login counter data: %#v", login.Data)
	}

	inf, ok := findMetric(rm, "authd_resolve_latency_seconds_bucket_le_inf")
	if !ok {
		t.Fatal("resolve latency bucket not collected")
	}
	gauge, ok := inf.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 || gauge.DataPoints[0].Value != 8 {
		t.Fatalf("unexpected +Inf bucket data: %#v", inf.Data)
	}

	queued, ok := findMetric(rm, "authd_worker_pool_queued")
	if !ok {
		t.Fatal("pool gauge not collected")
	}
	qg, ok := queued.Data.(metricdata.Gauge[int64])
	if !ok || len(qg.DataPoints) != 1 || qg.DataPoints[0].Value != 4 {
		t.Fatalf("unexpected pool gauge data: %#v", queued.Data)
	}
	if v, _ := qg.DataPoints[0].Attributes.Value(attribute.Key("pool")); v.AsString() != "hash_pass" {
		t.Fatalf("expected pool attribute hash_pass, got %q", v.AsString())
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	_, provider := newMeter()
	meter := provider.Meter("authd-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
	if _, err := NewOTelExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeter()
	meter := provider.Meter("authd-test")

	src := &fakeSource{
		snapshot: authd.MetricsSnapshot{
			Counters: map[authd.MetricID]uint64{
				authd.MetricLoginSuccess: 1,
			},
			Histograms: map[authd.MetricID][]uint64{
				authd.MetricPasswordVerifyLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authd.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
