package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/internal/workers"
	"github.com/MrEthical07/authd/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() authd.MetricsSnapshot
	WorkerStats() []workers.Stats
}

type observedCounter struct {
	id         authd.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      authd.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

type observedPools struct {
	queued    metric.Int64ObservableGauge
	processed metric.Int64ObservableCounter
	noResult  metric.Int64ObservableCounter
	panics    metric.Int64ObservableCounter
}

// OTelExporter publishes engine metrics through asynchronous OTel instruments.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	pools        observedPools
}

// NewOTelExporter registers instruments on meter that read from engine.
func NewOTelExporter(meter metric.Meter, engine *authd.Engine) (*OTelExporter, error) {
	if engine == nil {
		return nil, ErrNilSource
	}
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+4)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i := 0; i < len(internaldefs.HistogramBoundSuffix); i++ {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	var err error
	p := &exporter.pools
	if p.queued, err = meter.Int64ObservableGauge(internaldefs.PoolQueuedName, metric.WithDescription("Jobs waiting in the worker pool queue.")); err != nil {
		return nil, fmt.Errorf("create pool gauge: %w", err)
	}
	if p.processed, err = meter.Int64ObservableCounter(internaldefs.PoolProcessedName, metric.WithDescription("Jobs completed by the worker pool.")); err != nil {
		return nil, fmt.Errorf("create pool counter: %w", err)
	}
	if p.noResult, err = meter.Int64ObservableCounter(internaldefs.PoolNoResultName, metric.WithDescription("Submissions that returned without a result.")); err != nil {
		return nil, fmt.Errorf("create pool counter: %w", err)
	}
	if p.panics, err = meter.Int64ObservableCounter(internaldefs.PoolPanicsName, metric.WithDescription("Jobs that panicked inside the worker pool.")); err != nil {
		return nil, fmt.Errorf("create pool counter: %w", err)
	}
	observables = append(observables, p.queued, p.processed, p.noResult, p.panics)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) > 0 {
		for _, c := range e.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
	}
	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i := 0; i < len(cumulative); i++ {
			observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
		}
		observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	for _, s := range e.source.WorkerStats() {
		pool := metric.WithAttributes(attribute.String("pool", s.Name))
		observer.ObserveInt64(e.pools.queued, int64(s.Queued), pool)
		observer.ObserveInt64(e.pools.processed, int64(s.Processed), pool)
		observer.ObserveInt64(e.pools.noResult, int64(s.NoResult), pool)
		observer.ObserveInt64(e.pools.panics, int64(s.Panics), pool)
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
