package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/MrEthical07/authd"
	"github.com/MrEthical07/authd/internal/workers"
	"github.com/MrEthical07/authd/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() authd.MetricsSnapshot
	WorkerStats() []workers.Stats
}

// PrometheusExporter renders authd metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter creates a Prometheus exporter that reads from the given [authd.Engine].
func NewPrometheusExporter(engine *authd.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource creates a Prometheus exporter from any metrics source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render writes the current metrics in Prometheus text exposition format.
// Worker pool series are written even when engine metrics are disabled.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	pools := p.source.WorkerStats()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && len(pools) == 0 {
		return ""
	}

	var b strings.Builder
	b.Grow(8192)

	if len(snapshot.Counters) > 0 {
		for _, def := range internaldefs.CounterDefs {
			writeCounter(&b, def.Name, def.Help, snapshot.Counters[def.ID])
		}
	}

	for _, def := range internaldefs.HistogramDefs {
		raw, ok := snapshot.Histograms[def.ID]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		writeHistogram(&b, def.Name, def.Help, cumulative)
	}

	if len(pools) > 0 {
		writePools(&b, pools)
	}

	return b.String()
}

func writeHeader(b *strings.Builder, name, help, kind string) {
	b.WriteString("# HELP ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(escapeHelp(help))
	b.WriteByte('\n')
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(kind)
	b.WriteByte('\n')
}

func writeCounter(b *strings.Builder, name, help string, value uint64) {
	writeHeader(b, name, help, "counter")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(strconv.FormatUint(value, 10))
	b.WriteByte('\n')
}

func writeHistogram(b *strings.Builder, name, help string, cumulative [8]uint64) {
	writeHeader(b, name, help, "histogram")

	for i, le := range internaldefs.HistogramBounds {
		b.WriteString(name)
		b.WriteString("_bucket{le=\"")
		b.WriteString(le)
		b.WriteString("\"} ")
		b.WriteString(strconv.FormatUint(cumulative[i], 10))
		b.WriteByte('\n')
	}

	count := cumulative[len(cumulative)-1]
	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(count, 10))
	b.WriteByte('\n')

	// Snapshots carry bucket counts only.
	b.WriteString(name)
	b.WriteString("_sum 0\n")
}

func writePools(b *strings.Builder, pools []workers.Stats) {
	series := []struct {
		name  string
		help  string
		kind  string
		value func(workers.Stats) uint64
	}{
		{internaldefs.PoolQueuedName, "Jobs waiting in the worker pool queue.", "gauge", func(s workers.Stats) uint64 { return uint64(s.Queued) }},
		{internaldefs.PoolProcessedName, "Jobs completed by the worker pool.", "counter", func(s workers.Stats) uint64 { return s.Processed }},
		{internaldefs.PoolNoResultName, "Submissions that returned without a result.", "counter", func(s workers.Stats) uint64 { return s.NoResult }},
		{internaldefs.PoolPanicsName, "Jobs that panicked inside the worker pool.", "counter", func(s workers.Stats) uint64 { return s.Panics }},
	}

	for _, m := range series {
		writeHeader(b, m.name, m.help, m.kind)
		for _, s := range pools {
			b.WriteString(m.name)
			b.WriteString("{pool=\"")
			b.WriteString(s.Name)
			b.WriteString("\"} ")
			b.WriteString(strconv.FormatUint(m.value(s), 10))
			b.WriteByte('\n')
		}
	}
}

func escapeHelp(help string) string {
	help = strings.ReplaceAll(help, "\\", "\\\\")
	help = strings.ReplaceAll(help, "\n", "\\n")
	return help
}
