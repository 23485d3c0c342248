// Package prometheus renders authd engine metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts an [authd.Engine] and exposes an [http.Handler].
// Counters are named authd_*_total, the two latency histograms are
// authd_resolve_latency_seconds and authd_password_verify_latency_seconds, and each
// crypto worker pool reports queue depth and job totals under a pool label.
//
// The exporter never registers with a global registry and never mutates engine state.
package prometheus
