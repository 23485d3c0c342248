// Package otel binds authd engine metrics to OpenTelemetry instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter, an
// Int64ObservableGauge per histogram bucket, and pool-labelled instruments for the
// crypto worker pools. One callback reads [authd.Engine.MetricsSnapshot] and
// [authd.Engine.WorkerStats] on each collection cycle.
//
// Callers own the MeterProvider.
package otel
