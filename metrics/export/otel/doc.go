// Package otel binds sessionkit metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter and an
// Int64ObservableGauge per histogram bucket. One callback reads
// [sessionkit.Service.MetricsSnapshot] on each collection cycle. Callers
// own the MeterProvider.
package otel
