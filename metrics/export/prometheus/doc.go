// Package prometheus exposes sessionkit counters to a Prometheus registry.
//
// [PrometheusExporter] is a collector: register it on your own registry, or
// mount [PrometheusExporter.Handler] which uses a private one. Counters are
// named sessionkit_*_total and the lookup latency histogram is
// sessionkit_lookup_latency_seconds.
//
// The exporter never registers in the global default registry.
package prometheus
