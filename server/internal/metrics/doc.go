// Package metrics exposes server counters through a private Prometheus
// registry: frames by outcome, emotion model latency and errors, sessions,
// persisted summaries and fired alerts, plus a live-session gauge.
//
// Metrics satisfies analyzer.Recorder. Handler serves /metrics; Values
// backs the JSON status endpoint.
package metrics
