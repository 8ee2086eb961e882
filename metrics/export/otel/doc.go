// Package otel publishes jwtauth engine metrics through an OpenTelemetry
// Meter.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter and,
// per latency histogram, a cumulative bucket counter keyed by an "le"
// attribute plus a sample count. A single callback reads
// [jwtauth.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
