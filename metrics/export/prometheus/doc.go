// Package prometheus exposes jwtauth engine metrics as a Prometheus
// collector.
//
// [NewCollector] wraps a [jwtauth.Engine]; register it with a registry or
// mount [Collector.Handler]. Counter names are prefixed jwtauth_*_total and
// the latency histograms are jwtauth_authorize_latency_seconds and
// jwtauth_refresh_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
