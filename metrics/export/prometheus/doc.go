// Package prometheus exposes authcore engine metrics as a
// prometheus/client_golang Collector. Register it on a registry and serve
// the registry with promhttp.
package prometheus
