// Package metrics holds the engine's in-process counters and latency
// histograms. Exporters in metrics/export read snapshots; nothing here
// talks to a metrics backend.
package metrics
