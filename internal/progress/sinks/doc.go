// Package sinks implements concrete progress consumers: structured logging and
// Prometheus collectors. Each sink satisfies progress.Sink and tolerates
// repeated Consume/Close cycles.
package sinks
