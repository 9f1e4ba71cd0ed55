// Package metrics records SDK activity: payment event counts from the event
// bus and chain lookup latencies from the client.
package metrics

import "time"

// Recorder receives counters and latencies. Labels always carry "chain".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(operation string, duration time.Duration, labels map[string]string)
}

// NoopRecorder discards everything. It is the default.
type NoopRecorder struct{}

func (NoopRecorder) IncCounter(string, map[string]string)                    {}
func (NoopRecorder) ObserveLatency(string, time.Duration, map[string]string) {}
