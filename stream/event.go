// Package stream defines the progress protocol between a running execution
// and its subscriber: the typed event sequence the scheduler emits, the SSE
// wire encoding, and the subscriber-side reducer that reconstructs a
// consistent view under at-least-once delivery.
package stream

import (
	"sync/atomic"
	"time"

	"github.com/agents-forge/forge/graph"
)

// Kind tags the progress event variants.
type Kind string

const (
	// KindStepStarted marks a node beginning execution.
	KindStepStarted Kind = "step_started"
	// KindStepUpdated carries the merged delta a completed node contributed.
	KindStepUpdated Kind = "step_updated"
	// KindStateSnapshot carries the full shared state at a point in time.
	KindStateSnapshot Kind = "state_snapshot"
	// KindCompleted is the successful terminal event.
	KindCompleted Kind = "completed"
	// KindFailed is the failing terminal event.
	KindFailed Kind = "failed"
)

// Event is one unit of the progress protocol. Events for an execution are
// append-only and ordered by emission time; delivery may be retried, so
// consumers must treat step events as idempotent by (NodeID, Kind) and a
// second terminal event as a no-op.
type Event struct {
	Kind      Kind         `json:"kind"`
	NodeID    string       `json:"node_id,omitempty"`
	Update    graph.Update `json:"partial_update,omitempty"`
	State     graph.State  `json:"state,omitempty"`
	Result    string       `json:"result,omitempty"`
	ErrorKind string       `json:"error_kind,omitempty"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Terminal reports whether the event ends its execution's sequence.
func (e Event) Terminal() bool {
	return e.Kind == KindCompleted || e.Kind == KindFailed
}

// Sink receives the serialized event sequence of one execution. The
// scheduler calls Send from a single goroutine and never blocks on a
// subscriber: implementations must return promptly and absorb or drop
// events themselves if their consumer is slow or gone.
type Sink interface {
	Send(e Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(e Event)

// Send implements Sink.
func (f SinkFunc) Send(e Event) { f(e) }

// ChannelSink forwards events into a channel, dropping when full so a slow
// consumer can never stall the writer loop.
type ChannelSink struct {
	ch      chan Event
	dropped atomic.Int64
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

// Send implements Sink.
func (s *ChannelSink) Send(e Event) {
	select {
	case s.ch <- e:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side of the sink.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// Close closes the event channel. Call only after the execution finished.
func (s *ChannelSink) Close() {
	close(s.ch)
}

// Dropped returns how many events were discarded due to a full buffer.
// Safe to call while the writer is still sending.
func (s *ChannelSink) Dropped() int {
	return int(s.dropped.Load())
}

// MultiSink fans an event out to several sinks.
type MultiSink []Sink

// Send implements Sink.
func (m MultiSink) Send(e Event) {
	for _, s := range m {
		if s != nil {
			s.Send(e)
		}
	}
}
