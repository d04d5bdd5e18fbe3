package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// SSE event labels. Both step variants share the "step" label; the payload's
// presence or absence of partial_update distinguishes them.
const (
	LabelStep     = "step"
	LabelState    = "state"
	LabelComplete = "complete"
	LabelError    = "error"
)

// Label maps an event kind to its wire label.
func Label(k Kind) string {
	switch k {
	case KindStepStarted, KindStepUpdated:
		return LabelStep
	case KindStateSnapshot:
		return LabelState
	case KindCompleted:
		return LabelComplete
	case KindFailed:
		return LabelError
	default:
		return string(k)
	}
}

// stepPayload is the JSON body of a "step" frame.
type stepPayload struct {
	NodeID    string         `json:"node_id"`
	Update    map[string]any `json:"partial_update,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// statePayload is the JSON body of a "state" frame.
type statePayload struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

// completePayload is the JSON body of a "complete" frame.
type completePayload struct {
	Status     string         `json:"status"`
	Result     string         `json:"result"`
	FinalState map[string]any `json:"final_state"`
	Timestamp  float64        `json:"timestamp"`
}

// errorPayload is the JSON body of an "error" frame.
type errorPayload struct {
	Status    string         `json:"status"`
	ErrorKind string         `json:"error_kind"`
	Message   string         `json:"message"`
	NodeID    string         `json:"node_id,omitempty"`
	State     map[string]any `json:"state,omitempty"`
	Timestamp float64        `json:"timestamp"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// EncodeSSE renders one event as a server-sent-event frame:
//
//	event: <label>\n
//	data: <json>\n\n
func EncodeSSE(e Event) ([]byte, error) {
	var payload any
	switch e.Kind {
	case KindStepStarted:
		payload = stepPayload{NodeID: e.NodeID, Timestamp: unixSeconds(e.Timestamp)}
	case KindStepUpdated:
		payload = stepPayload{NodeID: e.NodeID, Update: e.Update, Timestamp: unixSeconds(e.Timestamp)}
	case KindStateSnapshot:
		payload = statePayload{Status: "processing", Message: e.Message, State: e.State, Timestamp: unixSeconds(e.Timestamp)}
	case KindCompleted:
		payload = completePayload{Status: "complete", Result: e.Result, FinalState: e.State, Timestamp: unixSeconds(e.Timestamp)}
	case KindFailed:
		payload = errorPayload{Status: "error", ErrorKind: e.ErrorKind, Message: e.Message, NodeID: e.NodeID, State: e.State, Timestamp: unixSeconds(e.Timestamp)}
	default:
		return nil, fmt.Errorf("unknown event kind %q", e.Kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Kind, err)
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", Label(e.Kind), data), nil
}

// SSESink writes events as SSE frames to an http.ResponseWriter (or any
// writer), flushing after every frame. A write failure marks the sink dead:
// the subscriber is gone, but the execution keeps running, so further
// events are silently discarded.
type SSESink struct {
	mu   sync.Mutex
	w    io.Writer
	fl   http.Flusher
	dead bool
}

// NewSSESink wraps a writer. If w implements http.Flusher, frames are
// flushed as they are written.
func NewSSESink(w io.Writer) *SSESink {
	s := &SSESink{w: w}
	if fl, ok := w.(http.Flusher); ok {
		s.fl = fl
	}
	return s
}

// Send implements Sink.
func (s *SSESink) Send(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dead {
		return
	}
	frame, err := EncodeSSE(e)
	if err != nil {
		return
	}
	if _, err := s.w.Write(frame); err != nil {
		s.dead = true
		return
	}
	if s.fl != nil {
		s.fl.Flush()
	}
}

// Dead reports whether the subscriber connection failed.
func (s *SSESink) Dead() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dead
}
