package stream

import (
	"time"

	"github.com/agents-forge/forge/graph"
)

// Status is the subscriber-visible overall execution status.
type Status string

const (
	StatusStarting   Status = "starting"
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// StepView is the reduced view of one step, replace-by-id under retries.
type StepView struct {
	NodeID    string
	Started   bool
	Updated   bool
	Update    graph.Update
	StartedAt time.Time
	UpdatedAt time.Time
}

// View reconstructs a consistent picture of one execution from a possibly
// duplicated event delivery. It is the single reducer every consumer
// shares; apply events in the order received.
type View struct {
	steps []*StepView
	byID  map[string]*StepView

	status     Status
	current    string
	finalState graph.State
	result     string
	errKind    string
	errMessage string
	errNodeID  string
}

// NewView creates a view in the starting state.
func NewView() *View {
	return &View{
		byID:   make(map[string]*StepView),
		status: StatusStarting,
	}
}

// Apply folds one event into the view. Step events are idempotent keyed by
// (node id, kind); a second terminal event is a no-op.
func (v *View) Apply(e Event) {
	if v.Terminal() && e.Terminal() {
		return
	}

	switch e.Kind {
	case KindStepStarted:
		s := v.step(e.NodeID)
		if !s.Started {
			s.Started = true
			s.StartedAt = e.Timestamp
			v.current = e.NodeID
		}
		v.processing()

	case KindStepUpdated:
		s := v.step(e.NodeID)
		s.Updated = true
		s.Update = e.Update
		s.UpdatedAt = e.Timestamp
		if v.current == e.NodeID {
			v.current = v.lastPending()
		}
		v.processing()

	case KindStateSnapshot:
		v.finalState = e.State
		v.processing()

	case KindCompleted:
		v.status = StatusComplete
		v.finalState = e.State
		v.result = e.Result
		v.current = ""

	case KindFailed:
		v.status = StatusError
		if e.State != nil {
			v.finalState = e.State
		}
		v.errKind = e.ErrorKind
		v.errMessage = e.Message
		v.errNodeID = e.NodeID
		v.current = ""
	}
}

// step returns the view for a node, inserting it in first-seen order.
func (v *View) step(nodeID string) *StepView {
	if s, ok := v.byID[nodeID]; ok {
		return s
	}
	s := &StepView{NodeID: nodeID}
	v.byID[nodeID] = s
	v.steps = append(v.steps, s)
	return s
}

// lastPending returns the most recently started node that has not yet
// received its update, or "".
func (v *View) lastPending() string {
	for i := len(v.steps) - 1; i >= 0; i-- {
		if v.steps[i].Started && !v.steps[i].Updated {
			return v.steps[i].NodeID
		}
	}
	return ""
}

func (v *View) processing() {
	if v.status == StatusStarting {
		v.status = StatusProcessing
	}
}

// Steps returns the known steps in first-seen order.
func (v *View) Steps() []StepView {
	out := make([]StepView, 0, len(v.steps))
	for _, s := range v.steps {
		out = append(out, *s)
	}
	return out
}

// Current returns the node id of the step in flight, or "".
func (v *View) Current() string { return v.current }

// Status returns the overall status.
func (v *View) Status() Status { return v.status }

// Terminal reports whether a terminal event was applied.
func (v *View) Terminal() bool {
	return v.status == StatusComplete || v.status == StatusError
}

// FinalState returns the last state carried by a snapshot or terminal event.
func (v *View) FinalState() graph.State { return v.finalState }

// Result returns the derived result of a completed execution.
func (v *View) Result() string { return v.result }

// Err returns the failure details of an errored execution.
func (v *View) Err() (kind, message, nodeID string) {
	return v.errKind, v.errMessage, v.errNodeID
}
