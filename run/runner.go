// Package run schedules compiled workflow graphs: it walks the topological
// layering from entry to exit, executes the nodes of each layer with
// bounded concurrency, merges their partial updates into the shared state
// deterministically, and publishes progress events through a single-writer
// queue. One Runner may serve many executions concurrently; executions
// share nothing.
package run

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/log"
	"github.com/agents-forge/forge/step"
	"github.com/agents-forge/forge/stream"
)

// Status is the lifecycle state of one execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one execution.
type Result struct {
	// ExecutionID uniquely identifies the run.
	ExecutionID string

	// Status is StatusCompleted or StatusFailed.
	Status Status

	// FinalState is the shared state as of the last successful merge.
	FinalState graph.State

	// Output is the derived human-facing result of a completed run.
	Output string

	// Err is set when Status is StatusFailed.
	Err *Error
}

// Runner executes compiled graphs.
type Runner struct {
	execs          *step.Registry
	maxConcurrency int
	nodeTimeout    time.Duration
	eventBuffer    int
	layerSnapshots bool
	resultFunc     ResultFunc
	logger         log.Logger
}

// NewRunner creates a runner dispatching through the given executor registry.
func NewRunner(execs *step.Registry, opts ...Option) *Runner {
	r := &Runner{
		execs:          execs,
		maxConcurrency: defaultMaxConcurrency,
		nodeTimeout:    defaultNodeTimeout,
		eventBuffer:    defaultEventBuffer,
		resultFunc:     JoinNarratives,
		logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// nodeResult carries one node's outcome from its worker goroutine to the
// scheduler loop.
type nodeResult struct {
	nodeID    string
	update    graph.Update
	narrative string
	skipped   bool // node was never started (abort or cancellation)
	err       *Error
}

// Run executes the graph to completion or first failure. The sink receives
// the serialized event sequence; it may be nil, and its consumer
// disconnecting never affects the execution. Cancelling ctx aborts nodes
// that have not started yet and fails the execution with kind Canceled.
//
// Run returns the Result and, for failed executions, the same *Error as the
// error value. The terminal event is always delivered to the sink before
// Run returns.
func (r *Runner) Run(ctx context.Context, g *graph.Graph, initial graph.State, sink stream.Sink) (*Result, error) {
	execID := uuid.NewString()
	state := initial.Clone()

	// All event producers publish into one queue drained by a single
	// writer, so concurrent node completions can never interleave on the
	// subscriber side.
	events := make(chan stream.Event, r.eventBuffer)
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	go func() {
		defer writerWG.Done()
		for e := range events {
			if sink != nil {
				sink.Send(e)
			}
		}
	}()
	emit := func(e stream.Event) {
		e.Timestamp = time.Now()
		events <- e
	}
	finish := func(res *Result) (*Result, error) {
		close(events)
		writerWG.Wait()
		if res.Err != nil {
			return res, res.Err
		}
		return res, nil
	}

	r.logger.Info("execution %s: starting %q (%d nodes, %d layers)",
		execID, g.Name(), g.Len(), len(g.Layers()))
	emit(stream.Event{Kind: stream.KindStateSnapshot, State: state.Clone(), Message: "starting execution"})

	narratives := make(map[string]string, g.Len())
	var failure *Error
	var failed atomic.Bool

	for _, layer := range g.Layers() {
		if failure != nil || ctx.Err() != nil {
			break
		}

		results := make(chan nodeResult, len(layer))
		sem := make(chan struct{}, r.maxConcurrency)
		for _, id := range layer {
			go r.runNode(ctx, g, id, state.Clone(), sem, &failed, emit, results)
		}

		// Updates are merged as nodes finish; the per-layer writer map
		// makes the outcome independent of arrival order (lexicographically
		// smallest node id wins key collisions).
		layerWriters := make(map[string]string)
		for range layer {
			res := <-results
			if res.skipped {
				continue
			}
			if res.err != nil {
				if failure == nil {
					failure = res.err
					failed.Store(true)
				}
				continue
			}
			if failure != nil {
				// Completed after the failing sibling: the merge stops at
				// the last successful one before the failure.
				continue
			}
			applied, err := r.mergeUpdate(g, state, layerWriters, res)
			if err != nil {
				failure = err
				failed.Store(true)
				continue
			}
			narratives[res.nodeID] = res.narrative
			emit(stream.Event{Kind: stream.KindStepUpdated, NodeID: res.nodeID, Update: applied})
		}

		if failure == nil && r.layerSnapshots {
			emit(stream.Event{Kind: stream.KindStateSnapshot, State: state.Clone()})
		}
	}

	if failure == nil && ctx.Err() != nil {
		failure = &Error{Kind: Canceled, Message: ctx.Err().Error()}
	}

	if failure != nil {
		failure.State = state.Clone()
		r.logger.Warn("execution %s: failed (%s) at node %q", execID, failure.Kind, failure.NodeID)
		emit(stream.Event{
			Kind:      stream.KindFailed,
			NodeID:    failure.NodeID,
			ErrorKind: string(failure.Kind),
			Message:   failure.Message,
			State:     failure.State,
		})
		return finish(&Result{
			ExecutionID: execID,
			Status:      StatusFailed,
			FinalState:  failure.State,
			Err:         failure,
		})
	}

	output := r.resultFunc(orderNarratives(g, narratives), state)
	r.logger.Info("execution %s: completed", execID)
	emit(stream.Event{Kind: stream.KindCompleted, State: state.Clone(), Result: output})
	return finish(&Result{
		ExecutionID: execID,
		Status:      StatusCompleted,
		FinalState:  state.Clone(),
		Output:      output,
	})
}

// runNode executes one node in its own goroutine: acquire a concurrency
// slot, bail out if the execution already failed or was canceled, emit
// StepStarted, invoke the executor under the node deadline, report back.
func (r *Runner) runNode(ctx context.Context, g *graph.Graph, id string, snapshot graph.State,
	sem chan struct{}, failed *atomic.Bool, emit func(stream.Event), results chan<- nodeResult) {

	sem <- struct{}{}
	defer func() { <-sem }()

	if failed.Load() || ctx.Err() != nil {
		results <- nodeResult{nodeID: id, skipped: true}
		return
	}

	node, _ := g.Node(id)
	exec, ok := r.execs.Get(node.Capability)
	if !ok {
		results <- nodeResult{nodeID: id, err: &Error{
			Kind:    UnknownCapability,
			NodeID:  id,
			Message: fmt.Sprintf("no executor registered for capability %q", node.Capability),
		}}
		return
	}

	emit(stream.Event{Kind: stream.KindStepStarted, NodeID: id})
	r.logger.Debug("node %s: started (%s)", id, node.Capability)

	nodeCtx, cancel := context.WithTimeout(ctx, r.nodeTimeout)
	defer cancel()

	update, narrative, err := invoke(nodeCtx, exec, node, snapshot)
	if err != nil {
		r.logger.Debug("node %s: failed: %v", id, err)
		results <- nodeResult{nodeID: id, err: classify(nodeCtx, id, err)}
		return
	}
	results <- nodeResult{nodeID: id, update: update, narrative: narrative}
}

// invoke calls the executor with panic recovery, so a misbehaving step
// fails its execution instead of crashing the process.
func invoke(ctx context.Context, exec step.Executor, node graph.Node, snapshot graph.State) (update graph.Update, narrative string, err error) {
	defer func() {
		if p := recover(); p != nil {
			update, narrative = nil, ""
			err = fmt.Errorf("panic in node %s: %v", node.ID, p)
		}
	}()
	return exec.Execute(ctx, node, snapshot)
}

// mergeUpdate applies one node's update to the shared state. Keys must stay
// within the capability's declared set; within one layer a key already
// written by a lexicographically smaller node id is kept. Returns the delta
// that was actually applied.
func (r *Runner) mergeUpdate(g *graph.Graph, state graph.State, layerWriters map[string]string, res nodeResult) (graph.Update, *Error) {
	node, _ := g.Node(res.nodeID)
	exec, _ := r.execs.Get(node.Capability)
	allowed := exec.UpdateKeys()
	for key := range res.update {
		if !slices.Contains(allowed, key) {
			return nil, &Error{
				Kind:    InvalidPartialUpdate,
				NodeID:  res.nodeID,
				Message: fmt.Sprintf("update key %q outside capability %q key-set %v", key, node.Capability, allowed),
			}
		}
	}

	keys := make([]string, 0, len(res.update))
	for key := range res.update {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	applied := make(graph.Update, len(keys))
	for _, key := range keys {
		if writer, taken := layerWriters[key]; taken && writer < res.nodeID {
			continue
		}
		state[key] = res.update[key]
		layerWriters[key] = res.nodeID
		applied[key] = res.update[key]
	}
	return applied, nil
}
