package run

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agents-forge/forge/config"
	"github.com/agents-forge/forge/graph"
	"github.com/agents-forge/forge/step"
	"github.com/agents-forge/forge/stream"
)

const testCapability = "test"

// fakeExec dispatches per node id, so one executor can drive a whole graph.
type fakeExec struct {
	keys []string
	fn   func(ctx context.Context, node graph.Node, snapshot graph.State) (graph.Update, string, error)
}

func (f *fakeExec) Capability() string   { return testCapability }
func (f *fakeExec) UpdateKeys() []string { return f.keys }
func (f *fakeExec) Execute(ctx context.Context, node graph.Node, snapshot graph.State) (graph.Update, string, error) {
	return f.fn(ctx, node, snapshot)
}

func testRegistry(keys []string, fn func(ctx context.Context, node graph.Node, snapshot graph.State) (graph.Update, string, error)) *step.Registry {
	reg := step.NewRegistry()
	reg.Register(&fakeExec{keys: keys, fn: fn})
	return reg
}

func compileGraph(t *testing.T, nodeIDs []string, edges [][2]string) *graph.Graph {
	t.Helper()
	cfg := &config.AgentConfig{AgentName: "test-graph"}
	for _, id := range nodeIDs {
		cfg.Nodes = append(cfg.Nodes, config.NodeConfig{ID: id, Type: testCapability})
	}
	for _, e := range edges {
		cfg.Edges = append(cfg.Edges, config.EdgeConfig{Source: e[0], Target: e[1]})
	}
	g, err := graph.Compile(cfg)
	require.NoError(t, err)
	return g
}

func diamondGraph(t *testing.T) *graph.Graph {
	t.Helper()
	return compileGraph(t,
		[]string{"a", "b", "c", "d"},
		[][2]string{
			{config.Start, "a"},
			{"a", "b"}, {"a", "c"},
			{"b", "d"}, {"c", "d"},
			{"d", config.End},
		})
}

// recordingSink accumulates the event sequence. The runner's single writer
// goroutine is the only caller and Run waits for it, so no lock is needed.
type recordingSink struct {
	events []stream.Event
}

func (s *recordingSink) Send(e stream.Event) { s.events = append(s.events, e) }

func (s *recordingSink) kinds() []stream.Kind {
	out := make([]stream.Kind, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.Kind)
	}
	return out
}

func TestRunLinearSuccess(t *testing.T) {
	reg := testRegistry([]string{"out"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		return graph.Update{"out": node.ID}, "narrative from " + node.ID, nil
	})
	g := compileGraph(t, []string{"a", "b"}, [][2]string{
		{config.Start, "a"}, {"a", "b"}, {"b", config.End},
	})

	sink := &recordingSink{}
	result, err := NewRunner(reg).Run(context.Background(), g, graph.State{"input": "q"}, sink)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.NotEmpty(t, result.ExecutionID)
	assert.Equal(t, "b", result.FinalState["out"])
	assert.Equal(t, "q", result.FinalState["input"])
	assert.Equal(t, "narrative from a\n\nnarrative from b", result.Output)

	assert.Equal(t, []stream.Kind{
		stream.KindStateSnapshot,
		stream.KindStepStarted, stream.KindStepUpdated,
		stream.KindStepStarted, stream.KindStepUpdated,
		stream.KindCompleted,
	}, sink.kinds())

	// Started(n) precedes Updated(n) and the terminal event closes the
	// sequence.
	assert.Equal(t, "a", sink.events[1].NodeID)
	assert.Equal(t, "a", sink.events[2].NodeID)
	assert.Equal(t, "b", sink.events[3].NodeID)
	last := sink.events[len(sink.events)-1]
	assert.True(t, last.Terminal())
	assert.Equal(t, result.Output, last.Result)
}

// Key collisions within a layer resolve to the lexicographically smallest
// node id, no matter which node finishes first.
func TestRunMergeTieBreak(t *testing.T) {
	release := make(chan struct{})
	reg := testRegistry([]string{"winner"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		if node.ID == "b" {
			// Hold b back so c merges first.
			<-release
		}
		if node.ID == "c" {
			defer close(release)
		}
		return graph.Update{"winner": node.ID}, node.ID, nil
	})
	g := diamondGraph(t)

	result, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), nil)
	require.NoError(t, err)
	assert.Equal(t, "b", result.FinalState["winner"], "smallest node id wins regardless of completion order")
}

func TestRunAbortsOnFirstFailure(t *testing.T) {
	reg := testRegistry([]string{"out"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		switch node.ID {
		case "b":
			return nil, "", errors.New("b exploded")
		case "c":
			// Finishes after b's failure has been recorded.
			time.Sleep(100 * time.Millisecond)
			return graph.Update{"out": "c"}, "c", nil
		default:
			return graph.Update{"out": node.ID}, node.ID, nil
		}
	})
	g := diamondGraph(t)

	sink := &recordingSink{}
	result, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), sink)
	require.Error(t, err)

	var runErr *Error
	require.ErrorAs(t, err, &runErr)
	assert.Same(t, result.Err, runErr)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Equal(t, Internal, runErr.Kind)
	assert.Equal(t, "b", runErr.NodeID)

	// c's post-failure result is discarded: the state stops at a's merge.
	assert.Equal(t, "a", result.FinalState["out"])

	// d never starts and exactly one terminal event is emitted.
	var failed int
	for _, e := range sink.events {
		assert.NotEqual(t, stream.KindCompleted, e.Kind)
		if e.Kind == stream.KindFailed {
			failed++
		}
		if e.Kind == stream.KindStepStarted {
			assert.NotEqual(t, "d", e.NodeID)
		}
	}
	assert.Equal(t, 1, failed)
	assert.True(t, sink.events[len(sink.events)-1].Terminal())
}

func TestRunNodeTimeout(t *testing.T) {
	reg := testRegistry(nil, func(ctx context.Context, _ graph.Node, _ graph.State) (graph.Update, string, error) {
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(time.Second):
			return graph.Update{}, "", nil
		}
	})
	g := compileGraph(t, []string{"slow"}, [][2]string{
		{config.Start, "slow"}, {"slow", config.End},
	})

	runner := NewRunner(reg, WithNodeTimeout(20*time.Millisecond))
	result, err := runner.Run(context.Background(), g, graph.NewState(), nil)
	require.Error(t, err)
	assert.Equal(t, NodeTimeout, result.Err.Kind)
	assert.Equal(t, "slow", result.Err.NodeID)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reg := testRegistry([]string{"out"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		if node.ID == "a" {
			cancel()
		}
		return graph.Update{"out": node.ID}, node.ID, nil
	})
	g := compileGraph(t, []string{"a", "b"}, [][2]string{
		{config.Start, "a"}, {"a", "b"}, {"b", config.End},
	})

	sink := &recordingSink{}
	result, err := NewRunner(reg).Run(ctx, g, graph.NewState(), sink)
	require.Error(t, err)
	assert.Equal(t, Canceled, result.Err.Kind)

	// b is never started after cancellation.
	for _, e := range sink.events {
		if e.Kind == stream.KindStepStarted {
			assert.Equal(t, "a", e.NodeID)
		}
	}
}

func TestRunUnknownCapability(t *testing.T) {
	g := compileGraph(t, []string{"a"}, [][2]string{
		{config.Start, "a"}, {"a", config.End},
	})

	sink := &recordingSink{}
	result, err := NewRunner(step.NewRegistry()).Run(context.Background(), g, graph.NewState(), sink)
	require.Error(t, err)
	assert.Equal(t, UnknownCapability, result.Err.Kind)

	// Dispatch fails before the step is announced.
	for _, e := range sink.events {
		assert.NotEqual(t, stream.KindStepStarted, e.Kind)
	}
}

func TestRunInvalidPartialUpdate(t *testing.T) {
	reg := testRegistry([]string{"allowed"}, func(_ context.Context, _ graph.Node, _ graph.State) (graph.Update, string, error) {
		return graph.Update{"forbidden": true}, "", nil
	})
	g := compileGraph(t, []string{"a"}, [][2]string{
		{config.Start, "a"}, {"a", config.End},
	})

	result, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), nil)
	require.Error(t, err)
	assert.Equal(t, InvalidPartialUpdate, result.Err.Kind)
	assert.NotContains(t, result.FinalState, "forbidden")
}

func TestRunPanicBecomesInternalError(t *testing.T) {
	reg := testRegistry(nil, func(_ context.Context, _ graph.Node, _ graph.State) (graph.Update, string, error) {
		panic("step bug")
	})
	g := compileGraph(t, []string{"a"}, [][2]string{
		{config.Start, "a"}, {"a", config.End},
	})

	result, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), nil)
	require.Error(t, err)
	assert.Equal(t, Internal, result.Err.Kind)
	assert.Contains(t, result.Err.Message, "step bug")
}

func TestRunConcurrencyBound(t *testing.T) {
	var active, peak atomic.Int32
	reg := testRegistry(nil, func(_ context.Context, _ graph.Node, _ graph.State) (graph.Update, string, error) {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		active.Add(-1)
		return graph.Update{}, "", nil
	})
	// One layer of four parallel nodes.
	g := compileGraph(t, []string{"w", "x", "y", "z"}, [][2]string{
		{config.Start, "w"}, {config.Start, "x"}, {config.Start, "y"}, {config.Start, "z"},
		{"w", config.End}, {"x", config.End}, {"y", config.End}, {"z", config.End},
	})

	runner := NewRunner(reg, WithMaxConcurrency(2))
	_, err := runner.Run(context.Background(), g, graph.NewState(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunLayerSnapshots(t *testing.T) {
	reg := testRegistry([]string{"out"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		return graph.Update{"out": node.ID}, node.ID, nil
	})
	g := diamondGraph(t)

	sink := &recordingSink{}
	runner := NewRunner(reg, WithLayerSnapshots())
	_, err := runner.Run(context.Background(), g, graph.NewState(), sink)
	require.NoError(t, err)

	var snapshots int
	for _, e := range sink.events {
		if e.Kind == stream.KindStateSnapshot {
			snapshots++
		}
	}
	// The starting snapshot plus one per layer.
	assert.Equal(t, 1+3, snapshots)
}

func TestRunNilSink(t *testing.T) {
	reg := testRegistry(nil, func(_ context.Context, _ graph.Node, _ graph.State) (graph.Update, string, error) {
		return graph.Update{}, "ok", nil
	})
	g := compileGraph(t, []string{"a"}, [][2]string{
		{config.Start, "a"}, {"a", config.End},
	})

	result, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, result.Status)
}

// The derived output is ordered by layer, lexicographic within a layer, so
// two runs of the same graph agree even when completion order differs.
func TestRunOutputDeterministic(t *testing.T) {
	reg := testRegistry([]string{"out"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		if node.ID == "b" {
			time.Sleep(30 * time.Millisecond)
		}
		return graph.Update{"out": node.ID}, node.ID, nil
	})
	g := diamondGraph(t)

	result, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), nil)
	require.NoError(t, err)
	assert.Equal(t, "a\n\nb\n\nc\n\nd", result.Output)
}

// Diamond event sequence: a, then b and c interleaved but each Started
// before its Updated, then d, then the terminal event.
func TestRunDiamondEventSequence(t *testing.T) {
	reg := testRegistry([]string{"out"}, func(_ context.Context, node graph.Node, _ graph.State) (graph.Update, string, error) {
		return graph.Update{"out": node.ID}, node.ID, nil
	})
	g := diamondGraph(t)

	sink := &recordingSink{}
	_, err := NewRunner(reg).Run(context.Background(), g, graph.NewState(), sink)
	require.NoError(t, err)

	started := make(map[string]int)
	updated := make(map[string]int)
	for i, e := range sink.events {
		switch e.Kind {
		case stream.KindStepStarted:
			started[e.NodeID] = i
		case stream.KindStepUpdated:
			updated[e.NodeID] = i
		}
	}

	for _, id := range []string{"a", "b", "c", "d"} {
		require.Contains(t, started, id)
		require.Contains(t, updated, id)
		assert.Less(t, started[id], updated[id], "Started(%s) must precede Updated(%s)", id, id)
	}
	// Layer boundaries: a finishes before b and c start; both finish
	// before d starts.
	assert.Less(t, updated["a"], started["b"])
	assert.Less(t, updated["a"], started["c"])
	assert.Less(t, updated["b"], started["d"])
	assert.Less(t, updated["c"], started["d"])
	assert.True(t, sink.events[len(sink.events)-1].Terminal())
}

func TestLastNarrative(t *testing.T) {
	narratives := []Narrative{{NodeID: "a", Text: "first"}, {NodeID: "b", Text: "last"}}
	assert.Equal(t, "last", LastNarrative(narratives, nil))
	assert.Equal(t, "", LastNarrative(nil, nil))
}

func TestJoinNarrativesSkipsEmpty(t *testing.T) {
	narratives := []Narrative{{NodeID: "a", Text: "one"}, {NodeID: "b"}, {NodeID: "c", Text: "two"}}
	assert.Equal(t, "one\n\ntwo", JoinNarratives(narratives, nil))
}
