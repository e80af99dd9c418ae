package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/pointyflow/internal/ctxlog"
	"github.com/vk/pointyflow/internal/executorpool"
	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/resultstore"
	"github.com/vk/pointyflow/internal/taskgraph"
	"github.com/vk/pointyflow/internal/value"
)

func testCtx() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.DiscardHandler))
}

func newConfig(reg *registry.Registry) Config {
	return Config{
		Registry:    reg,
		Pools:       executorpool.New(executorpool.Options{}),
		ResultStore: resultstore.New(),
	}
}

func constHandler(v string) registry.HandlerFunc {
	return func(ctx context.Context, input value.Value) (value.Value, error) {
		return value.FromGo(v)
	}
}

func TestRun_SingleNodeSucceeds(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, constHandler("hello"))

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	require.NoError(t, g.AddNode(a))
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)

	res, ok := s.cfg.ResultStore.Get("a")
	require.True(t, ok)
	got, _ := res.Value.ToGo()
	assert.Equal(t, "hello", got)

	require.Contains(t, outcome.Results, "a")
	assert.Equal(t, "hello", got)
	timing := outcome.Timings["a"]
	assert.Equal(t, 1, timing.Attempts)
	assert.False(t, timing.Started.IsZero())
	assert.False(t, timing.Ended.Before(timing.Started))
}

func TestRun_SeqDeliversSingleValueUnwrapped(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, constHandler("X"))
	var seenInput any
	reg.RegisterFunc("b", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		seenInput, _ = input.ToGo()
		return input, nil
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	b := taskgraph.NewNode("b", "b")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	g.AddEdge(a, b, taskgraph.Seq)
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)
	assert.Equal(t, "X", seenInput)
}

func TestRun_MultiplePredecessorsComposeKeyedObject(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, constHandler("X"))
	reg.RegisterFunc("b", registry.IOBound, constHandler("Y"))
	var seenInput any
	reg.RegisterFunc("c", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		seenInput, _ = input.ToGo()
		return input, nil
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	b := taskgraph.NewNode("b", "b")
	c := taskgraph.NewNode("c", "c")
	for _, n := range []*taskgraph.Node{a, b, c} {
		require.NoError(t, g.AddNode(n))
	}
	g.AddEdge(a, c, taskgraph.Seq)
	g.AddEdge(b, c, taskgraph.Seq)
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)

	composed, ok := seenInput.(map[string]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"X", "Y"}, []any{composed["a"], composed["b"]})
}

func TestRun_BroadcastDeliversIdenticalValueIndependently(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, constHandler("shared"))
	var seenB, seenC any
	reg.RegisterFunc("b", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		seenB, _ = input.ToGo()
		return input, nil
	})
	reg.RegisterFunc("c", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		seenC, _ = input.ToGo()
		return input, nil
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	b := taskgraph.NewNode("b", "b")
	c := taskgraph.NewNode("c", "c")
	for _, n := range []*taskgraph.Node{a, b, c} {
		require.NoError(t, g.AddNode(n))
	}
	g.AddEdge(a, b, taskgraph.Broadcast)
	g.AddEdge(a, c, taskgraph.Broadcast)
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)
	assert.Equal(t, "shared", seenB)
	assert.Equal(t, "shared", seenC)
}

func TestRun_ParallelDoesNotGateEachOther(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, constHandler("A"))
	reg.RegisterFunc("b", registry.IOBound, constHandler("B"))

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	b := taskgraph.NewNode("b", "b")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	g.AddEdge(a, b, taskgraph.Parallel)
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)
}

func TestRun_RetriesUntilSuccess(t *testing.T) {
	reg := registry.New()
	var calls atomic.Int32
	reg.RegisterFunc("a", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		if calls.Add(1) < 3 {
			return value.Nil, fmt.Errorf("transient failure")
		}
		return value.FromGo("ok")
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	a.RetryBudget = 2
	require.NoError(t, g.AddNode(a))
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)
	assert.EqualValues(t, 3, calls.Load())
	assert.Equal(t, 3, outcome.Timings["a"].Attempts)
}

func TestRun_RetriesExhaustedFailsAndPropagatesUpstream(t *testing.T) {
	reg := registry.New()
	var calls atomic.Int32
	reg.RegisterFunc("a", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		calls.Add(1)
		return value.Nil, fmt.Errorf("always fails")
	})
	bCalled := false
	reg.RegisterFunc("b", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		bCalled = true
		return value.Nil, nil
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	a.RetryBudget = 1
	b := taskgraph.NewNode("b", "b")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	g.AddEdge(a, b, taskgraph.Seq)
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.Error(t, err)
	assert.Equal(t, Failed, outcome.Status)
	assert.Contains(t, outcome.FailedNodes, "a")
	assert.EqualValues(t, 2, calls.Load())
	assert.False(t, bCalled)

	res, ok := s.cfg.ResultStore.Get("b")
	require.True(t, ok)
	var upstream *UpstreamFailed
	require.ErrorAs(t, res.Err, &upstream)
	assert.Equal(t, "a", upstream.Origin)
}

func TestRun_FailureDoesNotCancelIndependentBranch(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		return value.Nil, fmt.Errorf("boom")
	})
	bSucceeded := false
	reg.RegisterFunc("b", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		bSucceeded = true
		return value.FromGo("fine")
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	b := taskgraph.NewNode("b", "b")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	// a and b are independent roots (Parallel-style absence of an edge).
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.Error(t, err)
	assert.Equal(t, Failed, outcome.Status)
	assert.True(t, bSucceeded)

	res, ok := s.cfg.ResultStore.Get("b")
	require.True(t, ok)
	assert.NoError(t, res.Err)
}

func TestRun_NonRetryableSkipsRemainingAttempts(t *testing.T) {
	reg := registry.New()
	var calls atomic.Int32
	reg.RegisterFunc("a", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		calls.Add(1)
		return value.Nil, &NonRetryable{Err: fmt.Errorf("fatal")}
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	a.RetryBudget = 5
	require.NoError(t, g.AddNode(a))
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.Error(t, err)
	assert.Equal(t, Failed, outcome.Status)
	assert.EqualValues(t, 1, calls.Load())
}

func TestRun_ConditionalSelectsOneBranchAndSkipsOthers(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("router", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		return value.FromGo(map[string]any{"branch": "success"})
	})
	successCalled := false
	reg.RegisterFunc("success", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		successCalled = true
		return value.Nil, nil
	})
	failureCalled := false
	reg.RegisterFunc("failure", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		failureCalled = true
		return value.Nil, nil
	})

	g := taskgraph.New()
	router := taskgraph.NewNode("router", "router")
	success := taskgraph.NewNode("success", "success")
	failure := taskgraph.NewNode("failure", "failure")
	for _, n := range []*taskgraph.Node{router, success, failure} {
		require.NoError(t, g.AddNode(n))
	}
	g.AddEdge(router, success, taskgraph.Conditional)
	g.AddEdge(router, failure, taskgraph.Conditional)
	router.ConditionalChildren = []*taskgraph.Node{success, failure}
	g.Finalize()

	s := New(g, newConfig(reg))
	outcome, err := s.Run(testCtx())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome.Status)
	assert.True(t, successCalled)
	assert.False(t, failureCalled)

	res, ok := s.cfg.ResultStore.Get("failure")
	require.True(t, ok)
	assert.True(t, res.Skipped)
}

func TestRun_DeadlineExceededFailsRun(t *testing.T) {
	reg := registry.New()
	reg.RegisterFunc("a", registry.IOBound, func(ctx context.Context, input value.Value) (value.Value, error) {
		// Ignores cancellation entirely, so the run can only end via the
		// coordinator's own deadline branch, never via this handler
		// reporting back on the completion channel.
		select {}
	})

	g := taskgraph.New()
	a := taskgraph.NewNode("a", "a")
	require.NoError(t, g.AddNode(a))
	g.Finalize()

	cfg := newConfig(reg)
	cfg.Deadline = 20 * time.Millisecond
	s := New(g, cfg)
	outcome, err := s.Run(testCtx())
	require.Error(t, err)
	assert.Equal(t, Failed, outcome.Status)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
}
