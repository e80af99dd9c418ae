package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vk/pointyflow/internal/ctxlog"
	"github.com/vk/pointyflow/internal/executorpool"
	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/remoteexec"
	"github.com/vk/pointyflow/internal/resultstore"
	"github.com/vk/pointyflow/internal/taskgraph"
	"github.com/vk/pointyflow/internal/value"
)

// Config configures one run. Transport may be left nil if the graph
// declares no Remote-kind tasks; Backoff may be left nil to retry
// immediately with no delay.
type Config struct {
	Registry    *registry.Registry
	Pools       *executorpool.Pools
	ResultStore *resultstore.Store
	Transport   remoteexec.Transport
	// Backoff computes the delay before the given (1-based) attempt
	// number is retried. A nil Backoff or a non-positive return value
	// means retry immediately.
	Backoff func(attempt int) time.Duration
	// Deadline bounds the whole run. Zero means no run-wide deadline.
	Deadline time.Duration
}

// Status is a run's terminal outcome.
type Status int

const (
	Succeeded Status = iota
	Failed
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the run-wide result assembled once every node reaches a
// terminal state (SPEC_FULL.md §6 "Run outcome object"). Results and
// Timings are keyed by Node.ID and cover every node the graph builder
// produced, including ones Skipped without ever dispatching. A run that
// ends early on its deadline or on cancellation of the caller's context
// covers only the nodes that had reached a terminal state by then.
type Outcome struct {
	Status      Status
	FailedNodes []string
	Results     map[string]resultstore.Result
	Timings     map[string]resultstore.Timing
}

// completion is what a dispatched node reports back to the coordinator.
type completion struct {
	node *taskgraph.Node
	val  value.Value
	err  error
}

// pendingState accumulates what a node's Seq/Broadcast predecessors have
// delivered so far, while its dependency counter is still above zero.
type pendingState struct {
	delivered    map[string]value.Value
	failedOrigin string
}

// Scheduler drives one run of graph. It is single-use: create one with New
// per run and call Run exactly once.
type Scheduler struct {
	graph *taskgraph.Graph
	cfg   Config

	pending         map[string]*pendingState
	dispatchedInput map[string]value.Value
	outstanding     int
	failedNodes     []string
}

// New creates a Scheduler for graph. A nil cfg.Transport falls back to
// remoteexec.NoTransport.
func New(graph *taskgraph.Graph, cfg Config) *Scheduler {
	if cfg.Transport == nil {
		cfg.Transport = remoteexec.NoTransport{}
	}
	return &Scheduler{graph: graph, cfg: cfg}
}

// Run drives the graph to completion and returns the run outcome. The
// returned error is nil iff Outcome.Status is Succeeded.
func (s *Scheduler) Run(ctx context.Context) (*Outcome, error) {
	logger := ctxlog.FromContext(ctx)

	runCtx := ctx
	cancel := func() {}
	if s.cfg.Deadline > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
	}
	defer cancel()

	s.pending = make(map[string]*pendingState)
	s.dispatchedInput = make(map[string]value.Value)
	s.outstanding = len(s.graph.Nodes)

	completions := make(chan completion, len(s.graph.Nodes))

	logger.Debug("scheduler: starting run", "nodes", len(s.graph.Nodes), "roots", len(s.graph.Roots))
	for _, root := range s.graph.Roots {
		s.startNode(runCtx, root, value.Nil, completions)
	}

	for s.outstanding > 0 {
		select {
		case <-runCtx.Done():
			logger.Warn("scheduler: run ending before completion", "remaining", s.outstanding)
			if ctx.Err() != nil {
				return s.outcome(Cancelled), ctx.Err()
			}
			return s.outcome(Failed), &TimeoutError{}
		case c := <-completions:
			s.handleCompletion(runCtx, c, completions)
		}
	}

	if len(s.failedNodes) > 0 {
		logger.Error("scheduler: run failed", "nodes", s.failedNodes)
		return s.outcome(Failed),
			fmt.Errorf("scheduler: run failed for %s", strings.Join(s.failedNodes, ", "))
	}
	logger.Info("scheduler: run succeeded")
	return s.outcome(Succeeded), nil
}

// outcome assembles the run's terminal Outcome from the result store, which
// by this point holds every node's recorded Result (including its Timing).
func (s *Scheduler) outcome(status Status) *Outcome {
	results := s.cfg.ResultStore.Snapshot()
	timings := make(map[string]resultstore.Timing, len(results))
	for id, r := range results {
		timings[id] = r.Timing
	}
	return &Outcome{Status: status, FailedNodes: s.failedNodes, Results: results, Timings: timings}
}

// startNode records the input a node was dispatched with (so a retry can
// reuse it) and dispatches it in its own goroutine.
func (s *Scheduler) startNode(ctx context.Context, node *taskgraph.Node, input value.Value, completions chan completion) {
	node.MarkStarted(time.Now())
	s.dispatchedInput[node.ID] = input
	go s.dispatch(ctx, node, input, completions)
}

// dispatch runs one attempt of node's handler through the pool matching
// its Kind and reports the outcome on completions. It never panics the
// coordinator: every error path, including pool-level cancellation,
// produces exactly one completion.
func (s *Scheduler) dispatch(ctx context.Context, node *taskgraph.Node, input value.Value, completions chan<- completion) {
	if ctx.Err() != nil {
		completions <- completion{node: node, err: &CancelledError{NodeID: node.ID}}
		return
	}

	handler, ok := s.cfg.Registry.Lookup(node.TaskName)
	if !ok {
		completions <- completion{node: node, err: fmt.Errorf("scheduler: no handler registered for %q", node.TaskName)}
		return
	}

	node.SetState(taskgraph.Running)
	node.IncrementAttempts()

	var out value.Value
	var handlerErr error
	poolErr := executorpool.Run(ctx, s.cfg.Pools, handler.Kind, func(ctx context.Context) error {
		if handler.Kind == registry.Remote {
			out, handlerErr = s.cfg.Transport.Invoke(ctx, node.TaskName, input)
		} else {
			out, handlerErr = handler.Fn(ctx, input)
		}
		return handlerErr
	})

	if poolErr != nil && handlerErr == nil {
		completions <- completion{node: node, err: &CancelledError{NodeID: node.ID}}
		return
	}
	if handlerErr != nil {
		completions <- completion{node: node, err: &HandlerError{NodeID: node.ID, Err: handlerErr}}
		return
	}
	completions <- completion{node: node, val: out}
}

// handleCompletion is the coordinator's only mutator of run state; it
// runs on the single goroutine driving Run's select loop.
func (s *Scheduler) handleCompletion(ctx context.Context, c completion, completions chan completion) {
	node := c.node

	if c.err == nil {
		node.SetState(taskgraph.Succeeded)
		node.MarkEnded(time.Now())
		s.cfg.ResultStore.SetSuccess(node.ID, c.val, s.timingFor(node))
		delete(s.dispatchedInput, node.ID)
		s.outstanding--
		s.deliverToSuccessors(ctx, node, c.val, true, false, completions)
		if node.ConditionalChildren != nil {
			s.selectBranch(ctx, node, c.val, completions)
		}
		return
	}

	var cancelled *CancelledError
	if errors.As(c.err, &cancelled) || errors.Is(c.err, context.Canceled) || errors.Is(c.err, context.DeadlineExceeded) {
		s.failNode(ctx, node, c.err, completions)
		return
	}

	if !isNonRetryable(c.err) && node.AttemptsUsed() < node.MaxAttempts() {
		s.retry(ctx, node, completions)
		return
	}

	s.failNode(ctx, node, c.err, completions)
}

// retry schedules another attempt for node, after an optional backoff
// sleep that does not block the coordinator.
func (s *Scheduler) retry(ctx context.Context, node *taskgraph.Node, completions chan completion) {
	input := s.dispatchedInput[node.ID]

	var delay time.Duration
	if s.cfg.Backoff != nil {
		delay = s.cfg.Backoff(node.AttemptsUsed())
	}
	if delay <= 0 {
		s.startNode(ctx, node, input, completions)
		return
	}

	go func() {
		select {
		case <-time.After(delay):
			s.dispatch(ctx, node, input, completions)
		case <-ctx.Done():
			completions <- completion{node: node, err: &CancelledError{NodeID: node.ID}}
		}
	}()
}

// failNode marks node terminally Failed and propagates fail-fast to
// whatever is reachable only through it.
func (s *Scheduler) failNode(ctx context.Context, node *taskgraph.Node, err error, completions chan completion) {
	node.SetState(taskgraph.Failed)
	node.MarkEnded(time.Now())
	s.cfg.ResultStore.SetFailure(node.ID, err, s.timingFor(node))
	delete(s.dispatchedInput, node.ID)
	s.failedNodes = append(s.failedNodes, node.ID)
	s.outstanding--
	s.deliverToSuccessors(ctx, node, value.Nil, false, true, completions)
	for _, child := range node.ConditionalChildren {
		s.failNode(ctx, child, &UpstreamFailed{NodeID: child.ID, Origin: node.ID}, completions)
	}
}

// timingFor reads back the Started/Ended bounds MarkStarted/MarkEnded
// recorded on node, alongside its consumed attempt count.
func (s *Scheduler) timingFor(node *taskgraph.Node) resultstore.Timing {
	return resultstore.Timing{Started: node.Started(), Ended: node.Ended(), Attempts: node.AttemptsUsed()}
}

// selectBranch resolves a Conditional parent's chosen child from its own
// result value: a "branch" string field naming one of ConditionalChildren
// by TaskName. The selected child is dispatched directly (Conditional
// edges carry no data); every other child, and everything reachable only
// through it, is recursively marked Skipped. A result with no matching
// "branch" field skips every child — the conditional dead-ends with
// nothing selected.
func (s *Scheduler) selectBranch(ctx context.Context, parent *taskgraph.Node, result value.Value, completions chan completion) {
	selected, ok := branchName(result)
	for _, child := range parent.ConditionalChildren {
		if ok && child.TaskName == selected {
			s.startNode(ctx, child, value.Nil, completions)
			continue
		}
		s.terminalSkip(ctx, child, completions)
	}
}

func branchName(result value.Value) (string, bool) {
	raw, err := result.ToGo()
	if err != nil {
		return "", false
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return "", false
	}
	branch, ok := fields["branch"].(string)
	return branch, ok
}

// terminalSkip marks node Skipped and propagates to its successors.
func (s *Scheduler) terminalSkip(ctx context.Context, node *taskgraph.Node, completions chan completion) {
	if !node.Skip() {
		return
	}
	s.cfg.ResultStore.SetSkipped(node.ID)
	delete(s.dispatchedInput, node.ID)
	s.outstanding--
	s.deliverToSuccessors(ctx, node, value.Nil, false, false, completions)
	for _, child := range node.ConditionalChildren {
		s.terminalSkip(ctx, child, completions)
	}
}

// deliverToSuccessors records what node delivered (or didn't) to each
// Seq/Broadcast successor and settles any successor whose dependency
// counter just reached zero. Parallel edges carry no data and never gate;
// Conditional edges are resolved by selectBranch, not here.
func (s *Scheduler) deliverToSuccessors(ctx context.Context, node *taskgraph.Node, val value.Value, delivered, failed bool, completions chan completion) {
	for _, edge := range node.Successors {
		if edge.Kind != taskgraph.Seq && edge.Kind != taskgraph.Broadcast {
			continue
		}
		succ := edge.To
		ps := s.pending[succ.ID]
		if ps == nil {
			ps = &pendingState{delivered: make(map[string]value.Value)}
			s.pending[succ.ID] = ps
		}
		if delivered {
			ps.delivered[node.ID] = val
		} else if failed && ps.failedOrigin == "" {
			ps.failedOrigin = node.ID
		}

		if succ.DecrementDepCount() == 0 {
			s.settle(ctx, succ, completions)
		}
	}
}

// settle decides a node's fate once every gating predecessor has reported
// in: dispatch it with the composed input if at least one predecessor
// delivered a value, otherwise mark it Failed (if a predecessor failed) or
// Skipped (if every predecessor was itself skipped).
func (s *Scheduler) settle(ctx context.Context, node *taskgraph.Node, completions chan completion) {
	ps := s.pending[node.ID]
	delete(s.pending, node.ID)

	if ps != nil && len(ps.delivered) > 0 {
		input, err := composeInput(ps.delivered)
		if err != nil {
			completions <- completion{node: node, err: err}
			return
		}
		s.startNode(ctx, node, input, completions)
		return
	}

	if ps != nil && ps.failedOrigin != "" {
		s.failNode(ctx, node, &UpstreamFailed{NodeID: node.ID, Origin: ps.failedOrigin}, completions)
		return
	}

	s.terminalSkip(ctx, node, completions)
}

// composeInput builds a successor's input from what its predecessors
// delivered: a single delivery passes through unchanged, multiple
// deliveries combine into an object keyed by predecessor node id
// (SPEC_FULL.md §4.5).
func composeInput(delivered map[string]value.Value) (value.Value, error) {
	if len(delivered) == 1 {
		for _, v := range delivered {
			return v, nil
		}
	}
	obj := make(map[string]any, len(delivered))
	for predID, v := range delivered {
		goVal, err := v.ToGo()
		if err != nil {
			return value.Nil, err
		}
		obj[predID] = goVal
	}
	return value.FromGo(obj)
}

func isNonRetryable(err error) bool {
	var nr *NonRetryable
	if errors.As(err, &nr) {
		return true
	}
	var remoteErr *remoteexec.RemoteError
	if errors.As(err, &remoteErr) && !remoteErr.Retryable {
		return true
	}
	return false
}
