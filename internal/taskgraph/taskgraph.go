// Package taskgraph is the intermediate representation the graph builder
// (package graphbuilder) lowers a Pointy-Lang syntax tree into, and the
// scheduler walks to drive execution (SPEC_FULL.md §4.3, §4.5).
//
// A Graph is a DAG of Nodes connected by typed Edges. Node state is tracked
// with atomics and a sync.Once, the same pattern the original task-graph
// engine used for lock-free concurrent scheduling (see internal/node in the
// example corpus this module grew out of): many goroutines race to observe
// and decrement a node's dependency counter, and exactly one of them must
// win the transition into Ready.
package taskgraph

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// EdgeKind identifies how a predecessor's completion affects a successor,
// mirroring the four Pointy-Lang operators.
type EdgeKind int

const (
	// Seq is the sequential dependency produced by POINTER ("->"): the
	// successor becomes eligible once every Seq predecessor has Succeeded.
	Seq EdgeKind = iota
	// Broadcast is produced by PPOINTER ("|->"): the same predecessor value
	// is delivered to every successor reachable through a Broadcast edge.
	Broadcast
	// Parallel connects two branches that run concurrently with no
	// dependency between them; it never gates a successor's readiness.
	Parallel
	// Conditional connects a Call node to one of its branch candidates.
	// Exactly one Conditional successor is scheduled at runtime, chosen by
	// the predecessor's branch selection.
	Conditional
)

func (k EdgeKind) String() string {
	switch k {
	case Seq:
		return "seq"
	case Broadcast:
		return "broadcast"
	case Parallel:
		return "parallel"
	case Conditional:
		return "conditional"
	default:
		return "unknown"
	}
}

// State is a Node's position in the Pending -> Ready -> Running ->
// {Succeeded|Failed} state machine, plus the Skipped terminal state for
// untaken conditional branches and for nodes whose gating predecessors were
// all skipped (SPEC_FULL.md §3). Fail-fast propagation marks nodes Failed,
// not Skipped.
type State int32

const (
	Pending State = iota
	Ready
	Running
	Succeeded
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Edge is a directed connection between two nodes of a given kind.
type Edge struct {
	From, To *Node
	Kind     EdgeKind
}

// Node is a single vertex: one scheduled invocation of a named task.
// Replica and conditional-branch instances each get their own Node, created
// by the graph builder; the ID distinguishes them (e.g. "downloader[1]").
type Node struct {
	ID       string
	TaskName string

	Predecessors []*Edge
	Successors   []*Edge

	// RetryBudget is the number of additional attempts after the first,
	// from a Retry/RetryInverse node. Zero means no retry.
	RetryBudget int
	// ReplicaCount is the descriptor's replication factor. Always >= 1;
	// a plain task has a ReplicaCount of 1.
	ReplicaCount int
	// ReplicaIndex identifies which replica of a descriptor expansion this
	// node is, or -1 if ReplicaCount == 1.
	ReplicaIndex int

	// ConditionalChildren holds the branch candidates of a Call node, in
	// source order. Populated only on nodes lowered from ast.Call.
	ConditionalChildren []*Node

	// attemptsUsed counts retry attempts already consumed, including the
	// first. Incremented by the goroutine running an attempt before it
	// reports on the scheduler's completion channel; the coordinator reads
	// it only after receiving that report.
	attemptsUsed int

	// started and ended bound the node's run wall-clock, across every
	// retry attempt: started is set once, by the first dispatch; ended is
	// set once, on whichever terminal transition the node reaches.
	// Mutated only by the scheduler's single coordinator goroutine.
	started time.Time
	ended   time.Time

	depCount atomic.Int32
	state    atomic.Int32
	skipOnce sync.Once
}

// NewNode creates a Node with its dependency counter left at zero; the graph
// builder calls SetDepCount once all predecessor edges are known.
func NewNode(id, taskName string) *Node {
	return &Node{ID: id, TaskName: taskName, ReplicaCount: 1, ReplicaIndex: -1}
}

// SetDepCount initializes the unmet-dependency counter. Seq and Broadcast
// predecessors each count; Parallel and Conditional do not gate readiness.
func (n *Node) SetDepCount(c int32) { n.depCount.Store(c) }

// DepCount returns the current number of unmet gating predecessors.
func (n *Node) DepCount() int32 { return n.depCount.Load() }

// DecrementDepCount atomically decrements the dependency counter and returns
// the new value. A return of zero means the caller just made this node
// Ready and is responsible for enqueuing it exactly once.
func (n *Node) DecrementDepCount() int32 { return n.depCount.Add(-1) }

func (n *Node) SetState(s State) { n.state.Store(int32(s)) }
func (n *Node) GetState() State  { return State(n.state.Load()) }

// AttemptsUsed and IncrementAttempts track retry consumption. Each attempt's
// goroutine increments the counter before reporting on the completion
// channel, and the coordinator reads it only after receiving that report,
// so no atomics are needed.
func (n *Node) AttemptsUsed() int   { return n.attemptsUsed }
func (n *Node) IncrementAttempts()  { n.attemptsUsed++ }

// MaxAttempts is RetryBudget+1: the first attempt plus every retry.
func (n *Node) MaxAttempts() int { return n.RetryBudget + 1 }

// MarkStarted records the wall-clock time of the node's first dispatch.
// Later retries do not move it.
func (n *Node) MarkStarted(t time.Time) {
	if n.started.IsZero() {
		n.started = t
	}
}

// MarkEnded records the wall-clock time of the node's terminal transition.
func (n *Node) MarkEnded(t time.Time) { n.ended = t }

// Started and Ended report the bounds MarkStarted/MarkEnded recorded. Both
// are the zero time.Time for a node that never ran (e.g. Skipped without
// ever being dispatched).
func (n *Node) Started() time.Time { return n.started }
func (n *Node) Ended() time.Time   { return n.ended }

// Skip transitions the node to Skipped exactly once and reports whether
// this call made the transition, guarding against the same node being
// skipped from two propagation paths.
func (n *Node) Skip() (wasSkipped bool) {
	n.skipOnce.Do(func() {
		n.SetState(Skipped)
		wasSkipped = true
	})
	return wasSkipped
}

// Graph is the complete DAG for one run: every node the builder produced,
// indexed by ID, plus the roots the scheduler seeds its ready queue with.
type Graph struct {
	Nodes map[string]*Node
	Roots []*Node
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode registers a node. It is an error to add the same ID twice; the
// builder is expected to generate unique IDs per replica/branch instance.
func (g *Graph) AddNode(n *Node) error {
	if _, exists := g.Nodes[n.ID]; exists {
		return fmt.Errorf("taskgraph: duplicate node id %q", n.ID)
	}
	g.Nodes[n.ID] = n
	return nil
}

// AddEdge connects two already-registered nodes.
func (g *Graph) AddEdge(from, to *Node, kind EdgeKind) {
	e := &Edge{From: from, To: to, Kind: kind}
	from.Successors = append(from.Successors, e)
	to.Predecessors = append(to.Predecessors, e)
}

// Finalize computes each node's dependency counter from its Seq/Broadcast
// predecessors and determines the root set (nodes with no gating
// predecessor and no Conditional predecessor either). A conditional
// branch's entry node has depCount 0 by construction (Conditional never
// gates) but must not start until its parent's branch selection reaches
// it — so it is deliberately excluded from Roots even though its counter
// reads zero. Call this once, after every edge has been added.
func (g *Graph) Finalize() {
	var roots []*Node
	for _, n := range g.Nodes {
		var gating int32
		var hasConditionalParent bool
		for _, e := range n.Predecessors {
			switch e.Kind {
			case Seq, Broadcast:
				gating++
			case Conditional:
				hasConditionalParent = true
			}
		}
		n.SetDepCount(gating)
		if gating == 0 && !hasConditionalParent {
			roots = append(roots, n)
		}
	}
	g.Roots = roots
}

// DetectCycles runs a DFS cycle check over every edge, whatever its kind.
// Pointy-Lang's grammar admits no recursive construct that could produce a
// cycle, so this exists purely to catch builder bugs rather than author
// error; a passing build should never hit the cycle branch.
func (g *Graph) DetectCycles() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	mark := make(map[string]int, len(g.Nodes))

	var visit func(n *Node) error
	visit = func(n *Node) error {
		mark[n.ID] = visiting
		for _, e := range n.Successors {
			switch mark[e.To.ID] {
			case visiting:
				return fmt.Errorf("taskgraph: cycle detected involving %q", e.To.ID)
			case unvisited:
				if err := visit(e.To); err != nil {
					return err
				}
			}
		}
		mark[n.ID] = done
		return nil
	}

	for _, n := range g.Nodes {
		if mark[n.ID] == unvisited {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}
