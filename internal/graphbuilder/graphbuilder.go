// Package graphbuilder lowers a Pointy-Lang syntax tree (internal/ast) into
// an executable taskgraph.Graph (SPEC_FULL.md §4.3).
//
// The lowering walks the tree once, materializing descriptor replicas and
// call branches into distinct nodes as it goes, then runs the same
// build -> link -> finalize -> detect-cycles pipeline the teacher's
// internal/dag.Build used for its own (differently shaped) graphs.
package graphbuilder

import (
	"fmt"

	"github.com/vk/pointyflow/internal/ast"
	"github.com/vk/pointyflow/internal/nodeid"
	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/taskgraph"
)

// UnknownTaskError reports a TaskRef naming a task with no registered
// handler (SPEC_FULL.md error taxonomy).
type UnknownTaskError struct {
	Name string
	Pos  string
}

func (e *UnknownTaskError) Error() string {
	return fmt.Sprintf("graphbuilder: unknown task %q at %s", e.Name, e.Pos)
}

// ShapeError reports a structurally invalid construct: a negative retry
// budget, a non-positive replica count, or a Call with fewer than two
// branches.
type ShapeError struct {
	Message string
	Pos     string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("graphbuilder: %s at %s", e.Message, e.Pos)
}

// entryExit is the pair of boundary node-sets every lowered subtree exposes
// to its surroundings: entries are what an enclosing Seq/Broadcast/Parallel
// wires its predecessor edges into, exits are what it wires its successor
// edges from.
type entryExit struct {
	entries []*taskgraph.Node
	exits   []*taskgraph.Node
}

// builder carries the state threaded through one lowering pass.
type builder struct {
	reg     *registry.Registry
	graph   *taskgraph.Graph
	counter int
}

// Build lowers a parsed Pointy-Lang expression into a complete task graph,
// validating every task reference against reg and every retry/replica
// count against the structural invariants of SPEC_FULL.md §4.3.
func Build(tree ast.Node, reg *registry.Registry) (*taskgraph.Graph, error) {
	b := &builder{reg: reg, graph: taskgraph.New()}
	if _, err := b.lower(tree, 1, 0); err != nil {
		return nil, err
	}
	b.graph.Finalize()
	if err := b.graph.DetectCycles(); err != nil {
		return nil, fmt.Errorf("graphbuilder: %w", err)
	}
	return b.graph, nil
}

// lower lowers one syntax-tree node. replicas and retryBudget are the
// descriptor/retry modifiers inherited from an enclosing RetryInverse or
// Descriptor that wraps a bare TaskRef/Call directly; the compound
// productions (Seq, Broadcast, Parallel) lower their operands with one
// replica and no retries (the modifiers only ever attach to a single task,
// not a compound expression).
func (b *builder) lower(n ast.Node, replicas, retryBudget int) (entryExit, error) {
	switch node := n.(type) {
	case *ast.TaskRef:
		return b.lowerTaskRef(node, replicas, retryBudget)

	case *ast.Call:
		return b.lowerCall(node, replicas, retryBudget)

	case *ast.Retry:
		if node.N < 0 {
			return entryExit{}, &ShapeError{Message: "retry budget must not be negative", Pos: node.Position.String()}
		}
		return b.lower(node.Task, replicas, node.N)

	case *ast.RetryInverse:
		if node.N < 0 {
			return entryExit{}, &ShapeError{Message: "retry budget must not be negative", Pos: node.Position.String()}
		}
		return b.lower(node.Task, replicas, node.N)

	case *ast.Descriptor:
		if node.N <= 0 {
			return entryExit{}, &ShapeError{Message: "replica count must be positive", Pos: node.Position.String()}
		}
		return b.lower(node.Child, node.N, retryBudget)

	case *ast.Seq:
		return b.lowerBinary(node.Left, node.Right, taskgraph.Seq)

	case *ast.Broadcast:
		return b.lowerBinary(node.Left, node.Right, taskgraph.Broadcast)

	case *ast.Parallel:
		return b.lowerParallel(node.Left, node.Right)

	default:
		return entryExit{}, fmt.Errorf("graphbuilder: unhandled syntax tree node %T", n)
	}
}

func (b *builder) lowerTaskRef(ref *ast.TaskRef, replicas, retryBudget int) (entryExit, error) {
	if _, ok := b.reg.Lookup(ref.Name); !ok {
		return entryExit{}, &UnknownTaskError{Name: ref.Name, Pos: ref.Position.String()}
	}

	nodes := make([]*taskgraph.Node, replicas)
	for i := 0; i < replicas; i++ {
		id := b.nextID(ref.Name)
		n := taskgraph.NewNode(id, ref.Name)
		n.RetryBudget = retryBudget
		n.ReplicaCount = replicas
		if replicas > 1 {
			n.ReplicaIndex = i
		}
		if err := b.graph.AddNode(n); err != nil {
			return entryExit{}, err
		}
		nodes[i] = n
	}
	return entryExit{entries: nodes, exits: nodes}, nil
}

func (b *builder) lowerCall(call *ast.Call, replicas, retryBudget int) (entryExit, error) {
	if len(call.Group) < 2 {
		return entryExit{}, &ShapeError{Message: "conditional call needs at least two branches", Pos: call.Position.String()}
	}

	taskEE, err := b.lower(call.Task, replicas, retryBudget)
	if err != nil {
		return entryExit{}, err
	}

	var children []*taskgraph.Node
	var branchExits []*taskgraph.Node
	for _, branch := range call.Group {
		branchEE, err := b.lower(branch, 1, 0)
		if err != nil {
			return entryExit{}, err
		}
		for _, from := range taskEE.exits {
			for _, to := range branchEE.entries {
				b.graph.AddEdge(from, to, taskgraph.Conditional)
			}
		}
		children = append(children, branchEE.entries...)
		branchExits = append(branchExits, branchEE.exits...)
	}
	for _, from := range taskEE.exits {
		from.ConditionalChildren = children
	}

	return entryExit{entries: taskEE.entries, exits: branchExits}, nil
}

// lowerBinary wires a Seq or Broadcast edge between two already-parsed
// operands. A descriptor directly on the left is special: `3 |-> downloader
// -> parser` must deliver three independent downloader results to three
// independent parser runs, not merge all three into one parser invocation
// gated on all of them. So when left is a bare *ast.Descriptor, the whole
// right-hand subtree is lowered once per replica instead of once overall.
func (b *builder) lowerBinary(left, right ast.Node, kind taskgraph.EdgeKind) (entryExit, error) {
	if desc, ok := left.(*ast.Descriptor); ok {
		return b.lowerFanOut(desc, right, kind)
	}

	leftEE, err := b.lower(left, 1, 0)
	if err != nil {
		return entryExit{}, err
	}
	rightEE, err := b.lower(right, 1, 0)
	if err != nil {
		return entryExit{}, err
	}
	for _, from := range leftEE.exits {
		for _, to := range rightEE.entries {
			b.graph.AddEdge(from, to, kind)
		}
	}
	return entryExit{entries: leftEE.entries, exits: rightEE.exits}, nil
}

func (b *builder) lowerFanOut(desc *ast.Descriptor, right ast.Node, kind taskgraph.EdgeKind) (entryExit, error) {
	if desc.N <= 0 {
		return entryExit{}, &ShapeError{Message: "replica count must be positive", Pos: desc.Position.String()}
	}

	var ee entryExit
	for i := 0; i < desc.N; i++ {
		childEE, err := b.lower(desc.Child, 1, 0)
		if err != nil {
			return entryExit{}, err
		}
		rightEE, err := b.lower(right, 1, 0)
		if err != nil {
			return entryExit{}, err
		}
		for _, from := range childEE.exits {
			for _, to := range rightEE.entries {
				b.graph.AddEdge(from, to, kind)
			}
		}
		ee.entries = append(ee.entries, childEE.entries...)
		ee.exits = append(ee.exits, rightEE.exits...)
	}
	return ee, nil
}

func (b *builder) lowerParallel(left, right ast.Node) (entryExit, error) {
	leftEE, err := b.lower(left, 1, 0)
	if err != nil {
		return entryExit{}, err
	}
	rightEE, err := b.lower(right, 1, 0)
	if err != nil {
		return entryExit{}, err
	}
	var ee entryExit
	ee.entries = append(ee.entries, leftEE.entries...)
	ee.entries = append(ee.entries, rightEE.entries...)
	ee.exits = append(ee.exits, leftEE.exits...)
	ee.exits = append(ee.exits, rightEE.exits...)
	return ee, nil
}

// nextID mints a unique Node id for one task invocation, in the canonical
// nodeid address format (`name[n]`) instead of an ad hoc string.
func (b *builder) nextID(taskName string) string {
	b.counter++
	addr := nodeid.Address{Segment: nodeid.NewPathSegmentWithIndex(taskName, b.counter)}
	return addr.String()
}
