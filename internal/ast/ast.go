// Package ast defines the Pointy-Lang syntax tree produced by the parser and
// consumed by the graph builder (SPEC_FULL.md §3, §4.3).
package ast

import "github.com/vk/pointyflow/internal/token"

// Node is any node of the Pointy-Lang syntax tree.
type Node interface {
	node()
	Pos() token.Position
}

// TaskRef is a leaf referencing a single task by name.
type TaskRef struct {
	Name     string
	Position token.Position
}

func (*TaskRef) node()                   {}
func (t *TaskRef) Pos() token.Position   { return t.Position }

// Seq is the sequential dependency operator, `->`.
type Seq struct {
	Left, Right Node
	Position    token.Position
}

func (*Seq) node()                 {}
func (s *Seq) Pos() token.Position { return s.Position }

// Broadcast is the one-to-many dependency operator, `|->`.
type Broadcast struct {
	Left, Right Node
	Position    token.Position
}

func (*Broadcast) node()                 {}
func (b *Broadcast) Pos() token.Position { return b.Position }

// Parallel is the concurrent-composition operator, `||`.
type Parallel struct {
	Left, Right Node
	Position    token.Position
}

func (*Parallel) node()                 {}
func (p *Parallel) Pos() token.Position { return p.Position }

// Retry attaches a retry budget to a task: `task * n`.
type Retry struct {
	Task     Node
	N        int
	Position token.Position
}

func (*Retry) node()                 {}
func (r *Retry) Pos() token.Position { return r.Position }

// RetryInverse attaches a retry budget to a task: `n * task`.
type RetryInverse struct {
	N        int
	Task     Node
	Position token.Position
}

func (*RetryInverse) node()                 {}
func (r *RetryInverse) Pos() token.Position { return r.Position }

// Descriptor is an n-way replication count preceding a POINTER/PPOINTER
// delimiter: `n -> task` or `n |-> task`. Child is only the single task (or
// retried task) immediately adjacent — the operator is consumed as part of
// recognizing the descriptor itself and names no edge of its own; whatever
// edge actually follows is built by the enclosing Seq/Broadcast/Parallel the
// same way it would for any other operand.
type Descriptor struct {
	N        int
	Child    Node
	Position token.Position
}

func (*Descriptor) node()                 {}
func (d *Descriptor) Pos() token.Position { return d.Position }

// Call is a conditional fan-out, `task(a, b, c)`: after task, schedule
// exactly one of the group's members, chosen by task's branch selection.
type Call struct {
	Task     Node
	Group    []Node
	Position token.Position
}

func (*Call) node()                 {}
func (c *Call) Pos() token.Position { return c.Position }
