// Package resultstore holds the per-node outcome of a run: the value a task
// produced, or the error/skip reason it failed with (SPEC_FULL.md §4.7).
//
// The store is ephemeral, created fresh per run, and optimized for the same
// access pattern the corpus's own node state stores target: every node ID is
// known upfront, writes are one-per-node-per-terminal-transition, and the
// scheduler reads the results back to assemble the run outcome. A sync.Map suits that independent-key, write-once-per-key traffic
// better than a mutex-guarded map.
package resultstore

import (
	"sync"
	"time"

	"github.com/vk/pointyflow/internal/value"
)

// Timing is the wall-clock span a node occupied, across every retry
// attempt, plus how many attempts it took (SPEC_FULL.md §6).
type Timing struct {
	Started  time.Time
	Ended    time.Time
	Attempts int
}

// Result is the terminal outcome recorded for one taskgraph.Node.
type Result struct {
	Value   value.Value
	Err     error
	Skipped bool
	Timing  Timing
}

// Store is a concurrency-safe NodeID -> Result map.
type Store struct {
	results sync.Map // node ID string -> Result
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// SetSuccess records a task's output value.
func (s *Store) SetSuccess(nodeID string, v value.Value, t Timing) {
	s.results.Store(nodeID, Result{Value: v, Timing: t})
}

// SetFailure records a task's terminal error.
func (s *Store) SetFailure(nodeID string, err error, t Timing) {
	s.results.Store(nodeID, Result{Err: err, Timing: t})
}

// SetSkipped records that a node never ran because it was an untaken
// conditional branch or every gating predecessor was itself skipped.
func (s *Store) SetSkipped(nodeID string) {
	s.results.Store(nodeID, Result{Skipped: true})
}

// Get returns the recorded result for a node, if any.
func (s *Store) Get(nodeID string) (Result, bool) {
	v, ok := s.results.Load(nodeID)
	if !ok {
		return Result{}, false
	}
	return v.(Result), true
}

// Snapshot copies every recorded result into a plain map, for assembling a
// run's final outcome.
func (s *Store) Snapshot() map[string]Result {
	out := make(map[string]Result)
	s.results.Range(func(k, v any) bool {
		out[k.(string)] = v.(Result)
		return true
	})
	return out
}
