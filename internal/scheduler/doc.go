// Package scheduler drives one run of a task graph to completion
// (SPEC_FULL.md §4.5).
//
// # Why Scheduler Exists
//
// The scheduler is the coordinator: it owns the runtime state of a single
// run (readiness, in-flight attempts, results), dispatches ready nodes to
// the Executor Pool, applies retry policy, and decides how a completed
// node's result reaches its successors. Everything upstream (Lexer,
// Parser, Graph Builder) produces an immutable, static description of the
// work; the Scheduler is the only thing that touches mutable per-run
// state.
//
// # How It Works
//
// Run seeds the ready queue from Graph.Roots, then loops on a single
// completion channel until every node has reached a terminal state
// (Succeeded, Failed, or Skipped). The loop itself never blocks on a
// handler: dispatch happens in its own goroutine per node, gated by
// internal/executorpool's per-Kind concurrency limit, and reports back
// on the completion channel. This mirrors the coordinator/worker split
// the corpus's internal/dag.Executor uses, except the corpus's executor
// treats any single node failure as fatal to the whole run (it cancels
// the shared context on the first error); this scheduler does not — per
// SPEC_FULL.md §4.5, failure propagates only to the nodes reachable
// exclusively through the failed one, and independent branches keep
// running. A run-wide deadline (Config.Deadline) is the only thing that
// cancels the whole run outright.
//
// # Relationship with Other Components
//
//   - internal/taskgraph: the immutable IR the scheduler walks; state
//     (depCount, attemptsUsed) lives on the Node. depCount is only mutated
//     from the scheduler's single coordinator goroutine; attemptsUsed is
//     incremented by the goroutine running an attempt, before it reports
//     back on the completion channel.
//   - internal/executorpool: bounds concurrency per registry.Kind and
//     runs a handler invocation; the scheduler never calls a handler Fn
//     directly.
//   - internal/remoteexec: resolves Remote-kind tasks by name instead of
//     calling a local Fn.
//   - internal/resultstore: written exclusively by the scheduler on every
//     terminal transition.
package scheduler
