// Package remoteexec dispatches Remote-kind tasks (SPEC_FULL.md §4.6) —
// those declared in a manifest with no local Go handler — to an external
// service over the network. Where IOBound/CPUBound tasks are Go functions
// looked up by name in the registry, a Remote task is a name with no Fn;
// the scheduler resolves it against a Transport instead.
package remoteexec

import (
	"context"
	"fmt"

	"github.com/vk/pointyflow/internal/value"
)

// Transport invokes a named remote task with an input value and returns its
// output value, analogous to registry.HandlerFunc but crossing a network
// boundary instead of calling Go code directly.
type Transport interface {
	Invoke(ctx context.Context, taskName string, input value.Value) (value.Value, error)
}

// NoTransport is the Transport used when no remote transport is
// configured; it fails clearly instead of silently hanging if a Remote task
// reaches it.
type NoTransport struct{}

func (NoTransport) Invoke(ctx context.Context, taskName string, input value.Value) (value.Value, error) {
	return value.Nil, fmt.Errorf("remoteexec: task %q is Remote-kind but no transport is configured", taskName)
}

// RemoteError is the decoded `{ok: false, message, retryable}` shape both
// transports produce when the remote side explicitly rejects an
// invocation, as opposed to a transport-level failure (connection refused,
// malformed payload). Retryable mirrors SPEC_FULL.md §7's NonRetryable
// marker: the scheduler checks it via errors.As before consuming a retry
// attempt.
type RemoteError struct {
	Message   string
	Retryable bool
}

func (e *RemoteError) Error() string { return fmt.Sprintf("remoteexec: %s", e.Message) }
