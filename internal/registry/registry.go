// Package registry maps Pointy-Lang task names to the Go code (or remote
// dispatch) that executes them (SPEC_FULL.md §3).
//
// Handlers are populated from two sources, same as the corpus this engine
// grew out of: Go modules call RegisterFunc/RegisterRemote from an
// init-time Register function, and internal/manifest decodes HCL task
// manifests that declare a task's pool Kind and input/output shape.
package registry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vk/pointyflow/internal/value"
)

// Kind selects which executor pool flavor runs a task (SPEC_FULL.md §4.6).
type Kind int

const (
	// IOBound tasks run on the single-threaded cooperative pool.
	IOBound Kind = iota
	// CPUBound tasks run on the OS-thread worker pool.
	CPUBound
	// Remote tasks are dispatched over a network round trip; they carry no
	// local Fn and are invoked through a remoteexec.Transport by name.
	Remote
)

func (k Kind) String() string {
	switch k {
	case IOBound:
		return "io"
	case CPUBound:
		return "cpu"
	case Remote:
		return "remote"
	default:
		return "unknown"
	}
}

// HandlerFunc is the shape every IOBound/CPUBound task handler implements.
type HandlerFunc func(ctx context.Context, input value.Value) (value.Value, error)

// Handler is everything the scheduler and executor pool need to run one
// task name: which pool it belongs to, and (for local tasks) the Go code to
// invoke.
type Handler struct {
	Name string
	Kind Kind
	// Fn is nil for Remote tasks; the Remote pool resolves them by Name
	// against a remoteexec.Transport instead.
	Fn HandlerFunc
}

// Module is implemented by Go packages under modules/ that register one or
// more handlers at startup.
type Module interface {
	Register(r *Registry)
}

// Registry holds every task handler known to a run.
type Registry struct {
	handlers map[string]*Handler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]*Handler)}
}

// Register adds a handler. It panics on a duplicate task name: two handlers
// racing for the same name is an authoring bug, not a runtime condition to
// recover from.
func (r *Registry) Register(h *Handler) {
	if _, exists := r.handlers[h.Name]; exists {
		panic(fmt.Sprintf("registry: task %q already registered", h.Name))
	}
	slog.Debug("registry: registered task handler", "name", h.Name, "kind", h.Kind)
	r.handlers[h.Name] = h
}

// RegisterFunc is a convenience wrapper for the common IOBound/CPUBound case.
func (r *Registry) RegisterFunc(name string, kind Kind, fn HandlerFunc) {
	r.Register(&Handler{Name: name, Kind: kind, Fn: fn})
}

// RegisterRemote registers a task name that has no local Go implementation;
// internal/manifest calls this for every "remote" kind task block it decodes.
func (r *Registry) RegisterRemote(name string) {
	r.Register(&Handler{Name: name, Kind: Remote})
}

// Lookup returns the handler for a task name, if one is registered.
func (r *Registry) Lookup(name string) (*Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns every registered task name, for UnknownTaskError diagnostics
// and manifest-vs-registration consistency checks.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
