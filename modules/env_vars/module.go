// Package env_vars provides a task that snapshots the process environment.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/value"
)

// Module implements registry.Module.
type Module struct{}

// Run ignores its input and returns every "KEY=value" entry of the process
// environment as an object keyed by name.
func Run(ctx context.Context, input value.Value) (value.Value, error) {
	envMap := make(map[string]any)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = pair[1]
		}
	}
	return value.FromGo(envMap)
}

// Register registers the env_vars task with r.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("env_vars", registry.IOBound, Run)
}
