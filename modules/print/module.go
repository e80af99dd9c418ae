// Package print provides a task that writes its input to stdout, mainly for
// inspecting a graph's data flow while authoring Pointy-Lang expressions.
package print

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/pointyflow/internal/registry"
	"github.com/vk/pointyflow/internal/value"
)

// Module implements registry.Module.
type Module struct{}

// Run prints input and returns it unchanged, so print can sit in the middle
// of a chain without breaking the flow of values to its successor.
func Run(ctx context.Context, input value.Value) (value.Value, error) {
	goVal, err := input.ToGo()
	if err != nil {
		return value.Nil, err
	}

	m, ok := goVal.(map[string]any)
	if !ok {
		fmt.Printf("      %v\n", goVal)
		return input, nil
	}
	if len(m) == 0 {
		fmt.Println("      (null)")
		return input, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("      %s = %v\n", k, m[k])
	}
	return input, nil
}

// Register registers the print task with r.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterFunc("print", registry.IOBound, Run)
}
