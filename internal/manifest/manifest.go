// Package manifest loads the HCL task manifests that declare a Pointy-Lang
// task's execution Kind and input/output shape (SPEC_FULL.md §3).
//
// A task manifest is a separate DSL from Pointy-Lang itself — the same
// relationship Terraform's HCL bears to a provisioner's inline shell script.
// Pointy-Lang expressions only ever mention a task by name; everything
// about how that name runs (which pool, what it logically takes and
// returns) is declared once, here, the way the corpus declares runner and
// asset definitions.
package manifest

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pointyflow/internal/ctxlog"
	"github.com/vk/pointyflow/internal/fsutil"
	"github.com/vk/pointyflow/internal/registry"
)

// Port describes one named input or output slot of a task, for
// documentation and the registry parity check; Pointy-Lang itself doesn't
// type-check edge values against it.
type Port struct {
	Name        string
	Type        cty.Type
	Description string
}

// Task is one decoded `task "name" { ... }` block.
type Task struct {
	Name        string
	Kind        registry.Kind
	Description string
	Inputs      []Port
	Outputs     []Port
}

// Set is every task manifest loaded for a run, indexed by task name.
type Set struct {
	Tasks map[string]*Task
}

// rootSchema is the top-level HCL shape: any number of `task` blocks,
// each labeled with the task name.
var rootSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "task", LabelNames: []string{"name"}},
	},
}

// taskPortsSchema is applied to a task block's Remain body (everything
// gohcl.DecodeBody didn't consume) to pull out its input/output blocks.
var taskPortsSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "output", LabelNames: []string{"name"}},
	},
}

var portBlockSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: false},
		{Name: "description", Required: false},
	},
}

// Load discovers every *.hcl file under root and decodes its task blocks.
func Load(ctx context.Context, root string) (*Set, error) {
	logger := ctxlog.FromContext(ctx)
	paths, err := fsutil.FindFilesByExtension(root, ".hcl")
	if err != nil {
		return nil, fmt.Errorf("manifest: walking %s: %w", root, err)
	}
	if len(paths) == 0 {
		logger.Warn("manifest: no task manifest files found", "path", root)
	}

	parser := hclparse.NewParser()
	set := &Set{Tasks: make(map[string]*Task)}

	for _, path := range paths {
		f, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("manifest: parsing %s: %w", path, diags)
		}
		if err := decodeFile(ctx, f.Body, path, set); err != nil {
			return nil, err
		}
	}
	logger.Debug("manifest: loaded task manifests", "task_count", len(set.Tasks))
	return set, nil
}

func decodeFile(ctx context.Context, body hcl.Body, path string, set *Set) error {
	content, diags := body.Content(rootSchema)
	if diags.HasErrors() {
		return fmt.Errorf("manifest: %s: %w", path, diags)
	}

	for _, block := range content.Blocks {
		task, err := decodeTaskBlock(ctx, block)
		if err != nil {
			return fmt.Errorf("manifest: %s: %w", path, err)
		}
		if _, exists := set.Tasks[task.Name]; exists {
			return fmt.Errorf("manifest: %s: duplicate task %q", path, task.Name)
		}
		set.Tasks[task.Name] = task
	}
	return nil
}

// taskBlockFields is the gohcl target for a task block's own attributes;
// its input/output blocks are left in Remain since their "type" attribute
// is a type expression, not a value gohcl can decode generically.
type taskBlockFields struct {
	Kind        string   `hcl:"kind"`
	Description string   `hcl:"description,optional"`
	Remain      hcl.Body `hcl:",remain"`
}

func decodeTaskBlock(ctx context.Context, block *hcl.Block) (*Task, error) {
	name := block.Labels[0]

	var fields taskBlockFields
	if diags := gohcl.DecodeBody(block.Body, nil, &fields); diags.HasErrors() {
		return nil, fmt.Errorf("task %q: %w", name, diags)
	}

	kind, err := parseKind(fields.Kind)
	if err != nil {
		return nil, fmt.Errorf("task %q: %w", name, err)
	}

	task := &Task{Name: name, Kind: kind, Description: fields.Description}

	content, diags := fields.Remain.Content(taskPortsSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("task %q: %w", name, diags)
	}

	for _, b := range content.Blocks {
		port, err := decodePortBlock(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		switch b.Type {
		case "input":
			task.Inputs = append(task.Inputs, port)
		case "output":
			task.Outputs = append(task.Outputs, port)
		}
	}
	return task, nil
}

func decodePortBlock(ctx context.Context, block *hcl.Block) (Port, error) {
	content, diags := block.Body.Content(portBlockSchema)
	if diags.HasErrors() {
		return Port{}, diags
	}
	port := Port{Name: block.Labels[0], Type: cty.DynamicPseudoType}

	if typeAttr, ok := content.Attributes["type"]; ok {
		t, err := typeExprToCtyType(ctx, typeAttr.Expr)
		if err != nil {
			return Port{}, fmt.Errorf("%s: type: %w", port.Name, err)
		}
		port.Type = t
	}
	if descAttr, ok := content.Attributes["description"]; ok {
		v, diags := descAttr.Expr.Value(nil)
		if diags.HasErrors() {
			return Port{}, diags
		}
		port.Description = v.AsString()
	}
	return port, nil
}

func parseKind(s string) (registry.Kind, error) {
	switch s {
	case "io":
		return registry.IOBound, nil
	case "cpu":
		return registry.CPUBound, nil
	case "remote":
		return registry.Remote, nil
	default:
		return 0, fmt.Errorf("unknown kind %q (want io, cpu, or remote)", s)
	}
}

// Declared projects the set into registry.Declared entries for
// (*registry.Registry).ValidateAgainstManifest.
func (s *Set) Declared() []registry.Declared {
	out := make([]registry.Declared, 0, len(s.Tasks))
	for _, t := range s.Tasks {
		out = append(out, registry.Declared{Name: t.Name, Kind: t.Kind})
	}
	return out
}

// RegisterRemotes registers every Remote-kind task with r, so the registry
// has an entry to look up even though no Go Register call supplies one.
func (s *Set) RegisterRemotes(r *registry.Registry) {
	for _, t := range s.Tasks {
		if t.Kind != registry.Remote {
			continue
		}
		if _, ok := r.Lookup(t.Name); ok {
			continue
		}
		r.RegisterRemote(t.Name)
	}
}
