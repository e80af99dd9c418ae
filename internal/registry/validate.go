package registry

import (
	"fmt"
	"sort"
	"strings"
)

// Declared describes one task manifest entry, kept separate from
// internal/manifest's own type to avoid an import cycle (manifest imports
// registry, not the reverse).
type Declared struct {
	Name string
	Kind Kind
}

// ValidateAgainstManifest performs the parity check between the HCL task
// manifests and the Go-registered handlers: every non-Remote task a
// manifest declares must have a registered Go implementation of the same
// Kind, and every Go-registered non-Remote handler must be declared by some
// manifest — an orphaned handler is as much a bug as a missing one.
func (r *Registry) ValidateAgainstManifest(declared []Declared) error {
	var errs []string

	declaredByName := make(map[string]Kind, len(declared))
	for _, d := range declared {
		declaredByName[d.Name] = d.Kind
	}

	for _, d := range declared {
		h, ok := r.handlers[d.Name]
		switch {
		case d.Kind == Remote:
			if ok && h.Kind != Remote {
				errs = append(errs, fmt.Sprintf("task %q: manifest declares kind remote, but a local %s handler is registered", d.Name, h.Kind))
			}
		case !ok:
			errs = append(errs, fmt.Sprintf("task %q: declared in manifest but no Go handler registered", d.Name))
		case h.Kind != d.Kind:
			errs = append(errs, fmt.Sprintf("task %q: manifest declares kind %s, but registered handler is kind %s", d.Name, d.Kind, h.Kind))
		case h.Fn == nil:
			errs = append(errs, fmt.Sprintf("task %q: registered handler has no function", d.Name))
		}
	}

	for name, h := range r.handlers {
		if h.Kind == Remote {
			continue
		}
		if _, ok := declaredByName[name]; !ok {
			errs = append(errs, fmt.Sprintf("task %q: Go handler registered but not declared in any manifest", name))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	sort.Strings(errs)
	return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
}
