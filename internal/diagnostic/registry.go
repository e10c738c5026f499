package diagnostic

import (
	"strings"

	"github.com/oceanstats/mpas-diag/internal/diagerr"
)

// Registry maps diagnostic names to their implementations.
type Registry struct {
	diagnostics map[string]Diagnostic
	order       []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with every diagnostic, ocean
// first, then sea ice.
func NewRegistry() *Registry {
	r := &Registry{
		diagnostics: make(map[string]Diagnostic),
	}

	// Ocean
	r.Register(&OHC{})
	r.Register(&SST{})

	// Sea ice
	r.Register(&SeaIce{})

	return r
}

// Register adds a diagnostic to the registry.
func (r *Registry) Register(d Diagnostic) {
	name := d.Name()
	if _, dup := r.diagnostics[name]; !dup {
		r.order = append(r.order, name)
	}
	r.diagnostics[name] = d
}

// Get returns a diagnostic by name.
func (r *Registry) Get(name string) (Diagnostic, error) {
	d, ok := r.diagnostics[name]
	if !ok {
		return nil, diagerr.Configf("diagnostic: unknown diagnostic %q (known: %s)", name, strings.Join(r.AllNames(), ", "))
	}
	return d, nil
}

// Select returns the diagnostics the generate tokens enable, in
// registration order.
func (r *Registry) Select(tokens []Token) []Diagnostic {
	var result []Diagnostic
	for _, name := range r.order {
		if d := r.diagnostics[name]; ShouldGenerate(tokens, d) {
			result = append(result, d)
		}
	}
	return result
}

// All returns every diagnostic in registration order.
func (r *Registry) All() []Diagnostic {
	result := make([]Diagnostic, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.diagnostics[name])
	}
	return result
}

// AllNames returns all registered names in registration order.
func (r *Registry) AllNames() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
