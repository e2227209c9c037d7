package mcpgateway

import (
	"sort"
	"sync"

	"github.com/vikashloomba/mcp-openapi-proxy/pkg/toolschema"
)

// Binding is the HTTP operation synthesized for one tool.
type Binding struct {
	// Tool is the tool's name on its server; the route is POST /{Tool}.
	Tool        string
	OperationID string
	Summary     string
	Description string
	Input       *toolschema.Descriptor
	// Output is nil when the tool declares no output schema.
	Output *toolschema.Descriptor

	invoker *Invoker
}

// Invoker returns the callable behind the binding.
func (b *Binding) Invoker() *Invoker { return b.invoker }

// routeRegistry holds one node's bindings. It is filled when the node becomes
// ready and cleared when its session goes away.
type routeRegistry struct {
	mu       sync.RWMutex
	bindings map[string]*Binding
}

func newRouteRegistry() *routeRegistry {
	return &routeRegistry{bindings: make(map[string]*Binding)}
}

// Update replaces the current bindings and reports which tool names went away
// and which were registered.
func (r *routeRegistry) Update(bindings []*Binding) (removed []string, added []*Binding) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Binding, len(bindings))
	for _, b := range bindings {
		if b == nil {
			continue
		}
		next[b.Tool] = b
	}
	for name := range r.bindings {
		if _, ok := next[name]; !ok {
			removed = append(removed, name)
		}
	}
	sort.Strings(removed)
	r.bindings = next
	return removed, sortedBindings(next)
}

func (r *routeRegistry) Lookup(tool string) (*Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[tool]
	return b, ok
}

// Bindings returns every binding ordered by tool name.
func (r *routeRegistry) Bindings() []*Binding {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedBindings(r.bindings)
}

func (r *routeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Clear drops every binding and returns the names that were removed.
func (r *routeRegistry) Clear() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	r.bindings = make(map[string]*Binding)
	return names
}

func sortedBindings(m map[string]*Binding) []*Binding {
	out := make([]*Binding, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tool < out[j].Tool })
	return out
}
