package registry

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry maps configuration discriminators (e.g. "json", "mdns") to
// variant factories of type T. Variants are registered during package
// initialization or process startup and resolved exactly once when the
// agent is wired together; after that only the resolved values are used,
// never the registry.
type Registry[T any] struct {
	name     string
	variants *xsync.MapOf[string, T]
}

// New creates a registry for one capability. The name is only used in error
// messages ("codec", "peer provider", ...).
func New[T any](name string) *Registry[T] {
	return &Registry[T]{
		name:     name,
		variants: xsync.NewMapOf[string, T](),
	}
}

// Register adds a variant under the given tag, replacing any previous
// registration for the same tag.
func (r *Registry[T]) Register(tag string, variant T) {
	r.variants.Store(tag, variant)
}

// Resolve returns the variant registered under the given tag. Unknown tags
// are configuration errors and list the known tags to aid debugging.
func (r *Registry[T]) Resolve(tag string) (T, error) {
	variant, ok := r.variants.Load(tag)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown %s %q (known: %v)", r.name, tag, r.Tags())
	}
	return variant, nil
}

// Tags returns all registered tags in sorted order.
func (r *Registry[T]) Tags() []string {
	tags := make([]string, 0)
	r.variants.Range(func(tag string, _ T) bool {
		tags = append(tags, tag)
		return true
	})
	sort.Strings(tags)
	return tags
}
