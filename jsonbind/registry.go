package jsonbind

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

// Binding is the untyped view of a codec, suitable for storage in registries
// that cannot carry the type parameter. Bindings are resolved once at
// registration time; nothing on the per-request path looks types up by name.
type Binding struct {
	Encode   func(any) (map[string]any, error)
	Decode   func(map[string]any) (any, error)
	NewValue func() any
	Schema   *jsonschema.Schema
	GoType   reflect.Type
}

// Registry maps Go types to their bindings. The zero value is ready to use.
// Lookups vastly outnumber registrations, so a read-write lock keeps late
// registration safe without slowing the request path.
type Registry struct {
	mu       sync.RWMutex
	bindings map[reflect.Type]Binding
}

// Register stores the binding derived from c, keyed by its Go type.
// Registering the same type again replaces the previous binding.
func Register[T any](r *Registry, c *Codec[T]) Binding {
	b := Binding{
		Encode: func(v any) (map[string]any, error) {
			tv, err := asTyped[T](v)
			if err != nil {
				return nil, err
			}
			return c.Encode(tv)
		},
		Decode:   func(m map[string]any) (any, error) { return c.Decode(m) },
		NewValue: func() any { return c.NewValue() },
		Schema:   c.Schema(),
		GoType:   c.GoType(),
	}
	r.mu.Lock()
	if r.bindings == nil {
		r.bindings = make(map[reflect.Type]Binding)
	}
	r.bindings[b.GoType] = b
	r.mu.Unlock()
	return b
}

// Lookup returns the binding registered for t.
func (r *Registry) Lookup(t reflect.Type) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[t]
	return b, ok
}

// asTyped accepts the value forms a handler may store as context parameters:
// *T (the usual case) or a bare T.
func asTyped[T any](v any) (*T, error) {
	switch t := v.(type) {
	case *T:
		return t, nil
	case T:
		return &t, nil
	case nil:
		return nil, nil
	}
	var zero T
	return nil, fmt.Errorf("%w: want %T, have %T", ErrTypeMismatch, &zero, v)
}
