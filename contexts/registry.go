package contexts

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/ggoodman/dialogflow-agent-go/jsonbind"
	"github.com/invopop/jsonschema"
)

// SerializerFunc turns context parameters into their wire mapping.
type SerializerFunc func(any) (map[string]any, error)

// DeserializerFunc turns the wire mapping into context parameters.
type DeserializerFunc func(map[string]any) (any, error)

// FactoryFunc produces initial parameters for a context synthesized at the
// start of a turn. Every call must return an independent value.
type FactoryFunc func() any

type entry struct {
	keepAround   bool
	factory      FactoryFunc
	serializer   SerializerFunc
	deserializer DeserializerFunc
	schema       *jsonschema.Schema
}

// RegisterOption configures a registry entry. Options supplied to a second
// Register call for the same display name update only the aspects they name;
// everything else is preserved.
type RegisterOption func(*entry)

// KeepAround marks the context to have its lifespan reset to
// KeepAroundLifespan before every handler invocation while present. It does
// not cause the context to be created.
func KeepAround(v bool) RegisterOption {
	return func(e *entry) { e.keepAround = v }
}

// WithDefaultFactory registers a producer of initial parameters. Contexts
// with a factory are synthesized at the start of any turn that does not
// already carry them.
func WithDefaultFactory(f FactoryFunc) RegisterOption {
	return func(e *entry) { e.factory = f }
}

// WithSerializer sets the parameters serializer.
func WithSerializer(f SerializerFunc) RegisterOption {
	return func(e *entry) { e.serializer = f }
}

// WithDeserializer sets the parameters deserializer.
func WithDeserializer(f DeserializerFunc) RegisterOption {
	return func(e *entry) { e.deserializer = f }
}

func withSchema(s *jsonschema.Schema) RegisterOption {
	return func(e *entry) { e.schema = s }
}

// Registry maps context display names to their lifecycle configuration. It
// is populated at agent configuration time and read on every turn; a
// read-write lock keeps late registration safe. The zero value is ready to
// use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	types   jsonbind.Registry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register creates or updates the entry for displayName. A repeated
// registration is a partial update: only the aspects named by opts change.
func (r *Registry) Register(displayName string, opts ...RegisterOption) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries == nil {
		r.entries = make(map[string]*entry)
	}
	e := r.entries[displayName]
	if e == nil {
		e = &entry{}
		r.entries[displayName] = e
	}
	for _, opt := range opts {
		opt(e)
	}
}

// Unregister removes the entry for displayName. Removing an absent name is
// a no-op.
func (r *Registry) Unregister(displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, displayName)
}

// Has reports whether displayName is registered.
func (r *Registry) Has(displayName string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[displayName]
	return ok
}

// Names returns the registered display names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ShouldKeepAround reports the keep-around flag for displayName.
func (r *Registry) ShouldKeepAround(displayName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[displayName]
	if !ok {
		return false, fmt.Errorf("context %q: %w", displayName, ErrNotRegistered)
	}
	return e.keepAround, nil
}

// DefaultFactory returns the registered factory for displayName. A nil
// factory with a nil error is a valid result meaning "no default".
func (r *Registry) DefaultFactory(displayName string) (FactoryFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[displayName]
	if !ok {
		return nil, fmt.Errorf("context %q: %w", displayName, ErrNotRegistered)
	}
	return e.factory, nil
}

// Serializer returns the registered serializer for displayName. A nil
// serializer with a nil error means "pass parameters through unchanged".
func (r *Registry) Serializer(displayName string) (SerializerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[displayName]
	if !ok {
		return nil, fmt.Errorf("context %q: %w", displayName, ErrNotRegistered)
	}
	return e.serializer, nil
}

// Deserializer returns the registered deserializer for displayName. A nil
// deserializer with a nil error means "leave the raw mapping alone".
func (r *Registry) Deserializer(displayName string) (DeserializerFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[displayName]
	if !ok {
		return nil, fmt.Errorf("context %q: %w", displayName, ErrNotRegistered)
	}
	return e.deserializer, nil
}

// HaveDefaultFactories returns the display names holding a non-nil default
// factory, sorted. Turn initialization subtracts the present names from this
// set to decide what to synthesize.
func (r *Registry) HaveDefaultFactories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name, e := range r.entries {
		if e.factory != nil {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Schemas returns the JSON schema of every type-registered context's
// parameters, keyed by display name.
func (r *Registry) Schemas() map[string]*jsonschema.Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*jsonschema.Schema)
	for name, e := range r.entries {
		if e.schema != nil {
			out[name] = e.schema
		}
	}
	return out
}

// RegisterType registers displayName with serializer, deserializer and
// default factory derived from a codec for T. Explicit options override the
// derived aspects. Codec resolution happens here, once; repeated
// registrations of the same Go type reuse the first codec.
//
// A type that cannot carry a codec must supply both an explicit serializer
// and deserializer, otherwise registration fails with ErrNotSerializable.
func RegisterType[T any](r *Registry, displayName string, opts ...RegisterOption) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	b, ok := r.types.Lookup(typ)
	if !ok {
		c, err := jsonbind.NewCodec[T]()
		if err != nil {
			var scratch entry
			for _, opt := range opts {
				opt(&scratch)
			}
			if scratch.serializer != nil && scratch.deserializer != nil {
				r.Register(displayName, opts...)
				return nil
			}
			return fmt.Errorf("context %q: %s: %w", displayName, typ, ErrNotSerializable)
		}
		b = jsonbind.Register(&r.types, c)
	}
	derived := []RegisterOption{
		WithDefaultFactory(b.NewValue),
		WithSerializer(b.Encode),
		WithDeserializer(b.Decode),
		withSchema(b.Schema),
	}
	r.Register(displayName, append(derived, opts...)...)
	return nil
}
