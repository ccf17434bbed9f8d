// Package jsonbind links Go types to their JSON wire shape and provides
// symmetric encode/decode with the platform's conventions: output never
// carries null or empty fields, and input tolerates unknown fields injected
// by the platform.
//
// A Codec is constructed once, typically at agent configuration time. Type
// validation and JSON schema reflection happen at construction so the
// per-request encode/decode path is plain marshalling with no lookups.
package jsonbind

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
)

// ErrUnsupportedType indicates a codec was requested for a Go type that does
// not encode to a JSON object.
var ErrUnsupportedType = errors.New("jsonbind: unsupported type")

// ErrTypeMismatch indicates a value handed to an untyped binding does not
// match the codec's Go type.
var ErrTypeMismatch = errors.New("jsonbind: value does not match codec type")

// Option configures codec construction.
type Option func(*config)

type config struct {
	strict bool
}

// WithStrictDecoding makes Decode reject unknown wire fields. The default is
// to ignore them: the platform injects undocumented fields into arbitrary
// payloads, especially contexts.
func WithStrictDecoding() Option {
	return func(c *config) { c.strict = true }
}

// Codec binds the Go type T to its JSON object shape. The zero value is not
// usable; construct with NewCodec.
type Codec[T any] struct {
	cfg    config
	typ    reflect.Type
	schema *jsonschema.Schema
}

// NewCodec builds a codec for T. T must encode to a JSON object: a struct, a
// map with string keys, or a pointer to either. Handing over anything else is
// a configuration error surfaced here, not at first use.
func NewCodec[T any](opts ...Option) (*Codec[T], error) {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if !encodesToObject(typ) {
		return nil, fmt.Errorf("%w: %s does not encode to a JSON object", ErrUnsupportedType, typ)
	}
	r := &jsonschema.Reflector{
		DoNotReference: true, // inline defs
		ExpandedStruct: true, // put the struct at the schema root
	}
	return &Codec[T]{cfg: cfg, typ: typ, schema: r.Reflect(new(T))}, nil
}

// Encode produces the wire mapping for v. Null-valued fields, empty lists and
// empty maps are stripped recursively.
func (c *Codec[T]) Encode(v *T) (map[string]any, error) {
	if v == nil {
		return map[string]any{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("jsonbind: encode %s: %w", c.typ, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("jsonbind: encode %s: not a JSON object: %w", c.typ, err)
	}
	return Prune(m), nil
}

// Decode builds a T from the wire mapping. Unknown fields are ignored unless
// the codec was built with WithStrictDecoding.
func (c *Codec[T]) Decode(m map[string]any) (*T, error) {
	if m == nil {
		return new(T), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("jsonbind: decode %s: %w", c.typ, err)
	}
	return c.DecodeRaw(b)
}

// DecodeRaw is Decode for payloads that are still raw JSON.
func (c *Codec[T]) DecodeRaw(raw json.RawMessage) (*T, error) {
	v := new(T)
	if len(raw) == 0 {
		return v, nil
	}
	if c.cfg.strict {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			return nil, fmt.Errorf("jsonbind: decode %s: %w", c.typ, err)
		}
		return v, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("jsonbind: decode %s: %w", c.typ, err)
	}
	return v, nil
}

// NewValue returns a freshly constructed *T. Registered context types use
// this as their default factory; each call produces an independent value so
// no state is ever shared between turns.
func (c *Codec[T]) NewValue() *T { return new(T) }

// Schema returns the JSON schema reflected for T at construction time.
func (c *Codec[T]) Schema() *jsonschema.Schema { return c.schema }

// GoType reports the Go type the codec binds.
func (c *Codec[T]) GoType() reflect.Type { return c.typ }

// MarshalPruned marshals v and strips null and empty fields from the result
// when it is a JSON object. Wire envelope types share the platform's output
// convention through this helper.
func MarshalPruned(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || b[0] != '{' {
		return b, nil
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return json.Marshal(Prune(m))
}

// encodesToObject reports whether t marshals to a JSON object. time.Time is
// a struct but encodes to a string, so it is rejected explicitly.
func encodesToObject(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		return t != reflect.TypeOf(time.Time{})
	case reflect.Map:
		return t.Key().Kind() == reflect.String
	default:
		return false
	}
}
