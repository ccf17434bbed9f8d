// Package contexts implements the server-side conversation state the
// platform threads through webhook calls: named contexts with lifespan
// counters and typed parameter payloads, the per-agent registry that binds
// display names to (de)serializers and default factories, and the per-turn
// manager that applies the lifecycle rules around a handler invocation.
package contexts

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// KeepAroundLifespan is the lifespan forced onto keep-around contexts before
// every handler invocation. Any value substantially larger than the
// platform's default conveys "effectively persistent".
const KeepAroundLifespan = 99

// DefaultLifespan is the lifespan the platform applies to a context record
// that carries no explicit lifespanCount.
const DefaultLifespan = 5

var (
	// ErrNotRegistered is returned by registry lookups for display names
	// that were never registered. Distinct from ErrNotFound: this one means
	// a missing configuration call.
	ErrNotRegistered = errors.New("context not registered")

	// ErrNotFound is returned by manager access to display names absent
	// from the active turn set. Distinct from ErrNotRegistered: this one
	// means a runtime-data assumption did not hold.
	ErrNotFound = errors.New("context not found")

	// ErrInvalidDisplayName is returned when a display name does not match
	// the platform's restricted character set.
	ErrInvalidDisplayName = errors.New("invalid context display name")

	// ErrAmbiguousSet is returned when a prepared Context is stored together
	// with separate lifespan or parameter overrides.
	ErrAmbiguousSet = errors.New("ambiguous context set call")

	// ErrNotSerializable is returned when a type without a usable codec is
	// registered without an explicit serializer and deserializer pair.
	ErrNotSerializable = errors.New("context type is not serializable")

	// ErrParameterType is returned when typed parameter access does not
	// match the stored value.
	ErrParameterType = errors.New("context parameters have unexpected type")
)

var (
	displayNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_%-]+$`)
	fullNamePattern    = regexp.MustCompile(`^projects/\w+/agent/sessions/\w+/contexts/.+$`)
)

// Context is one named piece of conversation state. On the wire it is the
// record {name, lifespanCount, parameters}; within a turn Parameters may be
// a registered Go type instead of the raw mapping.
type Context struct {
	// Name is the fully qualified identifier,
	// "<session>/contexts/<display name>".
	Name string `json:"name"`

	// LifespanCount is the number of turns the context survives. Nil means
	// the platform default applies; an explicit zero deletes the context
	// server-side and must reach the wire.
	LifespanCount *int `json:"lifespanCount,omitempty"`

	// Parameters carries the context payload: a map[string]any as decoded
	// from the wire, or the registered type after deserialization.
	Parameters any `json:"parameters,omitempty"`
}

// DisplayName derives the short name: the last path segment of Name, or Name
// itself when unqualified, or empty when Name is empty.
func (c *Context) DisplayName() string {
	if c.Name == "" {
		return ""
	}
	if i := strings.LastIndexByte(c.Name, '/'); i >= 0 {
		return c.Name[i+1:]
	}
	return c.Name
}

// Lifespan returns the effective lifespan, applying the platform default
// when no explicit count is present.
func (c *Context) Lifespan() int {
	if c.LifespanCount == nil {
		return DefaultLifespan
	}
	return *c.LifespanCount
}

// SetLifespan sets an explicit lifespan count.
func (c *Context) SetLifespan(n int) {
	c.LifespanCount = &n
}

// MarshalJSON emits the wire record. The record shape itself is always
// emitted; an empty parameters mapping is stripped, an explicit zero
// lifespan is not.
func (c Context) MarshalJSON() ([]byte, error) {
	type wire Context
	w := wire(c)
	if m, ok := w.Parameters.(map[string]any); ok && len(m) == 0 {
		w.Parameters = nil
	}
	return json.Marshal(w)
}

// FullName qualifies a display name against a session identifier.
func FullName(session, displayName string) string {
	return session + "/contexts/" + displayName
}

// IsValidDisplayName reports whether name matches the platform's restricted
// display name character set.
func IsValidDisplayName(name string) bool {
	return displayNamePattern.MatchString(name)
}

// isFullName reports whether name is already a fully qualified context name.
func isFullName(name string) bool {
	return fullNamePattern.MatchString(name)
}
