// Package integrations carries platform-specific conversation state through a
// webhook turn. Each integration (facebook, slack, a custom platform) gets a
// conversation value seeded from the inbound integration payload and rendered
// back into the response payload. Platforms without a custom implementation
// fall back to Generic, a plain key-value container.
package integrations

import "sort"

// Conversation is the contract for integration-specific conversation state.
// Implementations are built by a Factory at the start of a turn and rendered
// once at the end.
type Conversation interface {
	// ResponsePayload renders the conversation into the integration's
	// fragment of the webhook response payload.
	ResponsePayload() map[string]any
}

// Factory builds an integration conversation from the inbound payload. The
// payload is nil for every integration except the one the request came from;
// implementations must handle that.
type Factory func(payload map[string]any) (Conversation, error)

// Generic is the default integration conversation, a string-keyed container
// around the raw payload. It serves every platform that has no custom
// Conversation registered.
type Generic struct {
	data map[string]any
}

// NewGeneric builds a Generic around payload. A nil payload yields an empty
// conversation.
func NewGeneric(payload map[string]any) *Generic {
	if payload == nil {
		payload = map[string]any{}
	}
	return &Generic{data: payload}
}

// GenericFactory adapts NewGeneric to the Factory signature.
func GenericFactory(payload map[string]any) (Conversation, error) {
	return NewGeneric(payload), nil
}

// Get returns the value stored under key and whether it was present.
func (g *Generic) Get(key string) (any, bool) {
	v, ok := g.data[key]
	return v, ok
}

// Set stores value under key.
func (g *Generic) Set(key string, value any) {
	g.data[key] = value
}

// Delete removes key. Absent keys are a no-op.
func (g *Generic) Delete(key string) {
	delete(g.data, key)
}

// Len returns the number of stored keys.
func (g *Generic) Len() int {
	return len(g.data)
}

// Keys returns the stored keys in sorted order.
func (g *Generic) Keys() []string {
	keys := make([]string, 0, len(g.data))
	for k := range g.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ResponsePayload returns the container contents.
func (g *Generic) ResponsePayload() map[string]any {
	return g.data
}
