package integrations

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateIntegration indicates a second registration for a (source,
// version) pair. Integration registration happens once at configuration
// time; a duplicate is a configuration error.
var ErrDuplicateIntegration = errors.New("integrations: integration already registered")

type registryKey struct {
	source  string
	version string
}

func (k registryKey) String() string {
	if k.version == "" {
		return k.source
	}
	return k.source + "@" + k.version
}

// Entry describes one registered integration.
type Entry struct {
	Source  string
	Version string
	Factory Factory
}

// Registry maps (source, version) pairs to conversation factories. A zero
// Registry is ready to use. Registration happens at configuration time;
// lookups during request handling take the read path.
type Registry struct {
	mu      sync.RWMutex
	entries map[registryKey]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a conversation factory for a (source, version) pair. The
// version may be empty; most platforms do not send one.
func (r *Registry) Register(source, version string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("integrations: nil factory for %q", source)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey{source: source, version: version}
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateIntegration, key)
	}
	if r.entries == nil {
		r.entries = make(map[registryKey]Factory)
	}
	r.entries[key] = factory
	return nil
}

// Unregister removes a registration. Absent pairs are a no-op.
func (r *Registry) Unregister(source, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, registryKey{source: source, version: version})
}

// Lookup returns the factory registered for a (source, version) pair.
func (r *Registry) Lookup(source, version string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.entries[registryKey{source: source, version: version}]
	return f, ok
}

// Entries returns all registrations ordered by source, then version.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]Entry, 0, len(r.entries))
	for k, f := range r.entries {
		entries = append(entries, Entry{Source: k.source, Version: k.version, Factory: f})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Source != entries[j].Source {
			return entries[i].Source < entries[j].Source
		}
		return entries[i].Version < entries[j].Version
	})
	return entries
}

// Conversations builds the per-turn conversation set. The integration
// matching (source, version) is seeded with the request payload; every other
// registered integration starts from a nil payload. Unregistered sources,
// including the matched one, fall back to Generic. Requests without a source,
// such as console traffic, seed nothing for the matched slot.
func (r *Registry) Conversations(source, version string, payload map[string]any) (*Conversations, error) {
	convs := newConversations()
	matched := registryKey{source: source, version: version}

	if source != "" {
		factory := GenericFactory
		if f, ok := r.Lookup(source, version); ok {
			factory = f
		}
		conv, err := factory(payload)
		if err != nil {
			return nil, fmt.Errorf("integrations: building conversation for %s: %w", matched, err)
		}
		convs.convs[source] = conv
	}

	for _, e := range r.Entries() {
		key := registryKey{source: e.Source, version: e.Version}
		if key == matched {
			continue
		}
		if _, ok := convs.convs[e.Source]; ok {
			continue
		}
		conv, err := e.Factory(nil)
		if err != nil {
			return nil, fmt.Errorf("integrations: building conversation for %s: %w", key, err)
		}
		convs.convs[e.Source] = conv
	}
	return convs, nil
}

// Conversations is the per-turn set of integration conversations, keyed by
// source. It belongs to a single request and is not safe for concurrent use.
type Conversations struct {
	convs map[string]Conversation
}

func newConversations() *Conversations {
	return &Conversations{convs: make(map[string]Conversation)}
}

// Get returns the conversation for a source, creating a fresh Generic for
// sources that have none yet.
func (c *Conversations) Get(source string) Conversation {
	if conv, ok := c.convs[source]; ok {
		return conv
	}
	conv := NewGeneric(nil)
	c.convs[source] = conv
	return conv
}

// Sources returns the sources that currently have a conversation, sorted.
func (c *Conversations) Sources() []string {
	sources := make([]string, 0, len(c.convs))
	for s := range c.convs {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	return sources
}

// ResponsePayload renders every conversation into a source-keyed payload
// mapping for the webhook response.
func (c *Conversations) ResponsePayload() map[string]any {
	payload := make(map[string]any, len(c.convs))
	for source, conv := range c.convs {
		payload[source] = conv.ResponsePayload()
	}
	return payload
}
