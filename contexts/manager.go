package contexts

import (
	"fmt"
)

// Manager holds one turn's context collection. It is constructed per request,
// owned exclusively by that request, and applies the pre-handler lifecycle
// rules on construction: deserialization of registered parameters, synthesis
// of missing default-factory contexts, and the keep-around lifespan reset.
type Manager struct {
	session  string
	registry *Registry

	// Insertion order is preserved: the outgoing payload depends on actives
	// first, deletion-marked last. A display name lives in at most one of
	// the two buckets.
	active  []*Context
	deleted []*Context
}

// SetOption adjusts a context being stored via Set.
type SetOption func(*setConfig)

type setConfig struct {
	lifespan   *int
	parameters any
	hasParams  bool
}

// WithLifespan sets an explicit lifespan count on the stored context.
func WithLifespan(n int) SetOption {
	return func(c *setConfig) { c.lifespan = &n }
}

// WithParameters sets the parameters payload of the stored context.
func WithParameters(p any) SetOption {
	return func(c *setConfig) {
		c.parameters = p
		c.hasParams = true
	}
}

// DeleteOption adjusts Delete behavior.
type DeleteOption func(*deleteConfig)

type deleteConfig struct {
	forgetRegistration bool
}

// ForgetRegistration makes Delete also remove the context's registry entry,
// so later turns neither synthesize nor deserialize it.
func ForgetRegistration() DeleteOption {
	return func(c *deleteConfig) { c.forgetRegistration = true }
}

// NewManager builds the turn's context collection from the decoded incoming
// contexts. Parameters of registered contexts are replaced with their
// deserializer's output; missing contexts with default factories are
// synthesized with names qualified to session; finally every present
// registered keep-around context has its lifespan forced to
// KeepAroundLifespan. The sequence is idempotent over its own output.
func NewManager(session string, registry *Registry, incoming []*Context) (*Manager, error) {
	if registry == nil {
		registry = NewRegistry()
	}
	m := &Manager{
		session:  session,
		registry: registry,
		active:   make([]*Context, 0, len(incoming)),
	}
	for _, c := range incoming {
		if c == nil {
			continue
		}
		if err := m.deserializeParameters(c); err != nil {
			return nil, err
		}
		m.active = append(m.active, c)
	}
	m.synthesizeDefaults()
	m.resetKeepAround()
	return m, nil
}

func (m *Manager) deserializeParameters(c *Context) error {
	name := c.DisplayName()
	if !m.registry.Has(name) {
		return nil
	}
	deser, err := m.registry.Deserializer(name)
	if err != nil || deser == nil {
		return err
	}
	raw, ok := c.Parameters.(map[string]any)
	if !ok && c.Parameters != nil {
		// Already deserialized; initialization may run over its own output.
		return nil
	}
	params, err := deser(raw)
	if err != nil {
		return fmt.Errorf("context %q: deserialize: %w", name, err)
	}
	c.Parameters = params
	return nil
}

func (m *Manager) synthesizeDefaults() {
	for _, name := range m.registry.HaveDefaultFactories() {
		if m.lookupActive(name) != nil {
			continue
		}
		factory, err := m.registry.DefaultFactory(name)
		if err != nil || factory == nil {
			continue
		}
		m.active = append(m.active, &Context{
			Name:       FullName(m.session, name),
			Parameters: factory(),
		})
	}
}

func (m *Manager) resetKeepAround() {
	for _, c := range m.active {
		name := c.DisplayName()
		keep, err := m.registry.ShouldKeepAround(name)
		if err != nil || !keep {
			continue
		}
		c.SetLifespan(KeepAroundLifespan)
	}
}

// Session returns the session identifier used to qualify context names.
func (m *Manager) Session() string {
	return m.session
}

// Get returns the active context with the given display name. Deletion-marked
// contexts are not visible.
func (m *Manager) Get(displayName string) (*Context, error) {
	if c := m.lookupActive(displayName); c != nil {
		return c, nil
	}
	return nil, fmt.Errorf("context %q: %w", displayName, ErrNotFound)
}

// Has reports whether an active context with the given display name exists.
func (m *Manager) Has(displayName string) bool {
	return m.lookupActive(displayName) != nil
}

// Set upserts a context by name. An unqualified name is validated against
// the display-name character set and qualified to the manager's session; a
// fully qualified name passes through untouched. The stored context is
// returned.
func (m *Manager) Set(name string, opts ...SetOption) (*Context, error) {
	var cfg setConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !isFullName(name) {
		if !IsValidDisplayName(name) {
			return nil, fmt.Errorf("%q: %w", name, ErrInvalidDisplayName)
		}
		name = FullName(m.session, name)
	}
	c := &Context{Name: name, LifespanCount: cfg.lifespan}
	if cfg.hasParams {
		c.Parameters = cfg.parameters
	}
	m.upsert(c)
	return c, nil
}

// SetContext upserts a prepared context. Passing options alongside a
// prepared context is rejected as ambiguous: the context already carries its
// lifespan and parameters.
func (m *Manager) SetContext(c *Context, opts ...SetOption) (*Context, error) {
	if c == nil {
		return nil, fmt.Errorf("nil context: %w", ErrInvalidDisplayName)
	}
	if len(opts) > 0 {
		return nil, fmt.Errorf("context %q: %w", c.DisplayName(), ErrAmbiguousSet)
	}
	m.upsert(c)
	return c, nil
}

// Delete marks the context for deletion: it leaves the active set, its
// lifespan becomes zero, and it stays in AsList so the explicit zero-lifespan
// record reaches the wire.
func (m *Manager) Delete(displayName string, opts ...DeleteOption) error {
	var cfg deleteConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	c := m.lookupActive(displayName)
	if c == nil {
		return fmt.Errorf("context %q: %w", displayName, ErrNotFound)
	}
	m.removeActive(displayName)
	c.SetLifespan(0)
	m.deleted = append(m.deleted, c)
	if cfg.forgetRegistration {
		m.registry.Unregister(displayName)
	}
	return nil
}

// AsList is the terminal read for the outgoing payload: active contexts in
// insertion order, then deletion-marked ones. Deletion-marked entries are
// never dropped.
func (m *Manager) AsList() []*Context {
	out := make([]*Context, 0, len(m.active)+len(m.deleted))
	out = append(out, m.active...)
	return append(out, m.deleted...)
}

// SerializeParameters runs every context's parameters back through its
// registered serializer, replacing them with the wire-ready mapping.
// Contexts without a registered serializer pass through unchanged.
// Deletion-marked contexts are included: their final record still carries
// parameters.
func (m *Manager) SerializeParameters() error {
	for _, c := range m.AsList() {
		name := c.DisplayName()
		if !m.registry.Has(name) {
			continue
		}
		ser, err := m.registry.Serializer(name)
		if err != nil || ser == nil {
			continue
		}
		wire, err := ser(c.Parameters)
		if err != nil {
			return fmt.Errorf("context %q: serialize: %w", name, err)
		}
		c.Parameters = wire
	}
	return nil
}

func (m *Manager) lookupActive(displayName string) *Context {
	for _, c := range m.active {
		if c.DisplayName() == displayName {
			return c
		}
	}
	return nil
}

func (m *Manager) removeActive(displayName string) {
	n := 0
	for _, c := range m.active {
		if c.DisplayName() == displayName {
			continue
		}
		m.active[n] = c
		n++
	}
	m.active = m.active[:n]
}

func (m *Manager) upsert(c *Context) {
	name := c.DisplayName()
	// A display name lives in at most one bucket: re-setting a deleted
	// context resurrects it into the active set.
	n := 0
	for _, d := range m.deleted {
		if d.DisplayName() == name {
			continue
		}
		m.deleted[n] = d
		n++
	}
	m.deleted = m.deleted[:n]
	for i, existing := range m.active {
		if existing.DisplayName() == name {
			m.active[i] = c
			return
		}
	}
	m.active = append(m.active, c)
}

// ParamsOf returns the typed parameters of the active context with the given
// display name.
func ParamsOf[T any](m *Manager, displayName string) (*T, error) {
	c, err := m.Get(displayName)
	if err != nil {
		return nil, err
	}
	p, ok := c.Parameters.(*T)
	if !ok {
		return nil, fmt.Errorf("context %q: %w: want %T, have %T",
			displayName, ErrParameterType, p, c.Parameters)
	}
	return p, nil
}
