package dialogflowagent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/ggoodman/dialogflow-agent-go/contexts"
	"github.com/ggoodman/dialogflow-agent-go/dialogflow"
	"github.com/ggoodman/dialogflow-agent-go/integrations"
	"github.com/ggoodman/dialogflow-agent-go/internal/logctx"
	"github.com/ggoodman/dialogflow-agent-go/storage"
	"github.com/ggoodman/dialogflow-agent-go/templates"
	"github.com/ggoodman/dialogflow-agent-go/webhook"
)

// Agent is the central object of a Dialogflow fulfillment service. It keeps
// track of registered intent handlers, contexts and integrations and turns
// webhook requests into webhook responses.
//
// Configure the agent fully before serving traffic. Registration methods are
// safe for concurrent use, but the supported pattern is registration at
// startup followed by read-only request handling.
type Agent struct {
	log     *slog.Logger
	debug   bool
	source  string
	store   storage.Storage
	catalog *templates.Catalog

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	contexts     *contexts.Registry
	integrations *integrations.Registry
}

type settings struct {
	logger       *slog.Logger
	debug        bool
	source       string
	store        storage.Storage
	catalog      *templates.Catalog
	integrations []integrationSetting
}

type integrationSetting struct {
	source  string
	version string
	factory integrations.Factory
}

// Option configures an Agent.
type Option func(*settings)

// WithLogger sets the logger for the agent. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(s *settings) { s.logger = log }
}

// WithDebugLogging makes the agent log full request and response bodies at
// debug level.
func WithDebugLogging() Option {
	return func(s *settings) { s.debug = true }
}

// WithAgentSource sets the source string stamped on every webhook response,
// identifying this fulfillment service to the platform.
func WithAgentSource(source string) Option {
	return func(s *settings) { s.source = source }
}

// WithStore wires a session store that handlers can reach through
// Conversation.Store.
func WithStore(store storage.Storage) Option {
	return func(s *settings) { s.store = store }
}

// WithTemplates wires a response template catalog used by
// Conversation.AskTemplate.
func WithTemplates(catalog *templates.Catalog) Option {
	return func(s *settings) { s.catalog = catalog }
}

// WithIntegration registers an integration conversation factory for a
// (source, version) pair. The version may be empty.
func WithIntegration(source, version string, factory integrations.Factory) Option {
	return func(s *settings) {
		s.integrations = append(s.integrations, integrationSetting{
			source:  source,
			version: version,
			factory: factory,
		})
	}
}

// New builds an Agent. The private session context is registered before any
// user configuration runs.
func New(opts ...Option) (*Agent, error) {
	cfg := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &Agent{
		log:          slog.New(logctx.Wrap(cfg.logger.Handler())),
		debug:        cfg.debug,
		source:       cfg.source,
		store:        cfg.store,
		catalog:      cfg.catalog,
		handlers:     make(map[string]HandlerFunc),
		contexts:     contexts.NewRegistry(),
		integrations: integrations.NewRegistry(),
	}

	if err := contexts.RegisterType[SessionContext](a.contexts, SessionContextName, contexts.KeepAround(true)); err != nil {
		return nil, fmt.Errorf("registering session context: %w", err)
	}
	for _, reg := range cfg.integrations {
		if err := a.integrations.Register(reg.source, reg.version, reg.factory); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// HandleIntent registers a handler for an intent display name. All requests
// matching that intent are routed to the handler.
func (a *Agent) HandleIntent(intent string, handler HandlerFunc) error {
	if handler == nil {
		return fmt.Errorf("nil handler for intent %q", intent)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.handlers[intent]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateHandler, intent)
	}
	a.handlers[intent] = handler
	return nil
}

// Intents returns the intents that have handlers, sorted.
func (a *Agent) Intents() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	intents := make([]string, 0, len(a.handlers))
	for intent := range a.handlers {
		intents = append(intents, intent)
	}
	sort.Strings(intents)
	return intents
}

func (a *Agent) handlerFor(intent string) (HandlerFunc, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.handlers[intent]
	return h, ok
}

// RegisterContext registers a context by display name on the agent's context
// registry. See contexts.Registry.Register for the option semantics.
func (a *Agent) RegisterContext(displayName string, opts ...contexts.RegisterOption) {
	a.contexts.Register(displayName, opts...)
}

// RegisterContext registers a context whose parameters are carried by T,
// deriving the default factory and the (de)serializer pair from a jsonbind
// codec. Explicit options override the derived ones.
func RegisterContext[T any](a *Agent, displayName string, opts ...contexts.RegisterOption) error {
	return contexts.RegisterType[T](a.contexts, displayName, opts...)
}

// RegisterIntegration registers an integration conversation factory for a
// (source, version) pair.
func (a *Agent) RegisterIntegration(source, version string, factory integrations.Factory) error {
	return a.integrations.Register(source, version, factory)
}

// Contexts returns the agent's context registry.
func (a *Agent) Contexts() *contexts.Registry {
	return a.contexts
}

// Integrations returns the agent's integration registry.
func (a *Agent) Integrations() *integrations.Registry {
	return a.integrations
}

// Logger returns the agent's logger.
func (a *Agent) Logger() *slog.Logger {
	return a.log
}

// HandleRequest processes one webhook request end to end: context
// initialization, conversation construction, intent dispatch, context
// serialization and response rendering. It is the handler-level entry point;
// transports decode the body and call this.
func (a *Agent) HandleRequest(ctx context.Context, req *dialogflow.WebhookRequest) (*dialogflow.WebhookResponse, error) {
	if req == nil || req.QueryResult == nil {
		return nil, fmt.Errorf("%w: missing queryResult", dialogflow.ErrMalformedRequest)
	}
	a.logJSON(ctx, "webhook request", req)

	manager, err := contexts.NewManager(req.Session, a.contexts, req.QueryResult.OutputContexts)
	if err != nil {
		return nil, fmt.Errorf("initializing contexts: %w", err)
	}

	var source, version string
	var payload map[string]any
	if odir := req.OriginalDetectIntentRequest; odir != nil {
		source, version, payload = odir.Source, odir.Version, odir.Payload
	}
	convs, err := a.integrations.Conversations(source, version, payload)
	if err != nil {
		return nil, err
	}

	conv, err := newConversation(req, manager, convs, a.store, a.catalog, a.source)
	if err != nil {
		return nil, err
	}

	intent := conv.Intent()
	handler, ok := a.handlerFor(intent)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, intent)
	}
	if err := handler(ctx, conv); err != nil {
		return nil, fmt.Errorf("handling intent %q: %w", intent, err)
	}

	if err := manager.SerializeParameters(); err != nil {
		return nil, fmt.Errorf("serializing contexts: %w", err)
	}

	resp := conv.response()
	a.logJSON(ctx, "webhook response", resp)
	return resp, nil
}

// Handler returns an http.Handler serving this agent's webhook endpoint. The
// agent's logger is used unless overridden by an option.
func (a *Agent) Handler(opts ...webhook.Option) http.Handler {
	if a.log.Enabled(context.Background(), slog.LevelDebug) {
		schemas := a.contexts.Schemas()
		for _, name := range a.contexts.Names() {
			schema, ok := schemas[name]
			if !ok {
				continue
			}
			if data, err := json.Marshal(schema); err == nil {
				a.log.Debug("context schema", slog.String("context", name), slog.String("schema", string(data)))
			}
		}
	}
	opts = append([]webhook.Option{webhook.WithLogger(a.log)}, opts...)
	return webhook.NewHandler(a, opts...)
}

func (a *Agent) logJSON(ctx context.Context, msg string, v any) {
	if !a.debug || !a.log.Enabled(ctx, slog.LevelDebug) {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		a.log.DebugContext(ctx, msg, slog.String("marshal_error", err.Error()))
		return
	}
	a.log.DebugContext(ctx, msg, slog.String("body", string(data)))
}
