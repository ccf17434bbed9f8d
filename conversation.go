package dialogflowagent

import (
	"context"
	"fmt"

	"github.com/ggoodman/dialogflow-agent-go/contexts"
	"github.com/ggoodman/dialogflow-agent-go/dialogflow"
	"github.com/ggoodman/dialogflow-agent-go/integrations"
	"github.com/ggoodman/dialogflow-agent-go/storage"
	"github.com/ggoodman/dialogflow-agent-go/templates"
)

// SessionContextName is the display name of the private context the agent
// uses to carry its own per-session bookkeeping between turns.
const SessionContextName = "_session_context"

// SessionContext is the agent's private session state. It rides along as a
// keep-around context and is never exposed to end users of the conversation.
type SessionContext struct {
	FallbackLevel int `json:"fallback_level"`
}

// HandlerFunc handles one conversational turn. Handlers inspect the request
// through the Conversation accessors, mutate context state and queue
// response messages. A returned error aborts the request.
type HandlerFunc func(ctx context.Context, conv *Conversation) error

// Conversation represents a single turn in a Dialogflow conversation. It is
// the interface to both the incoming request data and the response
// construction methods. A Conversation belongs to exactly one request and
// must not be shared across requests or goroutines.
type Conversation struct {
	req      *dialogflow.WebhookRequest
	contexts *contexts.Manager
	convs    *integrations.Conversations
	store    storage.Storage
	catalog  *templates.Catalog
	session  *SessionContext
	resp     dialogflow.WebhookResponse
}

func newConversation(
	req *dialogflow.WebhookRequest,
	manager *contexts.Manager,
	convs *integrations.Conversations,
	store storage.Storage,
	catalog *templates.Catalog,
	source string,
) (*Conversation, error) {
	sess, err := contexts.ParamsOf[SessionContext](manager, SessionContextName)
	if err != nil {
		return nil, fmt.Errorf("loading session context: %w", err)
	}

	c := &Conversation{
		req:      req,
		contexts: manager,
		convs:    convs,
		store:    store,
		catalog:  catalog,
		session:  sess,
	}
	c.resp.Source = source

	// The first fallback intent gets level 1, an immediately following one
	// level 2 and so on. Any non-fallback match resets the counter.
	if c.IsFallback() {
		sess.FallbackLevel++
	} else {
		sess.FallbackLevel = 0
	}
	return c, nil
}

func (c *Conversation) queryResult() *dialogflow.QueryResult {
	if c.req == nil || c.req.QueryResult == nil {
		return &dialogflow.QueryResult{}
	}
	return c.req.QueryResult
}

// Request exposes the raw webhook request as a fallback for data that has no
// accessor. Mutating it is discouraged.
func (c *Conversation) Request() *dialogflow.WebhookRequest {
	return c.req
}

// Session returns the session path of this conversation.
func (c *Conversation) Session() string {
	if c.req == nil {
		return ""
	}
	return c.req.Session
}

// ResponseID returns the unique id of this request.
func (c *Conversation) ResponseID() string {
	if c.req == nil {
		return ""
	}
	return c.req.ResponseID
}

// QueryText returns the text spoken or typed by the user.
func (c *Conversation) QueryText() string {
	return c.queryResult().QueryText
}

// LanguageCode returns the language of the query.
func (c *Conversation) LanguageCode() string {
	return c.queryResult().LanguageCode
}

// Intent returns the display name of the matched intent.
func (c *Conversation) Intent() string {
	if intent := c.queryResult().Intent; intent != nil {
		return intent.DisplayName
	}
	return ""
}

// IsFallback reports whether the matched intent is a fallback intent.
func (c *Conversation) IsFallback() bool {
	if intent := c.queryResult().Intent; intent != nil {
		return intent.IsFallback
	}
	return false
}

// FallbackLevel returns the number of consecutive fallback turns, this one
// included. It is 0 on any turn that matched a regular intent.
func (c *Conversation) FallbackLevel() int {
	return c.session.FallbackLevel
}

// Action returns the action of the matched intent.
func (c *Conversation) Action() string {
	return c.queryResult().Action
}

// Parameters returns the parameters extracted from the query.
func (c *Conversation) Parameters() map[string]any {
	return c.queryResult().Parameters
}

// AllRequiredParamsPresent reports whether slot filling is complete.
func (c *Conversation) AllRequiredParamsPresent() bool {
	return c.queryResult().AllRequiredParamsPresent
}

// IntentDetectionConfidence returns the match confidence in [0, 1].
func (c *Conversation) IntentDetectionConfidence() float64 {
	return c.queryResult().IntentDetectionConfidence
}

// SpeechRecognitionConfidence returns the speech recognition confidence in
// [0, 1], or 0 when the platform did not report one.
func (c *Conversation) SpeechRecognitionConfidence() float64 {
	return c.queryResult().SpeechRecognitionConfidence
}

// Sentiment returns the sentiment of the query text, or nil when sentiment
// analysis is not enabled for the agent.
func (c *Conversation) Sentiment() *dialogflow.Sentiment {
	if res := c.queryResult().SentimentAnalysisResult; res != nil {
		return res.QueryTextSentiment
	}
	return nil
}

// DiagnosticInfo returns free-form diagnostic info for the request.
func (c *Conversation) DiagnosticInfo() map[string]any {
	return c.queryResult().DiagnosticInfo
}

// AlternativeQueryResults returns additional potential matches, populated
// only on the v2beta1 surface.
func (c *Conversation) AlternativeQueryResults() []dialogflow.QueryResult {
	if c.req == nil {
		return nil
	}
	return c.req.AlternativeQueryResults
}

// Contexts returns the context manager for this turn.
func (c *Conversation) Contexts() *contexts.Manager {
	return c.contexts
}

// Source returns the integration platform the request came from, for example
// "facebook". It is empty for requests from the Dialogflow console.
func (c *Conversation) Source() string {
	if c.req == nil || c.req.OriginalDetectIntentRequest == nil {
		return ""
	}
	return c.req.OriginalDetectIntentRequest.Source
}

// Version returns the version qualifier of the source, when the platform
// sends one.
func (c *Conversation) Version() string {
	if c.req == nil || c.req.OriginalDetectIntentRequest == nil {
		return ""
	}
	return c.req.OriginalDetectIntentRequest.Version
}

// Payload returns the raw platform-specific request payload. Integration
// conversations expose the same data with more structure; the raw form is a
// fallback.
func (c *Conversation) Payload() map[string]any {
	if c.req == nil || c.req.OriginalDetectIntentRequest == nil {
		return nil
	}
	return c.req.OriginalDetectIntentRequest.Payload
}

// Integration returns the integration conversation for a source. Sources
// without a registered conversation get a fresh integrations.Generic.
func (c *Conversation) Integration(source string) integrations.Conversation {
	return c.convs.Get(source)
}

// HasStore reports whether a session store was configured on the agent.
func (c *Conversation) HasStore() bool {
	return c.store != nil
}

// Store returns the session store configured on the agent, or nil.
func (c *Conversation) Store() storage.Storage {
	return c.store
}

// Ask queues one or more text variants to speak to the user and keeps the
// interaction open.
func (c *Conversation) Ask(texts ...string) {
	c.addMessage(dialogflow.TextMessage(texts...))
}

// Tell is like Ask, but asks the platform to end the interaction afterwards.
// Only the v2beta1 surface honors the end signal.
func (c *Conversation) Tell(texts ...string) {
	c.Ask(texts...)
	c.resp.EndInteraction = true
}

// AskTemplate renders a named template from the agent's catalog and queues
// the result as a text response.
func (c *Conversation) AskTemplate(name string, data any) error {
	if c.catalog == nil {
		return fmt.Errorf("asking template %q: no template catalog configured", name)
	}
	text, err := c.catalog.Render(name, data)
	if err != nil {
		return fmt.Errorf("asking template %q: %w", name, err)
	}
	c.Ask(text)
	return nil
}

// ShowQuickReplies suggests tappable replies on channels that support them.
func (c *Conversation) ShowQuickReplies(title string, replies ...string) {
	c.addMessage(dialogflow.QuickRepliesMessage(title, replies...))
}

// ShowCard queues a rich card.
func (c *Conversation) ShowCard(card dialogflow.Card) {
	c.addMessage(dialogflow.CardMessage(card))
}

// ShowImage queues an image.
func (c *Conversation) ShowImage(image dialogflow.Image) {
	c.addMessage(dialogflow.ImageMessage(image))
}

// FollowupEvent triggers a followup intent match instead of a regular
// response.
func (c *Conversation) FollowupEvent(name string, parameters map[string]any) {
	c.resp.FollowupEventInput = &dialogflow.EventInput{
		Name:         name,
		Parameters:   parameters,
		LanguageCode: c.LanguageCode(),
	}
}

func (c *Conversation) addMessage(msg dialogflow.Message) {
	c.resp.FulfillmentMessages = append(c.resp.FulfillmentMessages, msg)
}

// response renders the webhook response for this turn. Context parameters
// must already be serialized; the manager's AsList pointers are shared with
// the response.
func (c *Conversation) response() *dialogflow.WebhookResponse {
	resp := c.resp
	resp.OutputContexts = c.contexts.AsList()
	if payload := c.convs.ResponsePayload(); len(payload) > 0 {
		resp.Payload = payload
	}
	return &resp
}
