// Package agenttest provides helpers for testing fulfillment logic without a
// live Dialogflow agent: realistic webhook request construction and
// assertion-friendly response inspection, including replaying a response's
// output contexts into the next turn's request the way the platform does.
package agenttest

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/ggoodman/dialogflow-agent-go/contexts"
	"github.com/ggoodman/dialogflow-agent-go/dialogflow"
)

const (
	// DefaultSession is the session path used by NewRequest unless overridden.
	DefaultSession = "projects/demo-agent/agent/sessions/8c2767a4"

	// DefaultIntent is the intent display name used by NewRequest unless
	// overridden.
	DefaultIntent = "Default Welcome Intent"

	// FallbackIntent is the display name WithFallbackIntent applies, matching
	// the fallback intent every fresh agent starts with.
	FallbackIntent = "Default Fallback Intent"
)

// RequestOption adjusts a generated webhook request.
type RequestOption func(*dialogflow.WebhookRequest)

// WithSession sets the session path.
func WithSession(session string) RequestOption {
	return func(r *dialogflow.WebhookRequest) { r.Session = session }
}

// WithIntent sets the matched intent's display name.
func WithIntent(displayName string) RequestOption {
	return func(r *dialogflow.WebhookRequest) {
		r.QueryResult.Intent.DisplayName = displayName
		r.QueryResult.Intent.IsFallback = false
	}
}

// WithFallbackIntent marks the request as a fallback intent match.
func WithFallbackIntent() RequestOption {
	return func(r *dialogflow.WebhookRequest) {
		r.QueryResult.Intent.DisplayName = FallbackIntent
		r.QueryResult.Intent.IsFallback = true
	}
}

// WithQueryText sets the user utterance.
func WithQueryText(text string) RequestOption {
	return func(r *dialogflow.WebhookRequest) { r.QueryResult.QueryText = text }
}

// WithAction sets the matched intent's action.
func WithAction(action string) RequestOption {
	return func(r *dialogflow.WebhookRequest) { r.QueryResult.Action = action }
}

// WithLanguageCode sets the query language.
func WithLanguageCode(code string) RequestOption {
	return func(r *dialogflow.WebhookRequest) { r.QueryResult.LanguageCode = code }
}

// WithParameters sets the parameters extracted from the query.
func WithParameters(params map[string]any) RequestOption {
	return func(r *dialogflow.WebhookRequest) { r.QueryResult.Parameters = params }
}

// WithContexts appends incoming contexts.
func WithContexts(ctxs ...*contexts.Context) RequestOption {
	return func(r *dialogflow.WebhookRequest) {
		r.QueryResult.OutputContexts = append(r.QueryResult.OutputContexts, ctxs...)
	}
}

// WithSource attaches an originalDetectIntentRequest identifying the
// integration platform the request came through.
func WithSource(source, version string, payload map[string]any) RequestOption {
	return func(r *dialogflow.WebhookRequest) {
		r.OriginalDetectIntentRequest = &dialogflow.OriginalDetectIntentRequest{
			Source:  source,
			Version: version,
			Payload: payload,
		}
	}
}

// NewRequest builds a webhook request resembling what the platform sends for
// a matched intent: fresh response id, default session and welcome intent,
// complete slot filling. Options adjust it from there.
func NewRequest(opts ...RequestOption) *dialogflow.WebhookRequest {
	req := &dialogflow.WebhookRequest{
		ResponseID: uuid.NewString(),
		Session:    DefaultSession,
		QueryResult: &dialogflow.QueryResult{
			QueryText:    "hi",
			LanguageCode: "en",
			Intent: &dialogflow.Intent{
				Name:        "projects/demo-agent/agent/intents/" + uuid.NewString(),
				DisplayName: DefaultIntent,
			},
			IntentDetectionConfidence: 1,
			AllRequiredParamsPresent:  true,
		},
	}
	for _, opt := range opts {
		opt(req)
	}
	return req
}

// Response wraps a webhook response for inspection in tests.
type Response struct {
	*dialogflow.WebhookResponse
}

// WrapResponse wraps resp. A nil resp yields a wrapper whose accessors all
// report absence.
func WrapResponse(resp *dialogflow.WebhookResponse) *Response {
	if resp == nil {
		resp = &dialogflow.WebhookResponse{}
	}
	return &Response{WebhookResponse: resp}
}

// TextResponses flattens the text variants of all queued text messages, in
// order.
func (r *Response) TextResponses() []string {
	var out []string
	for _, msg := range r.FulfillmentMessages {
		if msg.Text == nil {
			continue
		}
		out = append(out, msg.Text.Text...)
	}
	return out
}

// Context returns the output context with the given display name, or nil.
func (r *Response) Context(displayName string) *contexts.Context {
	for _, c := range r.OutputContexts {
		if c != nil && c.DisplayName() == displayName {
			return c
		}
	}
	return nil
}

// HasContext reports whether an output context with the given display name
// is present.
func (r *Response) HasContext(displayName string) bool {
	return r.Context(displayName) != nil
}

// ContextParams returns the parameters of the named output context as the
// wire mapping, or nil when the context is absent or carries no parameters.
func (r *Response) ContextParams(displayName string) map[string]any {
	c := r.Context(displayName)
	if c == nil {
		return nil
	}
	params, _ := c.Parameters.(map[string]any)
	return params
}

// NextRequest builds the follow-up turn's request from this response: output
// contexts make a wire round-trip, lifespans are decremented and expired
// contexts dropped, mimicking how the platform replays surviving contexts.
// The request uses DefaultSession unless WithSession is among opts.
func (r *Response) NextRequest(opts ...RequestOption) (*dialogflow.WebhookRequest, error) {
	data, err := json.Marshal(r.OutputContexts)
	if err != nil {
		return nil, fmt.Errorf("round-tripping output contexts: %w", err)
	}
	var replayed []*contexts.Context
	if err := json.Unmarshal(data, &replayed); err != nil {
		return nil, fmt.Errorf("round-tripping output contexts: %w", err)
	}

	surviving := make([]*contexts.Context, 0, len(replayed))
	for _, c := range replayed {
		next := c.Lifespan() - 1
		if next <= 0 {
			continue
		}
		c.SetLifespan(next)
		surviving = append(surviving, c)
	}

	req := NewRequest(opts...)
	req.QueryResult.OutputContexts = append(surviving, req.QueryResult.OutputContexts...)
	return req, nil
}
