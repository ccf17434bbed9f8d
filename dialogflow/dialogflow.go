// Package dialogflow defines the webhook envelope exchanged with the
// Dialogflow fulfillment API: the request delivered on an intent match and
// the response the agent sends back. Only the envelope and core conversation
// types are defined here; integration-specific payloads stay raw mappings.
package dialogflow

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ggoodman/dialogflow-agent-go/contexts"
)

// ErrMalformedRequest indicates a webhook body that does not carry the
// minimum envelope the turn pipeline needs.
var ErrMalformedRequest = errors.New("malformed webhook request")

// WebhookRequest is the fulfillment call for one conversational turn.
// Unknown fields are ignored on decode; the platform injects undocumented
// fields into arbitrary payloads.
type WebhookRequest struct {
	ResponseID                  string                       `json:"responseId,omitempty"`
	Session                     string                       `json:"session,omitempty"`
	QueryResult                 *QueryResult                 `json:"queryResult,omitempty"`
	OriginalDetectIntentRequest *OriginalDetectIntentRequest `json:"originalDetectIntentRequest,omitempty"`

	// AlternativeQueryResults carries additional potential matches; only
	// the v2beta1 surface populates it.
	AlternativeQueryResults []QueryResult `json:"alternativeQueryResults,omitempty"`
}

// QueryResult describes the single matched intent for the turn.
type QueryResult struct {
	QueryText                   string                   `json:"queryText,omitempty"`
	LanguageCode                string                   `json:"languageCode,omitempty"`
	SpeechRecognitionConfidence float64                  `json:"speechRecognitionConfidence,omitempty"`
	Action                      string                   `json:"action,omitempty"`
	Parameters                  map[string]any           `json:"parameters,omitempty"`
	AllRequiredParamsPresent    bool                     `json:"allRequiredParamsPresent,omitempty"`
	FulfillmentText             string                   `json:"fulfillmentText,omitempty"`
	FulfillmentMessages         []Message                `json:"fulfillmentMessages,omitempty"`
	WebhookSource               string                   `json:"webhookSource,omitempty"`
	WebhookPayload              map[string]any           `json:"webhookPayload,omitempty"`
	OutputContexts              []*contexts.Context      `json:"outputContexts,omitempty"`
	Intent                      *Intent                  `json:"intent,omitempty"`
	IntentDetectionConfidence   float64                  `json:"intentDetectionConfidence,omitempty"`
	DiagnosticInfo              map[string]any           `json:"diagnosticInfo,omitempty"`
	SentimentAnalysisResult     *SentimentAnalysisResult `json:"sentimentAnalysisResult,omitempty"`
}

// Intent identifies the matched intent.
type Intent struct {
	Name              string   `json:"name,omitempty"`
	DisplayName       string   `json:"displayName,omitempty"`
	Priority          int      `json:"priority,omitempty"`
	IsFallback        bool     `json:"isFallback,omitempty"`
	InputContextNames []string `json:"inputContextNames,omitempty"`
	Events            []string `json:"events,omitempty"`
}

// OriginalDetectIntentRequest carries the calling integration's identity and
// its platform-specific request payload.
type OriginalDetectIntentRequest struct {
	Source  string         `json:"source,omitempty"`
	Version string         `json:"version,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

// SentimentAnalysisResult is the sentiment of the user input, when the agent
// has sentiment analysis enabled.
type SentimentAnalysisResult struct {
	QueryTextSentiment *Sentiment `json:"queryTextSentiment,omitempty"`
}

// Sentiment scores the emotional leaning of analyzed text.
type Sentiment struct {
	Score     float64 `json:"score,omitempty"`
	Magnitude float64 `json:"magnitude,omitempty"`
}

// ParseWebhookRequest decodes and validates a webhook request body. The
// envelope must carry a session and a query result; everything else is
// optional.
func ParseWebhookRequest(data []byte) (*WebhookRequest, error) {
	var req WebhookRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	if req.Session == "" {
		return nil, fmt.Errorf("%w: missing session", ErrMalformedRequest)
	}
	if req.QueryResult == nil {
		return nil, fmt.Errorf("%w: missing queryResult", ErrMalformedRequest)
	}
	return &req, nil
}
