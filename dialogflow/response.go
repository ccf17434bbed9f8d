package dialogflow

import "github.com/ggoodman/dialogflow-agent-go/contexts"

// Platform selects which integration a rich message is rendered for. The
// unspecified platform renders on the default text channel.
type Platform string

const (
	PlatformUnspecified     Platform = "PLATFORM_UNSPECIFIED"
	PlatformFacebook        Platform = "FACEBOOK"
	PlatformSlack           Platform = "SLACK"
	PlatformTelegram        Platform = "TELEGRAM"
	PlatformKik             Platform = "KIK"
	PlatformSkype           Platform = "SKYPE"
	PlatformLine            Platform = "LINE"
	PlatformViber           Platform = "VIBER"
	PlatformActionsOnGoogle Platform = "ACTIONS_ON_GOOGLE"
	PlatformGoogleHangouts  Platform = "GOOGLE_HANGOUTS"
	PlatformTelephony       Platform = "TELEPHONY"
)

// WebhookResponse is the fulfillment payload returned for one turn.
type WebhookResponse struct {
	FulfillmentText     string              `json:"fulfillmentText,omitempty"`
	FulfillmentMessages []Message           `json:"fulfillmentMessages,omitempty"`
	Source              string              `json:"source,omitempty"`
	Payload             map[string]any      `json:"payload,omitempty"`
	OutputContexts      []*contexts.Context `json:"outputContexts,omitempty"`
	FollowupEventInput  *EventInput         `json:"followupEventInput,omitempty"`

	// EndInteraction asks the platform to close the conversation; only the
	// v2beta1 surface honors it.
	EndInteraction bool `json:"endInteraction,omitempty"`
}

// EventInput triggers a followup intent match instead of (or in addition to)
// spoken fulfillment.
type EventInput struct {
	Name         string         `json:"name"`
	Parameters   map[string]any `json:"parameters,omitempty"`
	LanguageCode string         `json:"languageCode,omitempty"`
}

// Message is one rich response element. Exactly one of the message kind
// fields is set.
type Message struct {
	Platform     Platform       `json:"platform,omitempty"`
	Text         *Text          `json:"text,omitempty"`
	Image        *Image         `json:"image,omitempty"`
	QuickReplies *QuickReplies  `json:"quickReplies,omitempty"`
	Card         *Card          `json:"card,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// Text is a collection of text response variants; the platform picks one.
type Text struct {
	Text []string `json:"text,omitempty"`
}

// Image references an externally hosted image.
type Image struct {
	ImageURI          string `json:"imageUri,omitempty"`
	AccessibilityText string `json:"accessibilityText,omitempty"`
}

// QuickReplies renders tappable reply chips on channels that support them.
type QuickReplies struct {
	Title        string   `json:"title,omitempty"`
	QuickReplies []string `json:"quickReplies,omitempty"`
}

// Card is a rich card with an optional image and buttons.
type Card struct {
	Title    string       `json:"title,omitempty"`
	Subtitle string       `json:"subtitle,omitempty"`
	ImageURI string       `json:"imageUri,omitempty"`
	Buttons  []CardButton `json:"buttons,omitempty"`
}

// CardButton is one tappable card action.
type CardButton struct {
	Text     string `json:"text,omitempty"`
	Postback string `json:"postback,omitempty"`
}

// TextMessage builds a text message from one or more variants.
func TextMessage(text ...string) Message {
	return Message{Text: &Text{Text: text}}
}

// QuickRepliesMessage builds a quick replies message.
func QuickRepliesMessage(title string, replies ...string) Message {
	return Message{QuickReplies: &QuickReplies{Title: title, QuickReplies: replies}}
}

// CardMessage builds a card message.
func CardMessage(card Card) Message {
	return Message{Card: &card}
}

// ImageMessage builds an image message.
func ImageMessage(image Image) Message {
	return Message{Image: &image}
}
