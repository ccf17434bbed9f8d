package dialogflowagent

import "errors"

// ErrDuplicateHandler indicates a second handler registration for the same
// intent. Handler registration happens once at configuration time; a
// duplicate is a configuration error.
var ErrDuplicateHandler = errors.New("handler already registered for intent")

// ErrNoHandler indicates that a webhook request matched an intent no handler
// was registered for. It is fatal to that request.
var ErrNoHandler = errors.New("no handler registered for intent")
