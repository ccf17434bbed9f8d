package webhookauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
)

type sharedSecretAuthenticator struct {
	secret []byte
}

// NewSharedSecret constructs an authenticator that accepts a single fixed
// credential value, matching the header-based authentication that the
// Dialogflow console offers for fulfillment endpoints. The comparison is
// constant-time. Callers verified this way have no token claims; Subject
// returns "shared-secret" and Claims decodes an empty object.
func NewSharedSecret(secret string) (*sharedSecretAuthenticator, error) {
	if secret == "" {
		return nil, errors.New("secret is required")
	}
	return &sharedSecretAuthenticator{secret: []byte(secret)}, nil
}

func (a *sharedSecretAuthenticator) CheckAuthentication(ctx context.Context, credential string) (Caller, error) {
	if subtle.ConstantTimeCompare([]byte(credential), a.secret) != 1 {
		return nil, fmt.Errorf("%w: secret mismatch", ErrUnauthorized)
	}
	return &caller{sub: "shared-secret", claims: map[string]any{}}, nil
}

var _ Authenticator = (*sharedSecretAuthenticator)(nil)
