package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/ggoodman/dialogflow-agent-go/internal/webhookauth"
)

// ErrUnauthorized indicates authentication failed or no valid credentials
// were supplied.
var ErrUnauthorized = errors.New("unauthorized")

// Caller represents the authenticated party invoking the webhook.
// Implementations should be lightweight and safe for concurrent use.
type Caller interface {
	// Subject returns the unique identifier of the caller.
	Subject() string
	// Claims unmarshals the caller's verified claims into the provided
	// struct reference.
	Claims(ref any) error
}

// Authenticator validates webhook credentials and returns the associated
// caller. It should return ErrUnauthorized for invalid credentials.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, credential string) (Caller, error)
}

// AuthOption configures optional aspects of token validation (algorithms,
// leeway, extra audiences). Issuer and the primary audience are required
// formal arguments of the constructors.
type AuthOption func(*webhookauth.Config)

// WithAllowedAlgs restricts allowed JWS algorithms. "none" is never allowed.
// Defaults to ["RS256"].
func WithAllowedAlgs(algs ...string) AuthOption {
	return func(c *webhookauth.Config) {
		c.AllowedAlgs = append([]string(nil), algs...)
	}
}

// WithLeeway sets clock skew tolerance for time-based claims.
func WithLeeway(d time.Duration) AuthOption {
	return func(c *webhookauth.Config) { c.Leeway = d }
}

// WithAdditionalAudiences accepts tokens whose audience matches any of the
// given values in addition to the primary audience. Primarily intended for
// local or staging deployments served next to the production endpoint.
func WithAdditionalAudiences(audiences ...string) AuthOption {
	return func(c *webhookauth.Config) {
		c.ExpectedAudiences = append(c.ExpectedAudiences, audiences...)
	}
}

// NewTokenAuthenticator returns an Authenticator that verifies signed
// identity tokens, resolving the signing keys via OpenID Connect discovery
// on the issuer. This matches the service identity tokens Dialogflow can be
// configured to send (issuer https://accounts.google.com, audience set to
// the fulfillment URL).
func NewTokenAuthenticator(ctx context.Context, issuer, audience string, opts ...AuthOption) (Authenticator, error) {
	cfg, err := tokenConfig(issuer, audience, opts)
	if err != nil {
		return nil, err
	}
	internal, err := webhookauth.NewFromDiscovery(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &authAdapter{a: internal}, nil
}

// NewStaticTokenAuthenticator is NewTokenAuthenticator without the discovery
// round-trip: the JWKS URI is supplied directly.
func NewStaticTokenAuthenticator(ctx context.Context, issuer, audience, jwksURI string, opts ...AuthOption) (Authenticator, error) {
	cfg, err := tokenConfig(issuer, audience, opts)
	if err != nil {
		return nil, err
	}
	internal, err := webhookauth.NewStatic(ctx, cfg, jwksURI)
	if err != nil {
		return nil, err
	}
	return &authAdapter{a: internal}, nil
}

// NewSharedSecretAuthenticator returns an Authenticator that accepts a
// single fixed credential value, matching the header-based authentication
// offered by the Dialogflow console. Combine with WithAuthHeader when the
// console is configured to send the secret in a custom header.
func NewSharedSecretAuthenticator(secret string) (Authenticator, error) {
	internal, err := webhookauth.NewSharedSecret(secret)
	if err != nil {
		return nil, err
	}
	return &authAdapter{a: internal}, nil
}

func tokenConfig(issuer, audience string, opts []AuthOption) (*webhookauth.Config, error) {
	if issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if audience == "" {
		return nil, errors.New("audience is required")
	}
	cfg := webhookauth.DefaultConfig()
	cfg.Issuer = issuer
	cfg.ExpectedAudiences = []string{audience}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg, nil
}

// authAdapter wraps the internal authenticator to satisfy the public
// interface, mapping internal sentinel errors to the public ones the
// handler inspects.
type authAdapter struct {
	a webhookauth.Authenticator
}

func (ad *authAdapter) CheckAuthentication(ctx context.Context, credential string) (Caller, error) {
	c, err := ad.a.CheckAuthentication(ctx, credential)
	if err != nil {
		if errors.Is(err, webhookauth.ErrUnauthorized) {
			return nil, errors.Join(ErrUnauthorized, err)
		}
		return nil, err
	}
	return c, nil
}

var _ Authenticator = (*authAdapter)(nil)
