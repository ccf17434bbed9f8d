// Package webhookauth verifies the credentials that accompany fulfillment
// calls. Dialogflow can be configured to send a signed identity token (a JWT
// issued by an OIDC provider such as accounts.google.com) or a fixed secret
// header with every webhook request; this package provides an Authenticator
// for each arrangement so the HTTP layer can treat them uniformly.
package webhookauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Config controls validation behavior for webhook identity tokens.
// It enforces issuer, audience, algorithm, and clock-skew policies.
type Config struct {
	Issuer string
	// ExpectedAudiences contains the primary audience (index 0) followed by any
	// additional accepted audiences. The first entry SHOULD be the public URL
	// of the deployed webhook; subsequent entries are primarily intended for
	// local / testing scenarios where the served endpoint differs from the
	// production one.
	ExpectedAudiences []string
	AllowedAlgs       []string
	Leeway            time.Duration
}

// DefaultConfig returns a Config with safe defaults for algorithm and leeway.
func DefaultConfig() *Config {
	return &Config{
		AllowedAlgs: []string{"RS256"},
		Leeway:      60 * time.Second,
	}
}

// Caller describes the authenticated party invoking the webhook.
type Caller interface {
	// Subject returns the sub claim of the verified token. For Google service
	// identity tokens this is the numeric ID of the calling service account.
	Subject() string
	// Claims unmarshals the full verified claim set into ref, giving access to
	// claims such as email that Subject does not surface.
	Claims(ref any) error
}

// caller is the concrete implementation of Caller.
type caller struct {
	sub    string
	claims map[string]any
}

func (c *caller) Subject() string { return c.sub }
func (c *caller) Claims(ref any) error {
	b, err := json.Marshal(c.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, ref)
}

// Authenticator validates the credential presented with a webhook call and
// returns a Caller exposing the verified identity. Implementations MUST
// perform signature, issuer, audience and time validations where the
// credential format supports them.
type Authenticator interface {
	CheckAuthentication(ctx context.Context, credential string) (Caller, error)
}

// ErrUnauthorized indicates that the presented credential failed validation
// (e.g., signature, issuer, audience, exp/nbf) and the request should be
// rejected as unauthenticated.
var ErrUnauthorized = errors.New("webhookauth: unauthorized")

type discoveryAuthenticator struct {
	cfg     *Config
	issuer  string
	keyfunc jwt.Keyfunc
}

// NewFromDiscovery performs OIDC discovery to obtain jwks_uri and issuer, and
// constructs an Authenticator that validates identity tokens using the
// configured policies in Config. JWKS keys are auto-refreshed.
func NewFromDiscovery(ctx context.Context, cfg *Config) (*discoveryAuthenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if len(cfg.ExpectedAudiences) == 0 {
		return nil, errors.New("at least one expected audience required")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery failed: %w", err)
	}
	var meta struct {
		Issuer  string `json:"issuer"`
		JwksURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&meta); err != nil {
		return nil, fmt.Errorf("invalid discovery metadata: %w", err)
	}
	if meta.JwksURI == "" {
		return nil, errors.New("discovery incomplete: missing jwks_uri")
	}

	// Auto-refreshing JWKS
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{meta.JwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &discoveryAuthenticator{
		cfg:     cfg,
		issuer:  meta.Issuer,
		keyfunc: enforceAlgs(cfg.AllowedAlgs, kf.Keyfunc),
	}, nil
}

// enforceAlgs wraps a keyfunc so that disallowed signing algorithms are
// rejected before any key lookup happens.
func enforceAlgs(allowedAlgs []string, kf jwt.Keyfunc) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		alg := t.Method.Alg()
		for _, a := range allowedAlgs {
			if alg == a {
				return kf(t)
			}
		}
		return nil, fmt.Errorf("disallowed alg: %s", alg)
	}
}

func (a *discoveryAuthenticator) CheckAuthentication(ctx context.Context, credential string) (Caller, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrUnauthorized)
	}

	// Build parser options. If exactly one expected audience is configured we
	// can leverage the parser's built-in audience enforcement. If multiple are
	// present we perform intersection logic after parsing.
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(a.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(a.issuer),
		jwt.WithLeeway(a.cfg.Leeway),
	}
	if len(a.cfg.ExpectedAudiences) == 1 {
		opts = append(opts, jwt.WithAudience(a.cfg.ExpectedAudiences[0]))
	}
	parser := jwt.NewParser(opts...)

	parsed, err := parser.Parse(credential, a.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	now := time.Now().Add(a.cfg.Leeway)

	// Validate standard claims: exp is covered by Parse + WithExpirationRequired.
	if iss, _ := claims["iss"].(string); iss == "" || iss != a.issuer {
		return nil, fmt.Errorf("%w: issuer mismatch", ErrUnauthorized)
	}
	if !audIntersects(claims["aud"], a.cfg.ExpectedAudiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}
	// Optional: iat presence sanity check if present
	if iatf, ok := claims["iat"].(float64); ok {
		// basic sanity: not too far in the future
		iat := time.Unix(int64(iatf), 0)
		if iat.After(now.Add(5 * time.Minute)) {
			return nil, fmt.Errorf("%w: iat too far in future", ErrUnauthorized)
		}
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}

	return &caller{sub: sub, claims: claims}, nil
}

func audIntersects(aud any, wants []string) bool {
	wantSet := map[string]struct{}{}
	for _, w := range wants {
		wantSet[w] = struct{}{}
	}
	switch v := aud.(type) {
	case string:
		_, ok := wantSet[v]
		return ok
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				if _, ok2 := wantSet[s]; ok2 {
					return true
				}
			}
		}
	case []string:
		for _, s := range v {
			if _, ok := wantSet[s]; ok {
				return true
			}
		}
	}
	return false
}

var _ Authenticator = (*discoveryAuthenticator)(nil)
