package webhookauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	keyfunc "github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

type staticAuthenticator struct {
	cfg     *Config
	keyfunc jwt.Keyfunc
}

// NewStatic constructs an authenticator that validates identity tokens
// against a statically configured issuer, audiences and JWKS URI (no
// discovery). Useful when the issuer does not serve OIDC discovery metadata
// or when the metadata round-trip at startup is undesirable.
func NewStatic(ctx context.Context, cfg *Config, jwksURI string) (*staticAuthenticator, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if len(cfg.ExpectedAudiences) == 0 {
		return nil, errors.New("at least one expected audience required")
	}
	if jwksURI == "" {
		return nil, errors.New("jwks uri required")
	}
	if len(cfg.AllowedAlgs) == 0 {
		cfg.AllowedAlgs = []string{"RS256"}
	}
	if cfg.Leeway == 0 {
		cfg.Leeway = 60 * time.Second
	}

	kf, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURI})
	if err != nil {
		return nil, fmt.Errorf("jwks init failed: %w", err)
	}

	return &staticAuthenticator{
		cfg:     cfg,
		keyfunc: enforceAlgs(cfg.AllowedAlgs, kf.Keyfunc),
	}, nil
}

// CheckAuthentication implements the Authenticator interface (shared contract).
func (a *staticAuthenticator) CheckAuthentication(ctx context.Context, credential string) (Caller, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrUnauthorized)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods(a.cfg.AllowedAlgs),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(a.cfg.Issuer),
		jwt.WithLeeway(a.cfg.Leeway),
	)
	parsed, err := parser.Parse(credential, a.keyfunc)
	if err != nil {
		return nil, fmt.Errorf("%w: token parse/verify failed: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	// Audience intersection check (string or array).
	if !audIntersects(claims["aud"], a.cfg.ExpectedAudiences) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, fmt.Errorf("%w: missing sub", ErrUnauthorized)
	}
	return &caller{sub: sub, claims: claims}, nil
}

var _ Authenticator = (*staticAuthenticator)(nil)
