package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config captures the serving knobs commonly set through the environment.
// Defaults can be loaded via envdecode.
type Config struct {
	// Addr is the listen address. ENV: WEBHOOK_ADDR
	Addr string `env:"WEBHOOK_ADDR,default=:8080"`
	// Path is the URL path serving fulfillment. ENV: WEBHOOK_PATH
	Path string `env:"WEBHOOK_PATH,default=/webhook"`
	// RequestTimeout bounds the handling of one request. Zero disables the
	// bound. ENV: WEBHOOK_REQUEST_TIMEOUT
	RequestTimeout time.Duration `env:"WEBHOOK_REQUEST_TIMEOUT,default=4s"`
	// AuthHeader names the header carrying the credential when authentication
	// is enabled. ENV: WEBHOOK_AUTH_HEADER
	AuthHeader string `env:"WEBHOOK_AUTH_HEADER,default=Authorization"`
	// SharedSecret, when set, requires every request to carry exactly this
	// credential. ENV: WEBHOOK_SHARED_SECRET
	SharedSecret string `env:"WEBHOOK_SHARED_SECRET,optional"`
	// TokenIssuer and TokenAudience, when both set, require every request to
	// carry a signed identity token from that issuer for that audience.
	// ENV: WEBHOOK_TOKEN_ISSUER, WEBHOOK_TOKEN_AUDIENCE
	TokenIssuer   string `env:"WEBHOOK_TOKEN_ISSUER,optional"`
	TokenAudience string `env:"WEBHOOK_TOKEN_AUDIENCE,optional"`
}

// ConfigFromEnv populates a Config from the environment using envdecode.
func ConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decoding webhook config from env: %w", err)
	}
	return &cfg, nil
}

// HandlerOptions converts the configuration into handler options, building
// the authenticator the configuration calls for. Shared secret and token
// verification are mutually exclusive.
func (c *Config) HandlerOptions(ctx context.Context) ([]Option, error) {
	var opts []Option
	if c.RequestTimeout > 0 {
		opts = append(opts, WithRequestTimeout(c.RequestTimeout))
	}
	if c.AuthHeader != "" && c.AuthHeader != authorizationHeader {
		opts = append(opts, WithAuthHeader(c.AuthHeader))
	}

	switch {
	case c.SharedSecret != "" && c.TokenIssuer != "":
		return nil, errors.New("configure either WEBHOOK_SHARED_SECRET or WEBHOOK_TOKEN_ISSUER, not both")
	case c.SharedSecret != "":
		auth, err := NewSharedSecretAuthenticator(c.SharedSecret)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithAuthenticator(auth))
	case c.TokenIssuer != "":
		if c.TokenAudience == "" {
			return nil, errors.New("WEBHOOK_TOKEN_ISSUER requires WEBHOOK_TOKEN_AUDIENCE")
		}
		auth, err := NewTokenAuthenticator(ctx, c.TokenIssuer, c.TokenAudience)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithAuthenticator(auth))
	}
	return opts, nil
}
