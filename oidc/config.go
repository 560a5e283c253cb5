package oidc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	sdkHttp "github.com/hashicorp/calview/sdk/http"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
)

const (
	// AuthorizePath is appended to the authority to form the authorize endpoint.
	AuthorizePath = "/oauth2/v2.0/authorize"

	// TokenPath is appended to the authority to form the token endpoint.
	TokenPath = "/oauth2/v2.0/token"

	// DefaultUserAgent identifies this client to the authority and the
	// calendar API.
	DefaultUserAgent = "calview/1.0"
)

type ClientSecret string

// RedactedClientSecret is the redacted string or json for an oauth client secret
const RedactedClientSecret = "[REDACTED: client secret]"

// String will redact the client secret
func (t ClientSecret) String() string {
	return RedactedClientSecret
}

// MarshalJSON will redact the client secret
func (t ClientSecret) MarshalJSON() ([]byte, error) {
	return json.Marshal(RedactedClientSecret)
}

// Config represents the configuration for the authorization code + id_token
// hybrid flow against one authority.
type Config struct {
	// Authority is the identity provider's base URL, for example
	// https://login.microsoftonline.com/common
	Authority string

	// ClientId is the relying party id
	ClientId string

	// ClientSecret is the relying party secret
	ClientSecret ClientSecret

	// Scopes is a list of additional scopes requested on every sign-in.
	// "openid offline_access profile" are always requested first.
	Scopes []string

	// ProviderCA is an optional CA cert to use when sending requests to the provider.
	ProviderCA string

	// UserAgent is sent on token requests. Defaults to DefaultUserAgent.
	UserAgent string

	// JWKSURL optionally enables Provider.VerifyIdToken, which checks id_token
	// signatures against the keys published at this URL.
	JWKSURL string

	// Issuer is the expected iss claim for Provider.VerifyIdToken. When empty
	// the issuer is not checked.
	Issuer string

	// SupportedSigningAlgs is the list of algorithms accepted by
	// Provider.VerifyIdToken. Defaults to RS256.
	SupportedSigningAlgs []Alg

	// Logger is an optional logger
	Logger hclog.Logger
}

// NewConfig composes a new config for an authority.
// Supported options:
//	WithScopes
//	WithProviderCA
//	WithUserAgent
//	WithJWKSURL
//	WithIssuer
//	WithSupportedSigningAlgs
//	WithLogger
func NewConfig(authority string, clientId string, clientSecret ClientSecret, opt ...Option) (*Config, error) {
	const op = "oidc.NewConfig"
	opts := getConfigOpts(opt...)
	c := &Config{
		Authority:            strings.TrimSuffix(authority, "/"),
		ClientId:             clientId,
		ClientSecret:         clientSecret,
		Scopes:               opts.withScopes,
		ProviderCA:           opts.withProviderCA,
		UserAgent:            opts.withUserAgent,
		JWKSURL:              opts.withJWKSURL,
		Issuer:               opts.withIssuer,
		SupportedSigningAlgs: opts.withSupportedSigningAlgs,
		Logger:               opts.withLogger,
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid provider config: %w", op, err)
	}
	return c, nil
}

// Validate the configuration. Every problem found is reported, joined in one
// multierror. Validate does not contact the authority.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("provider config is nil: %w", ErrNilParameter)
	}
	var result *multierror.Error
	if c.ClientId == "" {
		result = multierror.Append(result, fmt.Errorf("client id is empty: %w", ErrInvalidParameter))
	}
	if c.ClientSecret == "" {
		result = multierror.Append(result, fmt.Errorf("client secret is empty: %w", ErrInvalidParameter))
	}
	switch {
	case c.Authority == "":
		result = multierror.Append(result, fmt.Errorf("authority is empty: %w", ErrInvalidParameter))
	default:
		if err := validateHTTPURL(c.Authority); err != nil {
			result = multierror.Append(result, fmt.Errorf("authority %q: %w", c.Authority, err))
		}
	}
	if c.JWKSURL != "" {
		if err := validateHTTPURL(c.JWKSURL); err != nil {
			result = multierror.Append(result, fmt.Errorf("jwks url %q: %w", c.JWKSURL, err))
		}
	}
	for _, a := range c.SupportedSigningAlgs {
		if !supportedAlgorithms[a] {
			result = multierror.Append(result, fmt.Errorf("unsupported algorithm %s: %w", a, ErrInvalidParameter))
		}
	}
	return result.ErrorOrNil()
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalidAuthority)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("scheme is not http or https: %w", ErrInvalidAuthority)
	}
	if u.Host == "" {
		return fmt.Errorf("host is empty: %w", ErrInvalidAuthority)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("query and fragment are not allowed: %w", ErrInvalidAuthority)
	}
	return nil
}

// AuthEndpoint returns the authority's authorize endpoint.
func (c *Config) AuthEndpoint() string {
	return strings.TrimSuffix(c.Authority, "/") + AuthorizePath
}

// TokenEndpoint returns the authority's token endpoint.
func (c *Config) TokenEndpoint() string {
	return strings.TrimSuffix(c.Authority, "/") + TokenPath
}

// HttpClient is a helper function that creates a new http client for the
// provider configured
func (c *Config) HttpClient() (*http.Client, error) {
	ua := c.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	client, err := sdkHttp.NewClient(c.ProviderCA, ua)
	if err != nil {
		if errors.Is(err, sdkHttp.ErrInvalidCertificatePem) {
			return nil, fmt.Errorf("could not parse CA PEM value: %w", ErrInvalidCACert)
		}
		return nil, fmt.Errorf("could not get an http client: %w", err)
	}
	return client, nil
}

// configOptions is the set of available options
type configOptions struct {
	withScopes               []string
	withProviderCA           string
	withUserAgent            string
	withJWKSURL              string
	withIssuer               string
	withSupportedSigningAlgs []Alg
	withLogger               hclog.Logger
}

// configDefaults is a handy way to get the defaults at runtime and
// during unit tests.
func configDefaults() configOptions {
	return configOptions{
		withUserAgent:            DefaultUserAgent,
		withSupportedSigningAlgs: []Alg{RS256},
		withLogger:               hclog.NewNullLogger(),
	}
}

// getConfigOpts gets the defaults and applies the opt overrides passed
// in.
func getConfigOpts(opt ...Option) configOptions {
	opts := configDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}

// WithScopes provides an optional list of scopes for the provider's config
func WithScopes(scopes ...string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withScopes = scopes
		}
	}
}

// WithProviderCA provides an optional CA cert for the provider's config
func WithProviderCA(cert string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withProviderCA = cert
		}
	}
}

// WithUserAgent provides an optional user agent for token requests.
func WithUserAgent(ua string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && ua != "" {
			o.withUserAgent = ua
		}
	}
}

// WithJWKSURL enables id_token signature verification using the keys at url.
func WithJWKSURL(url string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withJWKSURL = url
		}
	}
}

// WithIssuer provides the expected id_token issuer for signature verification.
func WithIssuer(iss string) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok {
			o.withIssuer = iss
		}
	}
}

// WithSupportedSigningAlgs provides the algorithms accepted when verifying
// id_token signatures.
func WithSupportedSigningAlgs(algs ...Alg) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && len(algs) > 0 {
			o.withSupportedSigningAlgs = algs
		}
	}
}

// WithLogger provides an optional logger for the provider's config
func WithLogger(l hclog.Logger) Option {
	return func(o interface{}) {
		if o, ok := o.(*configOptions); ok && l != nil {
			o.withLogger = l
		}
	}
}
